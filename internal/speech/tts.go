package speech

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"go-jarvis/internal/config"
)

const (
	EngineAuto       = "auto"
	EngineSay        = "say"
	EnginePowerShell = "powershell"
	EngineEspeak     = "espeak"
	EngineNone       = "none"
)

// Runner executes an external command. It is swapped in tests.
type Runner func(ctx context.Context, name string, args ...string) error

func execRunner(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Command speaks through the operating system's text-to-speech program.
type Command struct {
	engine  string
	voice   string
	rate    int
	timeout time.Duration
	run     Runner
	logger  *slog.Logger
}

// ResolveEngine maps "auto" to the engine of the current platform.
func ResolveEngine(engine, goos string) string {
	if engine != "" && engine != EngineAuto {
		return engine
	}
	switch goos {
	case "darwin":
		return EngineSay
	case "windows":
		return EnginePowerShell
	default:
		return EngineEspeak
	}
}

// NewSpeaker builds the speaker selected by cfg. Engine "none" yields Nop.
func NewSpeaker(cfg config.SpeechConfig, logger *slog.Logger) Speaker {
	engine := ResolveEngine(cfg.Engine, runtime.GOOS)
	if engine == EngineNone {
		return Nop{}
	}
	return NewCommand(engine, cfg.Voice, cfg.Rate, execRunner, logger)
}

// NewCommand creates a speaker for engine. A nil run executes real commands.
func NewCommand(engine, voice string, rate int, run Runner, logger *slog.Logger) *Command {
	if run == nil {
		run = execRunner
	}
	if rate <= 0 {
		rate = 200
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Command{
		engine:  engine,
		voice:   voice,
		rate:    rate,
		timeout: 30 * time.Second,
		run:     run,
		logger:  logger.With("component", "tts", "engine", engine),
	}
}

// Speak normalizes text and runs the engine with a 30s limit.
func (c *Command) Speak(ctx context.Context, text string) error {
	text = Normalize(text)
	if text == "" {
		return nil
	}
	name, args, err := c.command(text)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.run(ctx, name, args...); err != nil {
		c.logger.Warn("speech output failed", "err", err)
		return err
	}
	return nil
}

func (c *Command) command(text string) (string, []string, error) {
	switch c.engine {
	case EngineSay:
		args := []string{"-r", strconv.Itoa(c.rate)}
		if c.voice != "" {
			args = append(args, "-v", c.voice)
		}
		return "say", append(args, text), nil
	case EngineEspeak:
		args := []string{"-s", strconv.Itoa(c.rate)}
		if c.voice != "" {
			args = append(args, "-v", c.voice)
		}
		return "espeak-ng", append(args, text), nil
	case EnginePowerShell:
		var script strings.Builder
		script.WriteString("Add-Type -AssemblyName System.Speech; ")
		script.WriteString("$s = New-Object System.Speech.Synthesis.SpeechSynthesizer; ")
		fmt.Fprintf(&script, "$s.Rate = %d; ", powerShellRate(c.rate))
		if c.voice != "" {
			fmt.Fprintf(&script, "try { $s.SelectVoice('%s') } catch {}; ", psQuote(c.voice))
		}
		fmt.Fprintf(&script, "$s.Speak('%s')", psQuote(text))
		return "powershell.exe", []string{"-NoProfile", "-Command", script.String()}, nil
	}
	return "", nil, fmt.Errorf("unknown speech engine %q", c.engine)
}

// powerShellRate maps words per minute onto System.Speech's -10..10 scale.
func powerShellRate(wpm int) int {
	r := (wpm - 200) / 20
	if r < -10 {
		return -10
	}
	if r > 10 {
		return 10
	}
	return r
}

func psQuote(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
