package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"go-jarvis/internal/api"
	"go-jarvis/internal/dialogue"
	"go-jarvis/internal/ipc"
	"go-jarvis/internal/speech"
	"go-jarvis/internal/speech/whisper"
)

var (
	quiet      bool
	pushToTalk bool
	socketPath string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive text conversation",
	RunE:  runChat,
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a single question and exit",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		a, err := newAssistant(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		reply, err := a.engine.Submit(ctx, strings.Join(args, " "), nil)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), reply.Text)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP and websocket API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		a, err := newAssistant(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		if !strings.EqualFold(cfg.Logging.Level, "debug") {
			gin.SetMode(gin.ReleaseMode)
		}
		srv := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:           api.SetupRouter(cfg, a.engine, logger),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("starting server", "addr", srv.Addr, "subpath", cfg.Server.Subpath)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)
		case <-ctx.Done():
		}

		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

var voiceCmd = &cobra.Command{
	Use:   "voice",
	Short: "Start a spoken conversation using the microphone",
	Long: `voice records from the default microphone and transcribes with whisper.

Binaries built without the "whisper" build tag report that speech input is
unavailable. With --push-to-talk, recording starts only after
"jarvis trigger" is run, e.g. from a global hotkey.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		mic, err := whisper.Open(cfg.Speech, logger)
		if err != nil {
			return err
		}
		defer mic.Close()

		var listener speech.Listener = mic
		if pushToTalk {
			gate := ipc.NewGate(mic)
			srv, err := ipc.Listen(socketPath, gate.Handle, logger)
			if err != nil {
				return fmt.Errorf("push-to-talk socket: %w", err)
			}
			defer srv.Close()
			listener = gate
		}
		return converse(ctx, cmd, listener)
	},
}

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Signal a running voice session to start listening",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Second)
		defer cancel()
		if err := ipc.SendCommand(ctx, socketPath, ipc.CmdTrigger); err != nil {
			return fmt.Errorf("no voice session listening on %s: %w", socketPath, err)
		}
		return nil
	},
}

var timeCmd = &cobra.Command{
	Use:   "time [city]",
	Short: "Print the current time in a city",
	RunE: func(cmd *cobra.Command, args []string) error {
		clock := dialogue.NewClock(dialogue.DefaultTables(), cfg.Assistant.DefaultLocation)
		city := cfg.Assistant.DefaultLocation
		if len(args) > 0 {
			city = strings.Join(args, " ")
		}
		fmt.Fprintln(cmd.OutOrStdout(), clock.TimeIn(city))
		return nil
	},
}

func init() {
	chatCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "print replies without speaking them")
	voiceCmd.Flags().BoolVar(&pushToTalk, "push-to-talk", false, "wait for a trigger before each utterance")
	for _, c := range []*cobra.Command{voiceCmd, triggerCmd} {
		c.Flags().StringVar(&socketPath, "socket", ipc.DefaultSocketPath, "push-to-talk control socket")
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()
	prompt := cfg.Assistant.UserName + "> "
	return converse(ctx, cmd, speech.NewConsole(cmd.InOrStdin(), cmd.OutOrStdout(), prompt))
}

// converse runs a session with replies printed and, unless --quiet, spoken.
func converse(ctx context.Context, cmd *cobra.Command, listener speech.Listener) error {
	a, err := newAssistant(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	speakers := speech.Multi{speech.Printer{Out: cmd.OutOrStdout(), Prefix: cfg.Assistant.Name + ": "}}
	if !quiet {
		speakers = append(speakers, speech.NewSpeaker(cfg.Speech, logger))
	}

	err = dialogue.NewSession(a.engine, listener, speakers, logger).Run(ctx)
	if errors.Is(err, dialogue.ErrUserAbort) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
