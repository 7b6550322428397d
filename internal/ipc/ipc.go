// Package ipc carries push-to-talk commands from `jarvis trigger` to a
// running voice session over a unix socket.
package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	CmdTrigger = "trigger"
	CmdStop    = "stop"
)

// DefaultSocketPath is used when no path is configured.
var DefaultSocketPath = filepath.Join(os.TempDir(), "jarvis.sock")

// ControlMessage is one JSON command per connection.
type ControlMessage struct {
	Cmd string `json:"cmd"`
}

// Server accepts control messages until Close.
type Server struct {
	path    string
	ln      net.Listener
	handler func(ControlMessage)
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// Listen removes a stale socket at path and starts serving.
func Listen(path string, handler func(ControlMessage), logger *slog.Logger) (*Server, error) {
	if path == "" {
		path = DefaultSocketPath
	}
	if logger == nil {
		logger = slog.Default()
	}
	_ = os.Remove(path)

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	s := &Server{path: path, ln: ln, handler: handler, logger: logger.With("component", "ipc")}
	s.wg.Add(1)
	go s.serve()
	return s, nil
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("accept failed", "err", err)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg ControlMessage
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		s.logger.Debug("bad control message", "err", err)
		return
	}
	s.handler(msg)
}

// Close stops accepting, waits for in-flight handlers and removes the socket.
func (s *Server) Close() error {
	err := s.ln.Close()
	s.wg.Wait()
	_ = os.Remove(s.path)
	return err
}

// SendCommand delivers cmd to the server listening on path.
func SendCommand(ctx context.Context, path, cmd string) error {
	if path == "" {
		path = DefaultSocketPath
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return err
	}
	defer conn.Close()
	return json.NewEncoder(conn).Encode(ControlMessage{Cmd: cmd})
}
