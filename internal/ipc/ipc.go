// Package ipc is the daemon's control socket: one JSON request and one JSON
// response per connection over a unix socket.
package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"net"
	"os"
	"sync"
	"time"
)

const DefaultSocket = "/tmp/jarvis.sock"

const (
	CmdStop    = "stop"
	CmdScrape  = "scrape"
	CmdStatus  = "status"
	CmdJournal = "journal"
)

type ControlMessage struct {
	Cmd  string            `json:"cmd"`
	Args map[string]string `json:"args,omitempty"`
}

type Response struct {
	OK     bool            `json:"ok"`
	Error  string          `json:"error,omitempty"`
	Status string          `json:"status,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Fail builds an error response.
func Fail(err error) Response { return Response{Error: err.Error()} }

// WithData marshals v into the response payload.
func (r Response) WithData(v any) Response {
	b, err := json.Marshal(v)
	if err != nil {
		return Fail(fmt.Errorf("encode data: %w", err))
	}
	r.Data = b
	return r
}

type Handler func(ctx context.Context, msg ControlMessage) Response

type Server struct {
	ln     net.Listener
	path   string
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// StartServer removes a stale socket at path, listens and serves in the
// background until Close.
func StartServer(path string, handler Handler) (*Server, error) {
	if path == "" {
		path = DefaultSocket
	}
	os.Remove(path)

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{ln: ln, path: path, cancel: cancel}
	s.wg.Add(1)
	go s.accept(ctx, handler)
	return s, nil
}

func (s *Server) Path() string { return s.path }

func (s *Server) accept(ctx context.Context, handler Handler) {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Warn("ipc accept failed", "err", err)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			handleConn(ctx, conn, handler)
		}()
	}
}

func handleConn(ctx context.Context, conn net.Conn, handler Handler) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(30 * time.Second))

	var msg ControlMessage
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		log.Debug("ipc bad request", "err", err)
		json.NewEncoder(conn).Encode(Fail(fmt.Errorf("decode request: %w", err)))
		return
	}
	log.Debug("ipc request", "cmd", msg.Cmd)

	resp := handler(ctx, msg)
	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		log.Debug("ipc reply failed", "cmd", msg.Cmd, "err", err)
	}
}

func (s *Server) Close() error {
	s.cancel()
	err := s.ln.Close()
	s.wg.Wait()
	os.Remove(s.path)
	return err
}

// Send delivers msg to the daemon at path and waits for its response.
func Send(ctx context.Context, path string, msg ControlMessage) (Response, error) {
	if path == "" {
		path = DefaultSocket
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return Response{}, err
	}
	defer conn.Close()
	if dl, ok := ctx.Deadline(); ok {
		conn.SetDeadline(dl)
	}

	if err := json.NewEncoder(conn).Encode(msg); err != nil {
		return Response{}, fmt.Errorf("send: %w", err)
	}
	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	if !resp.OK && resp.Error != "" {
		return resp, errors.New(resp.Error)
	}
	return resp, nil
}

// SendCommand is Send with a bare command and a short timeout.
func SendCommand(path, cmd string) (Response, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return Send(ctx, path, ControlMessage{Cmd: cmd})
}
