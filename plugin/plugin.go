// Package plugin exposes the forwarder as a net/rpc service for workflow
// engines that load tools as out-of-process plugins.
package plugin

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zynerotech/evalforward/forwarder"
	"github.com/zynerotech/evalforward/logger"
)

// ServiceName is the net/rpc service name; clients call "Plugin.CallMethod".
const ServiceName = "Plugin"

// MethodForward is the logical method name served by CallMethod.
const MethodForward = "Forward"

func init() {
	gob.Register(map[string]any{})
	gob.Register([]any{})
	gob.Register(map[string]string{})
	gob.Register([]string{})
}

// Request is the RPC input. Method is matched after upper-casing its first letter.
type Request struct {
	Method string         `json:"method"`
	Args   map[string]any `json:"args"`
}

// Response is the RPC output. Data carries the envelope as nested maps.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Forwarder is the part of forwarder.Forwarder the plugin needs.
type Forwarder interface {
	Forward(ctx context.Context, input any) forwarder.Envelope
}

// Config configures the RPC listener.
type Config struct {
	Host    string        `mapstructure:"host"`
	Port    int           `mapstructure:"port"`
	Timeout time.Duration `mapstructure:"timeout"` // per call; 0 disables
}

// Plugin is the RPC receiver.
type Plugin struct {
	fwd     Forwarder
	timeout time.Duration
}

// New creates a Plugin bound to fwd.
func New(fwd Forwarder, timeout time.Duration) *Plugin {
	return &Plugin{
		fwd:     fwd,
		timeout: timeout,
	}
}

// CallMethod dispatches req. Failures are reported in res, never as an RPC error,
// so the caller always receives a Response.
//
// The Args of a Forward call are the forwarder input: {"arg1": {...}} is
// unwrapped as usual, any other mapping is sent as-is.
func (p *Plugin) CallMethod(req Request, res *Response) error {
	switch normalizeMethod(req.Method) {
	case MethodForward:
		callID := uuid.NewString()
		logger.Component("plugin").Debug().Str("call_id", callID).Msg("Forward called")

		ctx := context.Background()
		if p.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.timeout)
			defer cancel()
		}

		var input any = req.Args
		if req.Args == nil {
			input = map[string]any{}
		}
		env := p.fwd.Forward(ctx, input)

		*res = Response{Success: env.Result.Success, Data: env.Map()}
		if !env.Result.Success {
			res.Error = env.Result.Message
		}
		logger.Component("plugin").Debug().Str("call_id", callID).Bool("success", res.Success).Msg("Forward finished")
		return nil
	default:
		*res = Response{Success: false, Error: fmt.Sprintf("unknown method: %s", req.Method)}
		return nil
	}
}

func normalizeMethod(m string) string {
	if m == "" {
		return m
	}
	return strings.ToUpper(m[:1]) + m[1:]
}

// Server serves a Plugin over TCP with net/rpc.
type Server struct {
	rpc      *rpc.Server
	listener net.Listener

	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
	conns  map[net.Conn]struct{}
}

// Listen registers p on a private rpc.Server and binds cfg.Host:cfg.Port.
// Host defaults to 127.0.0.1; port 0 picks a free port.
func Listen(cfg Config, p *Plugin) (*Server, error) {
	srv := rpc.NewServer()
	if err := srv.RegisterName(ServiceName, p); err != nil {
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	ln, err := net.Listen("tcp", net.JoinHostPort(host, fmt.Sprint(cfg.Port)))
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}

	return &Server{
		rpc:      srv,
		listener: ln,
		conns:    make(map[net.Conn]struct{}),
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve accepts connections until Close. It returns nil after Close.
func (s *Server) Serve() error {
	logger.Component("plugin").Info().Msgf("Plugin listening on %s", s.listener.Addr())
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.rpc.ServeConn(conn)

			s.mu.Lock()
			delete(s.conns, conn)
			s.mu.Unlock()
		}()
	}
}

// Close stops accepting, closes open connections and waits for them to finish.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	err := s.listener.Close()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return err
}
