// Package rpc implements the optional JSON-RPC 2.0 command surface of
// spec.md §6: a newline-delimited request/response protocol served over a
// Unix socket (or TCP, for development), dispatching named commands to a
// Backend and forwarding its Status/NextCode/Frame/Audio events back to
// connected clients as notifications.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/sourcegraph/jsonrpc2"
)

// RequestTimeout bounds how long a single request may take before the
// server answers with an internal-error envelope, per spec.md §6.
const RequestTimeout = 30 * time.Second

// Backend is the command surface the emulator implements; the RPC layer
// never touches emulator internals directly, only this interface, so that
// core/rpc stays free of a core/emulator import cycle.
type Backend interface {
	InsertFloppy(drive int, path string) error
	SaveFloppy(drive int) error
	EjectFloppy(drive int) error

	MouseUpdateAbsolute(x, y int) error
	MouseUpdateRelative(dx, dy int) error
	KeyEvent(scancode uint8, down bool) error

	Run() error
	Stop() error
	Step() (json.RawMessage, error)
	SetSpeed(mode string) error
	SetFpsLimit(fps int) error

	ToggleBreakpoint(kind int, address uint32, level int) (json.RawMessage, error)
	ListBreakpoints() (json.RawMessage, error)
	RemoveBreakpoint(id string) error

	BusWrite(addr uint32, width int, value uint32) error
	BusRead(addr uint32, width int) (uint32, error)
	Disassemble(addr uint32, count int) (json.RawMessage, error)

	AttachHdd(id int, path string) error
	AttachCdrom(id int, path string) error
	Detach(id int) error

	ToggleBusTrace() (bool, error)
	ToggleHistory() (bool, error)

	Quit() error
}

// SocketPath returns the Unix socket path this server listens on by
// default, per spec.md §6: $XDG_RUNTIME_DIR/snow-<pid>.sock, falling back
// to /tmp.
func SocketPath(pid int) string {
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, fmt.Sprintf("snow-%d.sock", pid))
}

// Server serves the JSON-RPC command surface over accepted connections.
type Server struct {
	backend  Backend
	listener net.Listener
	Events   *EventSink
}

// Listen opens a Unix socket at path (removing any stale socket file
// first) and returns a Server ready to Serve connections against backend.
func Listen(path string, backend Backend) (*Server, error) {
	_ = os.Remove(path)
	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("rpc: listen on %s: %w", path, err)
	}
	return &Server{backend: backend, listener: l, Events: &EventSink{}}, nil
}

// ListenTCP opens a TCP listener, for development use only per spec.md §6.
func ListenTCP(addr string, backend Backend) (*Server, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("rpc: listen on %s: %w", addr, err)
	}
	return &Server{backend: backend, listener: l, Events: &EventSink{}}, nil
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// Serve accepts connections until the listener is closed or ctx is
// cancelled, handling each one on its own jsonrpc2 connection.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	stream := jsonrpc2.NewPlainObjectStream(conn)
	handler := &handler{backend: s.backend}
	rpcConn := jsonrpc2.NewConn(ctx, stream, handler)
	s.Events.track(rpcConn)
	<-rpcConn.DisconnectNotify()
}

// handler implements jsonrpc2.Handler, dispatching each request to the
// Backend and translating errors into the JSON-RPC error codes spec.md §6
// requires.
type handler struct {
	backend Backend
}

func (h *handler) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	reqCtx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	result, err := h.dispatch(reqCtx, req)
	if err != nil {
		if req.Notif {
			return
		}
		conn.ReplyWithError(ctx, req.ID, toRPCError(err))
		return
	}
	if req.Notif {
		return
	}
	if err := conn.Reply(ctx, req.ID, result); err != nil {
		return
	}
}

// ErrMethodNotFound is the sentinel translated to JSON-RPC code -32601.
var ErrMethodNotFound = errors.New("rpc: method not found")

// ErrInvalidParams is the sentinel translated to JSON-RPC code -32602.
var ErrInvalidParams = errors.New("rpc: invalid params")

func toRPCError(err error) *jsonrpc2.Error {
	switch {
	case errors.Is(err, ErrMethodNotFound):
		return &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: err.Error()}
	case errors.Is(err, ErrInvalidParams):
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
	default:
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInternalError, Message: err.Error()}
	}
}

func unmarshalParams(req *jsonrpc2.Request, v interface{}) error {
	if req.Params == nil {
		return nil
	}
	if err := json.Unmarshal(*req.Params, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return nil
}
