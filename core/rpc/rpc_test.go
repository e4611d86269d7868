package rpc_test

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/snowmac/snow/core/rpc"
	"github.com/snowmac/snow/test"
)

type stubBackend struct{ ran bool }

func (s *stubBackend) InsertFloppy(int, string) error         { return nil }
func (s *stubBackend) SaveFloppy(int) error                   { return nil }
func (s *stubBackend) EjectFloppy(int) error                  { return nil }
func (s *stubBackend) MouseUpdateAbsolute(int, int) error     { return nil }
func (s *stubBackend) MouseUpdateRelative(int, int) error     { return nil }
func (s *stubBackend) KeyEvent(uint8, bool) error             { return nil }
func (s *stubBackend) Run() error                             { s.ran = true; return nil }
func (s *stubBackend) Stop() error                            { return nil }
func (s *stubBackend) Step() (json.RawMessage, error)         { return json.RawMessage(`{}`), nil }
func (s *stubBackend) SetSpeed(string) error                  { return nil }
func (s *stubBackend) SetFpsLimit(int) error                  { return nil }
func (s *stubBackend) ToggleBreakpoint(int, uint32, int) (json.RawMessage, error) {
	return json.RawMessage(`{"id":"x"}`), nil
}
func (s *stubBackend) ListBreakpoints() (json.RawMessage, error) { return json.RawMessage(`[]`), nil }
func (s *stubBackend) RemoveBreakpoint(string) error             { return nil }
func (s *stubBackend) BusWrite(uint32, int, uint32) error        { return nil }
func (s *stubBackend) BusRead(uint32, int) (uint32, error)       { return 0x42, nil }
func (s *stubBackend) Disassemble(uint32, int) (json.RawMessage, error) {
	return json.RawMessage(`[]`), nil
}
func (s *stubBackend) AttachHdd(int, string) error   { return nil }
func (s *stubBackend) AttachCdrom(int, string) error { return nil }
func (s *stubBackend) Detach(int) error               { return nil }
func (s *stubBackend) ToggleBusTrace() (bool, error)  { return true, nil }
func (s *stubBackend) ToggleHistory() (bool, error)   { return true, nil }
func (s *stubBackend) Quit() error                    { return nil }

func TestRunCommandDispatchesToBackend(t *testing.T) {
	backend := &stubBackend{}
	srv, err := rpc.ListenTCP("127.0.0.1:0", backend)
	test.ExpectSuccess(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx)

	conn, err := net.Dial("tcp", srv.Addr().String())
	test.ExpectSuccess(t, err)
	defer conn.Close()

	client := jsonrpc2.NewConn(ctx, jsonrpc2.NewPlainObjectStream(conn), nil)
	var reply map[string]interface{}
	callCtx, cancelCall := context.WithTimeout(ctx, 2*time.Second)
	defer cancelCall()
	test.ExpectSuccess(t, client.Call(callCtx, "Run", nil, &reply))
	test.ExpectEquality(t, backend.ran, true)
}

func TestUnknownMethodReturnsMethodNotFound(t *testing.T) {
	backend := &stubBackend{}
	srv, err := rpc.ListenTCP("127.0.0.1:0", backend)
	test.ExpectSuccess(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx)

	conn, err := net.Dial("tcp", srv.Addr().String())
	test.ExpectSuccess(t, err)
	defer conn.Close()

	client := jsonrpc2.NewConn(ctx, jsonrpc2.NewPlainObjectStream(conn), nil)
	var reply map[string]interface{}
	callCtx, cancelCall := context.WithTimeout(ctx, 2*time.Second)
	defer cancelCall()
	err = client.Call(callCtx, "DoesNotExist", nil, &reply)
	test.ExpectFailure(t, err)
}
