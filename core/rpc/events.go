package rpc

import (
	"context"

	"github.com/sourcegraph/jsonrpc2"
)

// EventSink is handed to the emulator so it can push Status/NextCode/Frame/
// Audio notifications to every connected RPC client, per spec.md §6.
type EventSink struct {
	conns []*jsonrpc2.Conn
}

// track registers a connection to receive future notifications; called
// once per accepted connection.
func (e *EventSink) track(conn *jsonrpc2.Conn) {
	e.conns = append(e.conns, conn)
}

func (e *EventSink) notify(ctx context.Context, method string, params interface{}) {
	live := e.conns[:0]
	for _, c := range e.conns {
		if c.Err() != nil {
			continue
		}
		_ = c.Notify(ctx, method, params)
		live = append(live, c)
	}
	e.conns = live
}

// StatusEvent is the Status snapshot: running state, PC, cycle count,
// speed, breakpoint count and per-drive status. It carries neither the full
// register file nor per-SCSI-target capacity.
type StatusEvent struct {
	Running     bool     `json:"running"`
	PC          uint32   `json:"pc"`
	Cycles      uint64   `json:"cycles"`
	Speed       string   `json:"speed"`
	Breakpoints int      `json:"breakpoints"`
	DriveStatus []string `json:"driveStatus"`
}

// NotifyStatus pushes a Status event to every connected client.
func (e *EventSink) NotifyStatus(ctx context.Context, ev StatusEvent) { e.notify(ctx, "Status", ev) }

// NextCodeEvent carries the bytes surrounding PC for the disassembler UI.
type NextCodeEvent struct {
	Address uint32 `json:"address"`
	Bytes   []byte `json:"bytes"`
}

// NotifyNextCode pushes a NextCode event to every connected client.
func (e *EventSink) NotifyNextCode(ctx context.Context, ev NextCodeEvent) {
	e.notify(ctx, "NextCode", ev)
}

// FrameEvent carries one rendered video frame's raw RGBA8 pixels.
type FrameEvent struct {
	Width, Height int    `json:"width,height"`
	Pixels        []byte `json:"pixels"`
}

// NotifyFrame pushes a Frame event to every connected client.
func (e *EventSink) NotifyFrame(ctx context.Context, ev FrameEvent) { e.notify(ctx, "Frame", ev) }

// AudioEvent carries one PCM sample block.
type AudioEvent struct {
	Samples []float64 `json:"samples"`
}

// NotifyAudio pushes an Audio event to every connected client.
func (e *EventSink) NotifyAudio(ctx context.Context, ev AudioEvent) { e.notify(ctx, "Audio", ev) }
