package rpc

import (
	"context"
	"encoding/json"

	"github.com/sourcegraph/jsonrpc2"
)

// Params shapes for the command surface's multi-field methods; single-field
// or no-field methods decode straight into a local struct inline below.

type floppyParams struct {
	Drive int    `json:"drive"`
	Path  string `json:"path,omitempty"`
}

type mouseAbsoluteParams struct {
	X, Y int
}

type mouseRelativeParams struct {
	Dx, Dy int
}

type keyEventParams struct {
	Scancode uint8 `json:"scancode"`
	Down     bool  `json:"down"`
}

type speedParams struct {
	Mode string `json:"mode"`
}

type fpsLimitParams struct {
	FPS int `json:"fps"`
}

type breakpointParams struct {
	Kind    int    `json:"kind"`
	Address uint32 `json:"address"`
	Level   int    `json:"level"`
}

type idParams struct {
	ID string `json:"id"`
}

type busAccessParams struct {
	Address uint32 `json:"address"`
	Width   int    `json:"width"`
	Value   uint32 `json:"value,omitempty"`
}

type disassembleParams struct {
	Address uint32 `json:"address"`
	Count   int    `json:"count"`
}

type attachParams struct {
	ID   int    `json:"id"`
	Path string `json:"path,omitempty"`
}

// dispatch implements the method-name table of spec.md §6's command
// surface, translating JSON params into typed Backend calls.
func (h *handler) dispatch(ctx context.Context, req *jsonrpc2.Request) (interface{}, error) {
	switch req.Method {
	case "InsertFloppy":
		var p floppyParams
		if err := unmarshalParams(req, &p); err != nil {
			return nil, err
		}
		return nil, h.backend.InsertFloppy(p.Drive, p.Path)
	case "SaveFloppy":
		var p floppyParams
		if err := unmarshalParams(req, &p); err != nil {
			return nil, err
		}
		return nil, h.backend.SaveFloppy(p.Drive)
	case "EjectFloppy":
		var p floppyParams
		if err := unmarshalParams(req, &p); err != nil {
			return nil, err
		}
		return nil, h.backend.EjectFloppy(p.Drive)
	case "MouseUpdateAbsolute":
		var p mouseAbsoluteParams
		if err := unmarshalParams(req, &p); err != nil {
			return nil, err
		}
		return nil, h.backend.MouseUpdateAbsolute(p.X, p.Y)
	case "MouseUpdateRelative":
		var p mouseRelativeParams
		if err := unmarshalParams(req, &p); err != nil {
			return nil, err
		}
		return nil, h.backend.MouseUpdateRelative(p.Dx, p.Dy)
	case "KeyEvent":
		var p keyEventParams
		if err := unmarshalParams(req, &p); err != nil {
			return nil, err
		}
		return nil, h.backend.KeyEvent(p.Scancode, p.Down)
	case "Run":
		return nil, h.backend.Run()
	case "Stop":
		return nil, h.backend.Stop()
	case "Step":
		return h.backend.Step()
	case "SetSpeed":
		var p speedParams
		if err := unmarshalParams(req, &p); err != nil {
			return nil, err
		}
		return nil, h.backend.SetSpeed(p.Mode)
	case "SetFpsLimit":
		var p fpsLimitParams
		if err := unmarshalParams(req, &p); err != nil {
			return nil, err
		}
		return nil, h.backend.SetFpsLimit(p.FPS)
	case "ToggleBreakpoint":
		var p breakpointParams
		if err := unmarshalParams(req, &p); err != nil {
			return nil, err
		}
		return h.backend.ToggleBreakpoint(p.Kind, p.Address, p.Level)
	case "ListBreakpoints":
		return h.backend.ListBreakpoints()
	case "RemoveBreakpoint":
		var p idParams
		if err := unmarshalParams(req, &p); err != nil {
			return nil, err
		}
		return nil, h.backend.RemoveBreakpoint(p.ID)
	case "BusWrite":
		var p busAccessParams
		if err := unmarshalParams(req, &p); err != nil {
			return nil, err
		}
		return nil, h.backend.BusWrite(p.Address, p.Width, p.Value)
	case "BusRead":
		var p busAccessParams
		if err := unmarshalParams(req, &p); err != nil {
			return nil, err
		}
		v, err := h.backend.BusRead(p.Address, p.Width)
		if err != nil {
			return nil, err
		}
		return json.RawMessage(itoaJSON(v)), nil
	case "Disassemble":
		var p disassembleParams
		if err := unmarshalParams(req, &p); err != nil {
			return nil, err
		}
		return h.backend.Disassemble(p.Address, p.Count)
	case "AttachHdd":
		var p attachParams
		if err := unmarshalParams(req, &p); err != nil {
			return nil, err
		}
		return nil, h.backend.AttachHdd(p.ID, p.Path)
	case "AttachCdrom":
		var p attachParams
		if err := unmarshalParams(req, &p); err != nil {
			return nil, err
		}
		return nil, h.backend.AttachCdrom(p.ID, p.Path)
	case "Detach":
		var p attachParams
		if err := unmarshalParams(req, &p); err != nil {
			return nil, err
		}
		return nil, h.backend.Detach(p.ID)
	case "ToggleBusTrace":
		return h.backend.ToggleBusTrace()
	case "ToggleHistory":
		return h.backend.ToggleHistory()
	case "Quit":
		return nil, h.backend.Quit()
	default:
		return nil, ErrMethodNotFound
	}
}

func itoaJSON(v uint32) []byte {
	b, _ := json.Marshal(v)
	return b
}
