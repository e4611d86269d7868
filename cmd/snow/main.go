// Command snow is the headless entry point for the compact Macintosh core:
// it loads a ROM image, builds the emulator for a chosen (or identified)
// model, optionally serves the JSON-RPC command surface of spec.md §6 over
// a Unix socket, and runs the tick loop until interrupted. The GUI/terminal
// front-ends described in spec.md §1 as external collaborators are not
// part of this tree; this binary exists so the core can be driven and
// exercised without one.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/snowmac/snow/core/emulator"
	"github.com/snowmac/snow/core/model"
	"github.com/snowmac/snow/core/rpc"
	"github.com/snowmac/snow/logger"
	"github.com/snowmac/snow/modalflag"
	"github.com/snowmac/snow/prefs"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	md := modalflag.Modes{Output: os.Stdout}
	md.NewArgs(args)
	modelFlag := md.AddString("model", "", "mac model: 128k, 512k, plus, se, classic (default: identify from ROM)")
	rpcFlag := md.AddBool("rpc", false, "serve the JSON-RPC command surface over a Unix socket")
	tcpFlag := md.AddString("rpctcp", "", "serve JSON-RPC over TCP at this address instead of a Unix socket")

	p, err := md.Parse()
	if err != nil {
		return err
	}
	if p == modalflag.ParseHelp {
		return nil
	}

	rest := md.RemainingArgs()
	if len(rest) == 0 {
		return fmt.Errorf("snow: missing ROM path")
	}
	romPath := rest[0]

	rom, err := os.ReadFile(romPath)
	if err != nil {
		return fmt.Errorf("snow: reading ROM: %w", err)
	}

	desc, err := resolveModel(*modelFlag, rom)
	if err != nil {
		return err
	}

	disk, err := prefs.NewDisk(defaultPrefsPath())
	if err != nil {
		return fmt.Errorf("snow: prefs: %w", err)
	}
	_ = disk.Load()

	log := logger.NewLogger(1024)
	log.Log(logger.Allow, "snow", fmt.Sprintf("model %s, ROM %s (%d bytes)", desc.Type, romPath, len(rom)))

	e, err := emulator.New(desc, rom)
	if err != nil {
		return fmt.Errorf("snow: emulator: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if *rpcFlag || *tcpFlag != "" {
		var server *rpc.Server
		if *tcpFlag != "" {
			server, err = rpc.ListenTCP(*tcpFlag, e)
		} else {
			path := rpc.SocketPath(os.Getpid())
			server, err = rpc.Listen(path, e)
			log.Log(logger.Allow, "snow", "rpc listening on "+path)
		}
		if err != nil {
			return fmt.Errorf("snow: rpc: %w", err)
		}
		e.AttachEvents(server.Events)
		go func() {
			if err := server.Serve(ctx); err != nil && ctx.Err() == nil {
				log.Log(logger.Allow, "snow", err.Error())
			}
		}()
	}

	if err := e.Run(); err != nil {
		return fmt.Errorf("snow: run: %w", err)
	}
	return e.Loop(ctx)
}

func resolveModel(name string, rom []byte) (model.Descriptor, error) {
	if name == "" {
		if t, ok := model.IdentifyROM(rom); ok {
			return model.Descriptors[t], nil
		}
		return model.Descriptor{}, fmt.Errorf("snow: could not identify ROM model, pass -model")
	}

	switch name {
	case "128k":
		return model.Descriptors[model.Mac128K], nil
	case "512k":
		return model.Descriptors[model.Mac512K], nil
	case "plus":
		return model.Descriptors[model.MacPlus], nil
	case "se":
		return model.Descriptors[model.MacSE], nil
	case "classic":
		return model.Descriptors[model.MacClassic], nil
	default:
		return model.Descriptor{}, fmt.Errorf("snow: unknown model %q", name)
	}
}

func defaultPrefsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "snow.prefs"
	}
	return dir + "/snow.prefs"
}
