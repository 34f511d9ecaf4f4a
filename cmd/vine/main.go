package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/vk/vine/internal/ctxlog"
	"github.com/vk/vine/internal/declhcl"
	"github.com/vk/vine/internal/eventstream"
	"github.com/vk/vine/internal/graph"
	"github.com/vk/vine/internal/httptask"
	"github.com/vk/vine/internal/runtime"
	"github.com/vk/vine/internal/runtimecfg"
	"github.com/vk/vine/internal/vinecli"
)

// main is the entrypoint for the vine binary.
func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if err := run(os.Stdout, os.Args[1:]); err != nil {
		if exitErr, ok := err.(*vinecli.ExitError); ok {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		// runtime.ErrNoInitialMachine surfaces here too: no initial machine
		// was ever declared, the Go equivalent of the source's abort().
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the application logic, split out from main for
// testability, in the teacher's cmd/cli idiom.
func run(outW io.Writer, args []string) error {
	cfg, shouldExit, err := vinecli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	ctx := ctxlog.WithLogger(context.Background(), logger)

	var eng *runtime.Engine
	var reg *graph.Registry

	if cfg.HCLPath != "" {
		reg, err = declhcl.LoadFile(cfg.HCLPath, demoFuncRegistry(&eng))
		if err != nil {
			return fmt.Errorf("loading %s: %w", cfg.HCLPath, err)
		}
	} else {
		pingURL, stopDemoServer, err := startDemoHTTPServer()
		if err != nil {
			return fmt.Errorf("starting demo http server: %w", err)
		}
		defer stopDemoServer()

		netClient := httptask.NewClient()
		defer netClient.Close()

		reg = buildDemoGraph(&eng, netClient, pingURL)
	}

	maxThreads := cfg.Workers
	if maxThreads == 0 {
		maxThreads, err = runtimecfg.MaxThreads()
		if err != nil {
			return err
		}
	}

	opts := []runtime.Option{runtime.WithMaxThreads(maxThreads)}

	var eventServer *eventstream.Server
	if cfg.EventsAddr != "" {
		broadcaster := eventstream.NewBroadcaster(logger)
		eventServer = eventstream.NewServer(cfg.EventsAddr, broadcaster, logger)
		eventServer.Start()
		defer eventServer.Shutdown(ctx)

		opts = append(opts, runtime.WithEventSink(func(kind runtime.EventKind, machine graph.MachineID) {
			broadcaster.Publish(eventstream.Event{
				Type:      eventKindToType(kind),
				Machine:   uint32(machine),
				Timestamp: time.Now(),
			})
		}))
	}

	eng = runtime.New(reg, opts...)

	return eng.MainLoop(ctx)
}

// eventKindToType maps a runtime.EventKind to its eventstream.EventType
// wire value. The two packages don't share a type so the scheduler core
// stays free of the websocket layer's dependencies.
func eventKindToType(kind runtime.EventKind) eventstream.EventType {
	switch kind {
	case runtime.EventMachineStarted:
		return eventstream.EventMachineStarted
	case runtime.EventMachineQuiesced:
		return eventstream.EventMachineQuiesced
	case runtime.EventMachineSwapped:
		return eventstream.EventMachineSwapped
	case runtime.EventShutdownRequested:
		return eventstream.EventShutdownRequested
	case runtime.EventTaskCompleted:
		return eventstream.EventTaskCompleted
	default:
		return eventstream.EventType(kind)
	}
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// demoFuncRegistry exposes the demo's named functions for -hcl documents.
// A -hcl document replaces the built-in machine-swap chain; it is not
// loaded alongside it.
func demoFuncRegistry(eng **runtime.Engine) declhcl.FuncRegistry {
	return declhcl.FuncRegistry{
		"hello":           func() { fmt.Println("Hello") },
		"world":           func() { fmt.Println("World!") },
		"requestShutdown": func() { (*eng).RequestShutdown() },
	}
}
