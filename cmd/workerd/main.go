// Command workerd is the entrypoint a host runtime execs (or forks from a
// worker pool) to run one CPU/GPU/IO/NET worker process. It wires the
// on-disk config, the structured logger, the coordinator-facing RPC socket,
// and the snapshot registry together. For the IO role it also constructs the
// device models and registers them through internal/devices.Wire.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/aerovm/workerplane/internal/config"
	"github.com/aerovm/workerplane/internal/devices"
	"github.com/aerovm/workerplane/internal/devices/audio"
	netdev "github.com/aerovm/workerplane/internal/devices/net"
	"github.com/aerovm/workerplane/internal/devices/pci"
	"github.com/aerovm/workerplane/internal/devices/usb"
	"github.com/aerovm/workerplane/internal/devices/virtio"
	"github.com/aerovm/workerplane/internal/ipc"
	"github.com/aerovm/workerplane/internal/snapshot"
	"github.com/aerovm/workerplane/internal/worker"
	"github.com/aerovm/workerplane/internal/wlog"
)

func main() {
	if runtime.GOOS == "darwin" {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "workerd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)

	role := fs.String("role", "", "worker role: cpu, gpu, io, or net")
	socketPath := fs.String("socket", "", "path to the coordinator-facing IPC socket (defaults to a generated path)")
	configPath := fs.String("config", "", "path to the YAML site config")
	strictDecoding := fs.Bool("strict-snapshot-decoding", false, "treat a malformed device snapshot blob as a hard restore failure instead of skip-with-warning")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -role={cpu,gpu,io,net} [flags]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Runs one worker process, listening for coordinator RPCs over a Unix socket.\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}

	r := worker.Role(*role)
	switch r {
	case worker.RoleCPU, worker.RoleGPU, worker.RoleIO, worker.RoleNet:
	default:
		fs.Usage()
		return fmt.Errorf("invalid -role %q", *role)
	}

	logger := wlog.New("info", string(r))

	cfg := config.Load(logger, *configPath)
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger = wlog.New(cfg.LogLevel, string(r))

	path := *socketPath
	if path == "" {
		path = ipc.SocketPath()
	}

	registry := snapshot.NewRegistry(logger)
	registry.StrictDecoding = *strictDecoding

	chain := worker.NewChain()
	coordinator, reattach := buildCoordinator(logger, r, registry, chain)

	status := worker.NewStatusFlags()

	mux := ipc.NewMux()
	registerSnapshotHandlers(mux, registry, chain, coordinator, reattach)

	srv, err := ipc.NewServer(path, mux.Handler())
	if err != nil {
		return fmt.Errorf("start ipc server: %w", err)
	}
	defer srv.Close()

	logger.Info("worker listening", "socket", srv.SocketPath())
	status.SetReady(r)
	coordinator.Init()

	return srv.Serve()
}

// buildCoordinator assembles the per-role snapshot pause/resume
// coordinator (§4.1) with the drain functions and shared-state gates that
// role's in-flight work requires. For the IO worker it also populates and
// wires the device registry (§4.2) with every device model this build
// owns.
func buildCoordinator(logger *slog.Logger, r worker.Role, registry *snapshot.Registry, snapOps *worker.Chain) (*worker.Coordinator, snapshot.ReattachDisks) {
	switch r {
	case worker.RoleIO:
		disk := worker.NewDiskChain()
		ioPause := worker.NewIOPauseController(disk)

		wireIODevices(registry)

		coord := worker.NewCoordinator(logger, []worker.DrainFunc{ioPause.Drain}, []worker.GlobalsGate{ioPause})
		return coord, nil

	case worker.RoleGPU:
		gate := worker.NewPauseGate(nil)
		coord := worker.NewCoordinator(logger, []worker.DrainFunc{gate.Drain}, []worker.GlobalsGate{gate})
		return coord, nil

	case worker.RoleCPU:
		cpuDrain := func(ctx context.Context) error {
			return snapOps.Run(ctx, func(context.Context) error { return nil })
		}
		coord := worker.NewCoordinator(logger, []worker.DrainFunc{cpuDrain}, nil)
		return coord, nil

	default: // RoleNet: only the wake/shutdown discipline in §4.5 is core.
		coord := worker.NewCoordinator(logger, nil, nil)
		return coord, nil
	}
}

// wireIODevices constructs every device model the IO worker owns outright
// (PCI host bridge, USB controllers, virtio-input keyboard/mouse, audio
// codecs, and network devices) and registers them against the registry via
// internal/devices.Wire.
func wireIODevices(registry *snapshot.Registry) {
	host := pci.NewHostBridge(pci.HostBridgeConfig{})

	devices.Wire(registry, devices.Devices{
		PCI: host,

		Keyboard: virtio.NewInput(virtio.InputTypeKeyboard, "keyboard"),
		Mouse:    virtio.NewInput(virtio.InputTypeMouse, "mouse"),

		UHCI: usb.NewUHCI(),
		EHCI: usb.NewEHCI(),
		XHCI: usb.NewXHCI(4),

		HDA:         audio.NewHDA(),
		VirtioSound: audio.NewVirtioSound(),

		E1000: netdev.NewE1000([6]byte{0x52, 0x54, 0x00, 0x12, 0x34, 0x56}),
		Stack: netdev.NewStack(),
	})
}

// registerSnapshotHandlers wires the four coordinator-facing snapshot RPCs
// (§4.1/§6) onto the IPC message types, running save/restore through the
// per-worker serial op chain so concurrent RPCs never overlap, and pause/
// resume through the per-role Coordinator.
func registerSnapshotHandlers(mux *ipc.Mux, registry *snapshot.Registry, chain *worker.Chain, coordinator *worker.Coordinator, reattach snapshot.ReattachDisks) {
	mux.Handle(ipc.MsgSnapshotPause, func(payload []byte) (any, error) {
		var req worker.PauseRequest
		if err := decodeJSON(payload, &req); err != nil {
			return nil, err
		}
		if err := worker.ValidateRequestID(req.RequestID); err != nil {
			return worker.PauseResponse{RequestID: req.RequestID, OK: false, Error: worker.NewRPCError("InvalidArgument", err)}, nil
		}
		if err := coordinator.Pause(context.Background()); err != nil {
			return worker.PauseResponse{RequestID: req.RequestID, OK: false, Error: worker.NewRPCError("SnapshotError", err)}, nil
		}
		return worker.PauseResponse{RequestID: req.RequestID, OK: true}, nil
	})

	mux.Handle(ipc.MsgSnapshotResume, func(payload []byte) (any, error) {
		var req worker.ResumeRequest
		if err := decodeJSON(payload, &req); err != nil {
			return nil, err
		}
		if err := worker.ValidateRequestID(req.RequestID); err != nil {
			return worker.ResumeResponse{RequestID: req.RequestID, OK: false, Error: worker.NewRPCError("InvalidArgument", err)}, nil
		}
		if err := coordinator.Resume(context.Background()); err != nil {
			return worker.ResumeResponse{RequestID: req.RequestID, OK: false, Error: worker.NewRPCError("SnapshotError", err)}, nil
		}
		return worker.ResumeResponse{RequestID: req.RequestID, OK: true}, nil
	})

	mux.Handle(ipc.MsgSnapshotSave, func(payload []byte) (any, error) {
		var req worker.SaveRequest
		if err := decodeJSON(payload, &req); err != nil {
			return nil, err
		}
		if err := worker.ValidateRequestID(req.RequestID); err != nil {
			return worker.SaveResponse{RequestID: req.RequestID, OK: false, Error: worker.NewRPCError("InvalidArgument", err)}, nil
		}
		if req.Path == "" {
			return worker.SaveResponse{RequestID: req.RequestID, OK: false, Error: worker.NewRPCError("InvalidArgument", errors.New("path is required"))}, nil
		}

		var resp worker.SaveResponse
		err := chain.Run(context.Background(), func(ctx context.Context) error {
			// No VM-runtime exporter is wired into this minimal
			// entrypoint (the VM runtime is an out-of-scope external
			// collaborator, §1); ExportFreeFunction surfaces the
			// correct §7 "missing runtime" RPC error in that case.
			err := registry.ExportFreeFunction(nil, req.Path, snapshot.SaveInput{})
			if err != nil {
				resp = worker.SaveResponse{RequestID: req.RequestID, OK: false, Error: worker.NewRPCError("MissingRuntime", err)}
				return nil
			}
			resp = worker.SaveResponse{RequestID: req.RequestID, OK: true}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return resp, nil
	})

	mux.Handle(ipc.MsgSnapshotRestore, func(payload []byte) (any, error) {
		var req worker.RestoreRequest
		if err := decodeJSON(payload, &req); err != nil {
			return nil, err
		}
		if err := worker.ValidateRequestID(req.RequestID); err != nil {
			return worker.RestoreResponse{RequestID: req.RequestID, OK: false, Error: worker.NewRPCError("InvalidArgument", err)}, nil
		}
		if req.Path == "" {
			return worker.RestoreResponse{RequestID: req.RequestID, OK: false, Error: worker.NewRPCError("InvalidArgument", errors.New("path is required"))}, nil
		}

		var resp worker.RestoreResponse
		err := chain.Run(context.Background(), func(ctx context.Context) error {
			result, err := registry.RestoreFreeFunction(nil, req.Path)
			if err != nil {
				resp = worker.RestoreResponse{RequestID: req.RequestID, OK: false, Error: worker.NewRPCError("MissingRuntime", err)}
				return nil
			}
			if err := snapshot.RunReattachDisks(reattach, result); err != nil {
				resp = worker.RestoreResponse{RequestID: req.RequestID, OK: false, Error: worker.NewRPCError("ReattachError", err)}
				return nil
			}
			registry.SetCached(result.RestoredDevices)
			wireBlobs := make([]worker.DeviceBlobWire, 0, len(result.RestoredDevices))
			for _, b := range result.RestoredDevices {
				wireBlobs = append(wireBlobs, worker.DeviceBlobWire{Kind: string(b.Kind), Bytes: b.Bytes})
			}
			resp = worker.RestoreResponse{RequestID: req.RequestID, OK: true, CPU: result.CPU, MMU: result.MMU, Devices: wireBlobs}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return resp, nil
	})
}

func decodeJSON(payload []byte, v any) error {
	if len(payload) == 0 {
		return errors.New("workerd: empty request payload")
	}
	return json.Unmarshal(payload, v)
}
