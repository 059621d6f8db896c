// Package devices binds the concrete device models in internal/devices/*
// to the IO worker's snapshot.Registry: it is the one place that knows
// which canonical kind, numeric id, and hook-variant name (§4.2's registry
// table) each device model implements, so internal/snapshot itself never
// imports a concrete device package.
package devices

import (
	"github.com/aerovm/workerplane/internal/devices/audio"
	"github.com/aerovm/workerplane/internal/devices/net"
	"github.com/aerovm/workerplane/internal/devices/pci"
	"github.com/aerovm/workerplane/internal/devices/usb"
	"github.com/aerovm/workerplane/internal/devices/virtio"
	"github.com/aerovm/workerplane/internal/snapshot"
)

// Devices holds whichever concrete device instances this worker process
// owns this session. Every field is optional: a nil field means that
// device class is simply absent this cycle (§7 "missing save hook: skip
// silently"), matching a host build that was configured without it. None
// of these device models depend on a VM-runtime handle to construct; a
// host that wires a real MMIO exit dispatcher can still attach the PCI
// host bridge's ReadMMIO/WriteMMIO and the virtio-input devices' queues to
// it, but this package only needs the save/restore hooks.
type Devices struct {
	PCI *pci.HostBridge

	Keyboard *virtio.Input
	Mouse    *virtio.Input

	UHCI *usb.UHCI
	EHCI *usb.EHCI
	XHCI *usb.XHCI

	HDA         *audio.HDA
	VirtioSound *audio.VirtioSound

	E1000 *net.E1000
	Stack *net.Stack
}

// Wire registers every non-nil device in d against the registry under its
// canonical kind and (for USB/virtio-input sub-devices) container tag,
// binding explicit function pointers per the §9 design note rather than
// probing method names at runtime. Calling Wire again with a different
// Devices value re-registers in place; Registry.Register preserves
// save-order position for kinds already present.
func Wire(registry *snapshot.Registry, d Devices) {
	if d.PCI != nil {
		registry.Register(snapshot.DeviceDescriptor{
			Kind: snapshot.KindPCIConfig,
			ID:   14,
			Save: d.PCI.SaveState,
			Load: d.PCI.LoadState,
		})
	}

	if d.Keyboard != nil {
		registry.RegisterVINPDevice(snapshot.ControllerHook{
			Tag:  snapshot.VINPTagKeyboard,
			Save: d.Keyboard.SaveState,
			Load: d.Keyboard.LoadState,
		})
	}
	if d.Mouse != nil {
		registry.RegisterVINPDevice(snapshot.ControllerHook{
			Tag:  snapshot.VINPTagMouse,
			Save: d.Mouse.SaveState,
			Load: d.Mouse.LoadState,
		})
	}

	if d.UHCI != nil {
		registry.RegisterUSBController(snapshot.ControllerHook{
			Tag:  snapshot.USBTagUHCI,
			Save: d.UHCI.SaveState,
			Load: d.UHCI.LoadState,
		})
	}
	if d.EHCI != nil {
		registry.RegisterUSBController(snapshot.ControllerHook{
			Tag:  snapshot.USBTagEHCI,
			Save: d.EHCI.SaveState,
			Load: d.EHCI.LoadState,
		})
	}
	if d.XHCI != nil {
		registry.RegisterUSBController(snapshot.ControllerHook{
			Tag:  snapshot.USBTagXHCI,
			Save: d.XHCI.SaveState,
			Load: d.XHCI.LoadState,
		})
	}

	if d.HDA != nil {
		registry.Register(snapshot.DeviceDescriptor{
			Kind: snapshot.KindAudioHDA,
			ID:   3,
			Save: d.HDA.SaveState,
			Load: d.HDA.LoadState,
		})
	}
	if d.VirtioSound != nil {
		registry.Register(snapshot.DeviceDescriptor{
			Kind: snapshot.KindAudioVirtio,
			ID:   4,
			Save: d.VirtioSound.SaveState,
			Load: d.VirtioSound.LoadState,
		})
	}

	if d.E1000 != nil {
		registry.Register(snapshot.DeviceDescriptor{
			Kind: snapshot.KindNetE1000,
			ID:   6,
			Save: d.E1000.SaveState,
			Load: d.E1000.LoadState,
		})
	}
	if d.Stack != nil {
		registry.Register(snapshot.DeviceDescriptor{
			Kind: snapshot.KindNetStack,
			ID:   7,
			Save: d.Stack.SaveState,
			Load: d.Stack.LoadState,
		})
		registry.SetNetStackPostLoadPolicy(func() error {
			return d.Stack.ApplyTCPRestorePolicy("drop")
		})
	}
}
