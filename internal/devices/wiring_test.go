package devices

import (
	"testing"

	"github.com/aerovm/workerplane/internal/devices/audio"
	"github.com/aerovm/workerplane/internal/devices/net"
	"github.com/aerovm/workerplane/internal/devices/pci"
	"github.com/aerovm/workerplane/internal/devices/usb"
	"github.com/aerovm/workerplane/internal/devices/virtio"
	"github.com/aerovm/workerplane/internal/snapshot"
)

// loopbackExporter stands in for a VM runtime's free-function export form:
// Save captures whatever the registry produced, Restore hands the same
// bytes straight back, so a round trip through it exercises exactly the
// registry's own encode/dispatch/decode path with no VM involved.
type loopbackExporter struct {
	cpu, mmu []byte
	devices  []snapshot.ExportedDevice
}

func (l *loopbackExporter) Save(path string, cpu, mmu []byte, devices []snapshot.ExportedDevice) error {
	l.cpu, l.mmu, l.devices = cpu, mmu, devices
	return nil
}

func (l *loopbackExporter) Restore(path string) (snapshot.CPUMMUCapture, []snapshot.ExportedDevice, error) {
	return snapshot.CPUMMUCapture{CPU: l.cpu, MMU: l.mmu}, l.devices, nil
}

// TestWireSaveRestoreRoundTrip builds one real instance of every device kind
// this package wires, drives a save and restore through the actual
// snapshot.Registry (not a hand-written fake hook), and checks that each
// device's in-memory state reflects what was restored.
func TestWireSaveRestoreRoundTrip(t *testing.T) {
	registry := snapshot.NewRegistry(nil)

	host := pci.NewHostBridge(pci.HostBridgeConfig{})
	uhci := usb.NewUHCI()
	uhci.FrameNumber = 99
	hda := audio.NewHDA()
	hda.GlobalCtl = 0x3
	e1000 := net.NewE1000([6]byte{0x52, 0x54, 0x00, 0x00, 0x00, 0x01})
	e1000.RDT = 7
	keyboard := virtio.NewInput(virtio.InputTypeKeyboard, "keyboard")
	keyboard.KeyDown(virtio.KEY_A)

	Wire(registry, Devices{
		PCI:      host,
		UHCI:     uhci,
		HDA:      hda,
		E1000:    e1000,
		Keyboard: keyboard,
	})

	exp := &loopbackExporter{}
	if err := registry.ExportFreeFunction(exp, "snap.bin", snapshot.SaveInput{CPU: []byte("cpu"), MMU: []byte("mmu")}); err != nil {
		t.Fatalf("ExportFreeFunction: %v", err)
	}

	restoredUHCI := usb.NewUHCI()
	restoredHDA := audio.NewHDA()
	restoredE1000 := net.NewE1000([6]byte{})
	restoredKeyboard := virtio.NewInput(virtio.InputTypeKeyboard, "keyboard")
	restoredHost := pci.NewHostBridge(pci.HostBridgeConfig{})

	restored := snapshot.NewRegistry(nil)
	Wire(restored, Devices{
		PCI:      restoredHost,
		UHCI:     restoredUHCI,
		HDA:      restoredHDA,
		E1000:    restoredE1000,
		Keyboard: restoredKeyboard,
	})

	if _, err := restored.RestoreFreeFunction(exp, "snap.bin"); err != nil {
		t.Fatalf("RestoreFreeFunction: %v", err)
	}

	if restoredUHCI.FrameNumber != uhci.FrameNumber {
		t.Fatalf("UHCI state did not survive registry round trip: got %d want %d", restoredUHCI.FrameNumber, uhci.FrameNumber)
	}
	if restoredHDA.GlobalCtl != hda.GlobalCtl {
		t.Fatalf("HDA state did not survive registry round trip: got %#x want %#x", restoredHDA.GlobalCtl, hda.GlobalCtl)
	}
	if restoredE1000.RDT != e1000.RDT {
		t.Fatalf("E1000 state did not survive registry round trip: got %d want %d", restoredE1000.RDT, e1000.RDT)
	}
	pressed := restoredKeyboard.PressedKeys()
	if len(pressed) != 1 || pressed[0] != virtio.KEY_A {
		t.Fatalf("keyboard VINP state did not survive registry round trip: got %v", pressed)
	}
}
