package snapshot

import (
	"bytes"
	"testing"
)

func hookReturning(data []byte) SaveHook {
	return func() ([]byte, bool) { return data, true }
}

func recordingLoad(out *[]byte) LoadHook {
	return func(data []byte) error {
		*out = append([]byte(nil), data...)
		return nil
	}
}

// TestUSBSingleton is spec property 3 / scenario 1: regardless of how many
// controllers are present, Save emits exactly one usb-kind blob.
func TestUSBSingleton(t *testing.T) {
	r := NewRegistry(nil)

	var i8042Loaded, pciLoaded []byte
	r.Register(DeviceDescriptor{Kind: KindInputI8042, Save: hookReturning([]byte{0x02}), Load: recordingLoad(&i8042Loaded)})
	r.Register(DeviceDescriptor{Kind: KindPCIConfig, Save: hookReturning([]byte{0x80, 0x81}), Load: recordingLoad(&pciLoaded)})

	r.RegisterUSBController(ControllerHook{Tag: USBTagUHCI, Save: hookReturning([]byte{0x01, 0x02})})

	blobs, err := r.Save(SaveInput{})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	var usbCount int
	var usbBlob Blob
	for _, b := range blobs {
		if b.Kind == KindUSB {
			usbCount++
			usbBlob = b
		}
	}
	if usbCount != 1 {
		t.Fatalf("expected exactly 1 usb blob, got %d", usbCount)
	}
	if !IsAUSB(usbBlob.Bytes) {
		t.Fatalf("usb blob is not an AUSB container")
	}
	decoded, err := DecodeAUSB(usbBlob.Bytes)
	if err != nil || len(decoded) != 1 || decoded[0].Tag != USBTagUHCI {
		t.Fatalf("expected single UHCI record, got %+v err=%v", decoded, err)
	}

	if len(blobs) != 3 {
		t.Fatalf("expected usb + input.i8042 + pci.cfg, got %d: %+v", len(blobs), blobs)
	}
}

// TestRoundTripPreservesUnknownBlobs is spec property 1: unknown device.<id>
// kinds in the cached tier survive a save untouched (scenario 4).
func TestRoundTripPreservesUnknownBlobs(t *testing.T) {
	r := NewRegistry(nil)
	var i8042Loaded []byte
	r.Register(DeviceDescriptor{Kind: KindInputI8042, Save: hookReturning([]byte{0x02}), Load: recordingLoad(&i8042Loaded)})
	r.SetCached([]Blob{{Kind: "device.123", Bytes: []byte{0xDE, 0xAD, 0xBE, 0xEF}}})

	blobs, err := r.Save(SaveInput{})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	var found bool
	for _, b := range blobs {
		if b.Kind == "device.123" {
			found = true
			if !bytes.Equal(b.Bytes, []byte{0xDE, 0xAD, 0xBE, 0xEF}) {
				t.Fatalf("unknown blob bytes mutated: %x", b.Bytes)
			}
		}
	}
	if !found {
		t.Fatalf("expected device.123 to survive into the save output, got %+v", blobs)
	}

	var i8042Found bool
	for _, b := range blobs {
		if b.Kind == KindInputI8042 {
			i8042Found = true
		}
	}
	if !i8042Found {
		t.Fatalf("expected freshly captured i8042 blob alongside the unknown one")
	}
}

func TestMergeBlobsPrecedence(t *testing.T) {
	cached := []Blob{{Kind: KindUSB, Bytes: []byte("cached")}}
	fresh := []Blob{{Kind: KindUSB, Bytes: []byte("fresh")}, {Kind: KindInputI8042, Bytes: []byte("fresh-i8042")}}
	coordinator := []Blob{{Kind: KindInputI8042, Bytes: []byte("coord-i8042")}}

	merged := MergeBlobs(cached, fresh, coordinator)

	byKind := make(map[Kind]Blob, len(merged))
	for _, b := range merged {
		byKind[b.Kind] = b
	}

	if string(byKind[KindUSB].Bytes) != "fresh" {
		t.Fatalf("expected fresh to override cached for usb, got %q", byKind[KindUSB].Bytes)
	}
	if string(byKind[KindInputI8042].Bytes) != "coord-i8042" {
		t.Fatalf("expected coordinator to override fresh for i8042, got %q", byKind[KindInputI8042].Bytes)
	}
}

type fakeExporter struct {
	devices []ExportedDevice
}

func (f *fakeExporter) Save(path string, cpu, mmu []byte, devices []ExportedDevice) error {
	f.devices = devices
	return nil
}

func (f *fakeExporter) Restore(path string) (CPUMMUCapture, []ExportedDevice, error) {
	return CPUMMUCapture{CPU: []byte("cpu"), MMU: []byte("mmu")}, f.devices, nil
}

// TestLegacyPCIRestoreDispatch is scenario 2 end to end through
// RestoreFreeFunction: a device.5/PCIB blob reaches the pci.cfg load hook
// and is reported back under the canonical kind.
func TestLegacyPCIRestoreDispatch(t *testing.T) {
	r := NewRegistry(nil)
	var pciLoaded []byte
	r.Register(DeviceDescriptor{Kind: KindPCIConfig, Load: recordingLoad(&pciLoaded)})

	payload := EncodeLegacyAeroHeader(LegacyAeroHeader{DeviceID: [4]byte{'P', 'C', 'I', 'B'}})
	exp := &fakeExporter{devices: []ExportedDevice{{Kind: "device.5", Bytes: payload}}}

	result, err := r.RestoreFreeFunction(exp, "snap.bin")
	if err != nil {
		t.Fatalf("RestoreFreeFunction: %v", err)
	}
	if !bytes.Equal(pciLoaded, payload) {
		t.Fatalf("pci load hook did not receive expected bytes")
	}
	var sawCanonical bool
	for _, d := range result.RestoredDevices {
		if d.Kind == KindPCIConfig {
			sawCanonical = true
		}
	}
	if !sawCanonical {
		t.Fatalf("expected canonical pci.cfg kind in restored devices, got %+v", result.RestoredDevices)
	}
}

// TestNetStackRestoreAppliesPolicy is scenario 6.
func TestNetStackRestoreAppliesPolicy(t *testing.T) {
	r := NewRegistry(nil)
	var loaded []byte
	var policyApplied bool
	r.Register(DeviceDescriptor{Kind: KindNetStack, Load: recordingLoad(&loaded)})
	r.SetNetStackPostLoadPolicy(func() error {
		policyApplied = true
		return nil
	})

	exp := &fakeExporter{devices: []ExportedDevice{{Kind: string(KindNetStack), Bytes: []byte("tcp-state")}}}
	if _, err := r.RestoreFreeFunction(exp, "snap.bin"); err != nil {
		t.Fatalf("RestoreFreeFunction: %v", err)
	}
	if !bytes.Equal(loaded, []byte("tcp-state")) {
		t.Fatalf("net.stack load hook did not receive expected bytes")
	}
	if !policyApplied {
		t.Fatalf("expected apply_tcp_restore_policy to run after net.stack load")
	}
}

// TestCorruptUSBBlobSkipped is scenario 3 at the registry dispatch layer: a
// corrupt AUSB blob produces no controller dispatch and the restore call
// itself still succeeds (skip-with-warn policy).
func TestCorruptUSBBlobSkipped(t *testing.T) {
	r := NewRegistry(nil)
	var dispatched bool
	r.RegisterUSBController(ControllerHook{Tag: USBTagUHCI, Load: func(data []byte) error {
		dispatched = true
		return nil
	}})

	corrupt := append([]byte(AUSBMagic), 0x01, 0x00, 0xff)
	exp := &fakeExporter{devices: []ExportedDevice{{Kind: string(KindUSB), Bytes: corrupt}}}

	result, err := r.RestoreFreeFunction(exp, "snap.bin")
	if err != nil {
		t.Fatalf("RestoreFreeFunction should not fail on a corrupt blob: %v", err)
	}
	if dispatched {
		t.Fatalf("no controller hook should have been invoked for a corrupt container")
	}
	for _, d := range result.RestoredDevices {
		if d.Kind == KindUSB {
			t.Fatalf("corrupt usb blob should be dropped from restored devices, got %+v", result.RestoredDevices)
		}
	}
}

func TestStrictDecodingRejectsCorruptBlob(t *testing.T) {
	r := NewRegistry(nil)
	r.StrictDecoding = true
	r.RegisterUSBController(ControllerHook{Tag: USBTagUHCI})

	corrupt := append([]byte(AUSBMagic), 0x01, 0x00, 0xff)
	exp := &fakeExporter{devices: []ExportedDevice{{Kind: string(KindUSB), Bytes: corrupt}}}

	if _, err := r.RestoreFreeFunction(exp, "snap.bin"); err == nil {
		t.Fatalf("expected strict decoding to surface the corrupt-container error")
	}
}

func TestMissingRuntimeError(t *testing.T) {
	r := NewRegistry(nil)
	if _, err := r.RestoreFreeFunction(nil, "snap.bin"); err != ErrMissingRuntime {
		t.Fatalf("expected ErrMissingRuntime, got %v", err)
	}
	if err := r.ExportFreeFunction(nil, "snap.bin", SaveInput{}); err != ErrMissingRuntime {
		t.Fatalf("expected ErrMissingRuntime, got %v", err)
	}
}
