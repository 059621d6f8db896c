package snapshot

import "testing"

func TestNormalizeNumericForm(t *testing.T) {
	cases := []struct {
		in   Kind
		want Kind
	}{
		{"device.1", KindUSB},
		{"device.2", KindInputI8042},
		{"device.24", KindInputVirtio},
		{"device.999", "device.999"}, // unknown id passes through untouched
	}
	for _, c := range cases {
		got := Normalize(Blob{Kind: c.in}).Kind
		if got != c.want {
			t.Errorf("Normalize(%s) = %s, want %s", c.in, got, c.want)
		}
	}
}

func TestNormalizeLegacyAlias(t *testing.T) {
	for _, alias := range []Kind{"usb.uhci", "usb.ehci", "usb.xhci"} {
		if got := Normalize(Blob{Kind: alias}).Kind; got != KindUSB {
			t.Errorf("Normalize(%s) = %s, want %s", alias, got, KindUSB)
		}
	}
}

// TestCanonicalPrecedence is spec property 2: canonical wins over a legacy
// alias for the same semantic device, regardless of list order.
func TestCanonicalPrecedence(t *testing.T) {
	a := []byte("canonical-bytes")
	b := []byte("legacy-bytes")

	in := []Blob{
		{Kind: KindUSB, Bytes: a},
		{Kind: "usb.uhci", Bytes: b},
	}
	out := NormalizeAll(in)
	if len(out) != 1 {
		t.Fatalf("expected 1 merged entry, got %d", len(out))
	}
	if out[0].Kind != KindUSB || string(out[0].Bytes) != string(a) {
		t.Fatalf("expected canonical usb with bytes %q, got %+v", a, out[0])
	}

	// Order reversed: canonical still wins.
	in2 := []Blob{
		{Kind: "usb.uhci", Bytes: b},
		{Kind: KindUSB, Bytes: a},
	}
	out2 := NormalizeAll(in2)
	if len(out2) != 1 || out2[0].Kind != KindUSB || string(out2[0].Bytes) != string(a) {
		t.Fatalf("expected canonical to win regardless of order, got %+v", out2)
	}
}

func TestNormalizeAllPreservesUnknownAdditively(t *testing.T) {
	in := []Blob{
		{Kind: "device.123", Bytes: []byte{0xDE, 0xAD, 0xBE, 0xEF}},
		{Kind: KindInputI8042, Bytes: []byte{0x02}},
	}
	out := NormalizeAll(in)
	if len(out) != 2 {
		t.Fatalf("expected both entries preserved, got %d: %+v", len(out), out)
	}
}

func TestNumericKindNameRoundTrip(t *testing.T) {
	name := NumericKindName(42)
	id, ok := ParseNumericKindName(name)
	if !ok || id != 42 {
		t.Fatalf("round trip failed: name=%s id=%d ok=%v", name, id, ok)
	}
	if _, ok := ParseNumericKindName("device.5x"); ok {
		t.Fatalf("expected trailing garbage to be rejected")
	}
	if _, ok := ParseNumericKindName("usb"); ok {
		t.Fatalf("expected non-numeric kind to be rejected")
	}
}
