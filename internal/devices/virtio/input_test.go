package virtio

import "testing"

func TestInputKeyboardRoundTrip(t *testing.T) {
	kb := NewInput(InputTypeKeyboard, "keyboard")
	kb.KeyDown(KEY_LEFTSHIFT)
	kb.KeyDown(KEY_A)

	data, ok := kb.SaveState()
	if !ok {
		t.Fatalf("SaveState reported ok=false")
	}

	restored := NewInput(InputTypeKeyboard, "keyboard")
	if err := restored.LoadState(data); err != nil {
		t.Fatalf("LoadState: %v", err)
	}

	pressed := restored.PressedKeys()
	if len(pressed) != 2 || pressed[0] != KEY_A || pressed[1] != KEY_LEFTSHIFT {
		t.Fatalf("pressed keys mismatch: got %v", pressed)
	}
}

func TestInputMouseRoundTrip(t *testing.T) {
	mouse := NewInput(InputTypeMouse, "mouse")
	mouse.KeyDown(BTN_LEFT)
	mouse.SetAbsPosition(NormalizeTabletCoord(640, 1280), NormalizeTabletCoord(360, 720))

	data, ok := mouse.SaveState()
	if !ok {
		t.Fatalf("SaveState reported ok=false")
	}

	restored := NewInput(InputTypeMouse, "mouse")
	if err := restored.LoadState(data); err != nil {
		t.Fatalf("LoadState: %v", err)
	}

	pressed := restored.PressedKeys()
	if len(pressed) != 1 || pressed[0] != BTN_LEFT {
		t.Fatalf("pressed buttons mismatch: got %v", pressed)
	}
	if restored.absX != mouse.absX || restored.absY != mouse.absY {
		t.Fatalf("abs position mismatch: got (%d,%d) want (%d,%d)", restored.absX, restored.absY, mouse.absX, mouse.absY)
	}
}

func TestInputKeyUpClearsState(t *testing.T) {
	kb := NewInput(InputTypeKeyboard, "keyboard")
	kb.KeyDown(KEY_A)
	kb.KeyUp(KEY_A)

	if _, ok := kb.SaveState(); ok {
		t.Fatalf("expected SaveState to report ok=false once all keys are released")
	}
}

func TestInputTypeReported(t *testing.T) {
	if NewInput(InputTypeKeyboard, "keyboard").Type() != InputTypeKeyboard {
		t.Fatalf("expected keyboard type")
	}
	if NewInput(InputTypeMouse, "mouse").Type() != InputTypeMouse {
		t.Fatalf("expected mouse type")
	}
}
