package input

import (
	"testing"

	"golang.design/x/hotkey"
)

func TestParseHotkey(t *testing.T) {
	mods, key, err := parseHotkey("ctrl+shift+space")
	if err != nil {
		t.Fatalf("parseHotkey: %v", err)
	}
	if len(mods) != 2 {
		t.Errorf("expected 2 modifiers, got %d", len(mods))
	}
	if key != hotkey.KeySpace {
		t.Errorf("expected space key, got %v", key)
	}
}

func TestParseHotkeySingleKey(t *testing.T) {
	mods, key, err := parseHotkey("f8")
	if err != nil {
		t.Fatalf("parseHotkey: %v", err)
	}
	if len(mods) != 0 {
		t.Errorf("expected no modifiers, got %d", len(mods))
	}
	if key != hotkey.KeyF8 {
		t.Errorf("expected F8, got %v", key)
	}
}

func TestParseHotkeyErrors(t *testing.T) {
	cases := []string{"", "ctrl+shift", "ctrl+a+b", "ctrl+bogus"}
	for _, c := range cases {
		if _, _, err := parseHotkey(c); err == nil {
			t.Errorf("expected error for %q", c)
		}
	}
}

func TestSuspendMasksToggle(t *testing.T) {
	fired := 0
	h := NewHotkeyManager(func() { fired++ })

	// Simulate what the event loop does around a keydown
	deliver := func() {
		h.mu.Lock()
		suspended := h.suspended
		h.mu.Unlock()
		if !suspended && h.onToggle != nil {
			h.onToggle()
		}
	}

	deliver()
	h.Suspend()
	deliver()
	h.Resume()
	deliver()

	if fired != 2 {
		t.Errorf("expected 2 toggles, got %d", fired)
	}
}
