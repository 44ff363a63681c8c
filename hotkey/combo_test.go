package hotkey

import (
	"errors"
	"testing"
)

func TestParseComboCanonical(t *testing.T) {
	c, err := ParseCombo(" Ctrl + ALT+Space ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := c.String(); got != "alt+ctrl+space" {
		t.Errorf("String() = %q, want %q", got, "alt+ctrl+space")
	}
	if c.Key() != "space" {
		t.Errorf("Key() = %q, want space", c.Key())
	}
}

func TestParseComboAliases(t *testing.T) {
	cases := map[string]string{
		"cmd+v":          "super+v",
		"option+a":       "alt+a",
		"control+c":      "ctrl+c",
		"win+meta+enter": "super+enter", // both map to super, deduped
	}
	for in, want := range cases {
		c, err := ParseCombo(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if got := c.String(); got != want {
			t.Errorf("parse %q = %q, want %q", in, got, want)
		}
	}
}

func TestParseComboRejects(t *testing.T) {
	cases := []string{
		"ctrl+shift", // modifiers alone
		"ctrl+a+b",   // two primary keys
		"ctrl+",      // trailing separator
		"",           // empty
		"ctrl+floof", // unknown key
	}
	for _, in := range cases {
		_, err := ParseCombo(in)
		if err == nil {
			t.Errorf("parse %q: expected error", in)
			continue
		}
		var ce *ComboError
		if !errors.As(err, &ce) {
			t.Errorf("parse %q: error %T, want *ComboError", in, err)
		}
	}
}

func TestComboRoundTrip(t *testing.T) {
	for _, in := range []string{"ctrl+alt+space", "f9", "super+shift+z", "alt+1"} {
		c, err := ParseCombo(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		again, err := ParseCombo(c.String())
		if err != nil {
			t.Fatalf("reparse %q: %v", c.String(), err)
		}
		if !c.Equal(again) {
			t.Errorf("round trip changed combo: %q -> %q", in, again.String())
		}
	}
}

func TestComboEqualIgnoresOrder(t *testing.T) {
	a, _ := ParseCombo("ctrl+alt+r")
	b, _ := ParseCombo("alt+ctrl+r")
	if !a.Equal(b) {
		t.Error("modifier order should not matter")
	}
	c, _ := ParseCombo("ctrl+r")
	if a.Equal(c) {
		t.Error("different modifier sets should not be equal")
	}
}
