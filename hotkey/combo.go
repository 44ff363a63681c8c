package hotkey

import (
	"fmt"
	"sort"
	"strings"
)

// Combo is a parsed activation shortcut: a set of modifiers plus
// exactly one primary key. Immutable after parsing.
type Combo struct {
	mods []string // sorted, deduplicated canonical names
	key  string
}

// ComboError reports a malformed combo string. Parsing is the only
// place it can occur; a Combo in hand is always valid.
type ComboError struct {
	Input  string
	Token  string // offending token, empty when the primary key is missing
	Reason string
}

func (e *ComboError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("invalid combo %q: %s %q", e.Input, e.Reason, e.Token)
	}
	return fmt.Sprintf("invalid combo %q: %s", e.Input, e.Reason)
}

var modAliases = map[string]string{
	"ctrl":    "ctrl",
	"control": "ctrl",
	"shift":   "shift",
	"alt":     "alt",
	"option":  "alt",
	"super":   "super",
	"cmd":     "super",
	"win":     "super",
	"meta":    "super",
}

var primaryKeys = buildPrimaryKeys()

func buildPrimaryKeys() map[string]bool {
	keys := map[string]bool{
		"space": true, "enter": true, "tab": true, "esc": true,
		"backspace": true, "delete": true, "insert": true,
		"home": true, "end": true, "pageup": true, "pagedown": true,
		"up": true, "down": true, "left": true, "right": true,
		"minus": true, "equal": true, "comma": true, "period": true,
		"semicolon": true, "slash": true, "backslash": true, "grave": true,
	}
	for c := 'a'; c <= 'z'; c++ {
		keys[string(c)] = true
	}
	for c := '0'; c <= '9'; c++ {
		keys[string(c)] = true
	}
	for i := 1; i <= 12; i++ {
		keys[fmt.Sprintf("f%d", i)] = true
	}
	return keys
}

// ParseCombo parses a string like "ctrl+alt+r". Modifier order and
// duplicates are irrelevant; exactly one primary key is required.
func ParseCombo(s string) (Combo, error) {
	raw := strings.Split(s, "+")
	modSet := make(map[string]bool)
	primary := ""
	for _, tok := range raw {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok == "" {
			return Combo{}, &ComboError{Input: s, Token: "+", Reason: "empty token at"}
		}
		if canonical, ok := modAliases[tok]; ok {
			modSet[canonical] = true
			continue
		}
		if !primaryKeys[tok] {
			return Combo{}, &ComboError{Input: s, Token: tok, Reason: "unrecognized key"}
		}
		if primary != "" {
			return Combo{}, &ComboError{Input: s, Token: tok, Reason: "second primary key"}
		}
		primary = tok
	}
	if primary == "" {
		return Combo{}, &ComboError{Input: s, Reason: "no primary key (modifiers alone cannot activate)"}
	}

	mods := make([]string, 0, len(modSet))
	for m := range modSet {
		mods = append(mods, m)
	}
	sort.Strings(mods)
	return Combo{mods: mods, key: primary}, nil
}

// String renders the combo canonically: sorted modifiers, then the
// primary key. ParseCombo(c.String()) reproduces c.
func (c Combo) String() string {
	if c.key == "" {
		return ""
	}
	parts := make([]string, 0, len(c.mods)+1)
	parts = append(parts, c.mods...)
	parts = append(parts, c.key)
	return strings.Join(parts, "+")
}

// Modifiers returns the canonical modifier names, sorted.
func (c Combo) Modifiers() []string {
	out := make([]string, len(c.mods))
	copy(out, c.mods)
	return out
}

// Key returns the primary key name.
func (c Combo) Key() string { return c.key }

// Equal reports whether two combos denote the same shortcut.
func (c Combo) Equal(o Combo) bool {
	if c.key != o.key || len(c.mods) != len(o.mods) {
		return false
	}
	for i := range c.mods {
		if c.mods[i] != o.mods[i] {
			return false
		}
	}
	return true
}
