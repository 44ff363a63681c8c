package hotkey

import xhotkey "golang.design/x/hotkey"

// X11 has no named Alt or Super modifier. Mod1 is Alt and Mod4 is
// Super on every mainstream layout.
func systemModifiers(names []string) ([]xhotkey.Modifier, error) {
	mods := make([]xhotkey.Modifier, 0, len(names))
	for _, n := range names {
		switch n {
		case "ctrl":
			mods = append(mods, xhotkey.ModCtrl)
		case "shift":
			mods = append(mods, xhotkey.ModShift)
		case "alt":
			mods = append(mods, xhotkey.Mod1)
		case "super":
			mods = append(mods, xhotkey.Mod4)
		default:
			return nil, &ComboError{Token: n, Reason: "unknown modifier"}
		}
	}
	return mods, nil
}
