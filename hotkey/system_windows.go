package hotkey

import xhotkey "golang.design/x/hotkey"

func systemModifiers(names []string) ([]xhotkey.Modifier, error) {
	mods := make([]xhotkey.Modifier, 0, len(names))
	for _, n := range names {
		switch n {
		case "ctrl":
			mods = append(mods, xhotkey.ModCtrl)
		case "shift":
			mods = append(mods, xhotkey.ModShift)
		case "alt":
			mods = append(mods, xhotkey.ModAlt)
		case "super":
			mods = append(mods, xhotkey.ModWin)
		default:
			return nil, &ComboError{Token: n, Reason: "unknown modifier"}
		}
	}
	return mods, nil
}
