package models

import "fmt"

// ViewMode is the global display policy for items that are neither
// selected nor hovered.
type ViewMode string

const (
	ViewModeAll         ViewMode = "all"
	ViewModeTransparent ViewMode = "transparent"
	ViewModeSelectable  ViewMode = "selectable"
)

// Next returns the following mode in the all, transparent, selectable cycle.
func (m ViewMode) Next() ViewMode {
	switch m {
	case ViewModeAll:
		return ViewModeTransparent
	case ViewModeTransparent:
		return ViewModeSelectable
	default:
		return ViewModeAll
	}
}

// ParseViewMode validates a mode name.
func ParseViewMode(s string) (ViewMode, error) {
	switch m := ViewMode(s); m {
	case ViewModeAll, ViewModeTransparent, ViewModeSelectable:
		return m, nil
	}
	return "", fmt.Errorf("unknown view mode: %q", s)
}
