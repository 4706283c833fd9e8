package terminal

import (
	"fmt"
	"strings"
)

// Theme is the page color scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// DarkMode is the user's dark-mode preference.
type DarkMode string

const (
	DarkModeOn     DarkMode = "true"
	DarkModeOff    DarkMode = "false"
	DarkModeFollow DarkMode = "follow"
)

// ParseDarkMode accepts true/false/follow and common spellings of them.
func ParseDarkMode(s string) (DarkMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "on", "yes", "1", "dark":
		return DarkModeOn, nil
	case "false", "off", "no", "0", "light", "":
		return DarkModeOff, nil
	case "follow", "auto", "system":
		return DarkModeFollow, nil
	}
	return "", fmt.Errorf("%w: dark mode %q", ErrInvalidArgument, s)
}

// ResolveTheme picks the page theme. Dark when the preference is on, or
// when it follows the host and the host theme is dark.
func ResolveTheme(mode DarkMode, hostTheme string) Theme {
	switch mode {
	case DarkModeOn:
		return ThemeDark
	case DarkModeFollow:
		if strings.EqualFold(strings.TrimSpace(hostTheme), string(ThemeDark)) {
			return ThemeDark
		}
	}
	return ThemeLight
}

// HostVars are the host editor variables a buffer reads at creation.
type HostVars struct {
	DarkMode  DarkMode `json:"dark_mode"`
	ThemeMode string   `json:"theme_mode"`
	FontSize  string   `json:"font_size"`
}

// Theme resolves the page theme from v.
func (v HostVars) Theme() Theme {
	return ResolveTheme(v.DarkMode, v.ThemeMode)
}
