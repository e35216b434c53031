// Package colors provides the CLI's output palette with TTY-aware defaults.
//
// Colors are disabled when stdout is not a terminal. Use Init() to override
// based on CLI flags.
package colors

import "github.com/fatih/color"

// Init allows overriding the auto-detected color setting.
//   - forceColor == nil: keep auto-detected value
//   - forceColor == true: force colors on
//   - forceColor == false: force colors off (--no-color)
func Init(forceColor *bool) {
	if forceColor != nil {
		color.NoColor = !*forceColor
	}
}

// Enabled returns true if colors are currently enabled.
func Enabled() bool {
	return !color.NoColor
}

// Heading is used for section titles
func Heading() *color.Color { return color.New(color.Bold, color.FgHiBlue) }

// Label is used for the key side of key/value lines
func Label() *color.Color { return color.New(color.Bold, color.FgHiBlue) }

// Secret is used for tokens and cookies
func Secret() *color.Color { return color.New(color.Faint, color.FgWhite) }

// Ok is used for healthy states
func Ok() *color.Color { return color.New(color.FgGreen) }

// Bad is used for failed states
func Bad() *color.Color { return color.New(color.Bold, color.FgRed) }

// State colors a session state by whether the session is usable.
func State(s string, authenticated bool) string {
	if authenticated {
		return Ok().Sprint(s)
	}
	return Bad().Sprint(s)
}
