package ui

// ANSI color codes
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorGray   = "\033[90m"
	ColorBold   = "\033[1m"
)

// Colors wraps text with ANSI codes when enabled.
type Colors struct {
	enabled bool
}

// NewColors creates a new Colors instance.
func NewColors(enabled bool) *Colors {
	return &Colors{enabled: enabled}
}

// Red returns red colored text
func (c *Colors) Red(s string) string {
	if !c.enabled {
		return s
	}
	return ColorRed + s + ColorReset
}

// Green returns green colored text
func (c *Colors) Green(s string) string {
	if !c.enabled {
		return s
	}
	return ColorGreen + s + ColorReset
}

// Yellow returns yellow colored text
func (c *Colors) Yellow(s string) string {
	if !c.enabled {
		return s
	}
	return ColorYellow + s + ColorReset
}

// Gray returns gray colored text
func (c *Colors) Gray(s string) string {
	if !c.enabled {
		return s
	}
	return ColorGray + s + ColorReset
}

// Bold returns bold text
func (c *Colors) Bold(s string) string {
	if !c.enabled {
		return s
	}
	return ColorBold + s + ColorReset
}

// ResultSymbol returns a colored symbol for a target outcome.
func (c *Colors) ResultSymbol(passed, timedOut bool) string {
	switch {
	case passed:
		return c.Green("✓")
	case timedOut:
		return c.Yellow("⊘")
	default:
		return c.Red("✗")
	}
}
