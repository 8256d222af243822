package speech

import "strings"

// ComposeDirective joins the fixed baseline persona instruction with an
// optional per-segment override. The baseline always comes first so the
// override can only refine it, not silently replace the persona.
func ComposeDirective(base, override string) string {
	base = strings.TrimSpace(base)
	override = strings.TrimSpace(override)

	switch {
	case base == "":
		return override
	case override == "":
		return base
	default:
		return base + " " + override
	}
}
