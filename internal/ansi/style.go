// internal/ansi/style.go

package ansi

// Color is a hex RGB value such as "#cd0000". The empty Color means "unset"
// and renders with the surface default.
type Color string

// Style is the SGR state in effect for a run of text.
type Style struct {
	FG        Color
	BG        Color
	Bold      bool
	Underline bool
}

// IsZero reports whether the style carries no attributes at all.
func (s Style) IsZero() bool {
	return s == Style{}
}

// Span is a run of text rendered with a single style.
type Span struct {
	Text  string
	Style Style
}

// Standard (30-37 / 40-47) and bright (90-97 / 100-107) palette entries,
// indexed by the low digit of the SGR code.
var (
	standardPalette = [8]Color{
		"#000000", // black
		"#cd0000", // red
		"#00cd00", // green
		"#cdcd00", // yellow
		"#0000ee", // blue
		"#cd00cd", // magenta
		"#00cdcd", // cyan
		"#e5e5e5", // white
	}
	brightPalette = [8]Color{
		"#7f7f7f",
		"#ff0000",
		"#00ff00",
		"#ffff00",
		"#5c5cff",
		"#ff00ff",
		"#00ffff",
		"#ffffff",
	}
)

// apply folds the SGR parameters of one token into s. Unknown codes are
// ignored. Extended color selectors (38/48 followed by ;5;n or ;2;r;g;b) are
// skipped as a unit so their arguments are not misread as codes.
func (s *Style) apply(params []int) {
	for i := 0; i < len(params); i++ {
		code := params[i]
		switch {
		case code == 0:
			*s = Style{}
		case code == 1:
			s.Bold = true
		case code == 22:
			s.Bold = false
		case code == 4:
			s.Underline = true
		case code == 24:
			s.Underline = false
		case code >= 30 && code <= 37:
			s.FG = standardPalette[code-30]
		case code >= 90 && code <= 97:
			s.FG = brightPalette[code-90]
		case code >= 40 && code <= 47:
			s.BG = standardPalette[code-40]
		case code >= 100 && code <= 107:
			s.BG = brightPalette[code-100]
		case code == 39:
			s.FG = ""
		case code == 49:
			s.BG = ""
		case code == 38 || code == 48:
			if i+1 < len(params) {
				switch params[i+1] {
				case 5:
					i += 2
				case 2:
					i += 4
				}
			}
		}
	}
}
