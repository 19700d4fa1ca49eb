package img2ascii

import (
	"fmt"
	"strings"
)

const (
	// DefaultTargetWidth is the number of characters per preview line.
	DefaultTargetWidth = 130
	// ExportFallbackWidth replaces an out-of-range width on the export path.
	ExportFallbackWidth = 80
	// FallbackHeight replaces an out-of-range derived height.
	FallbackHeight = 50
	// MaxTargetWidth and MaxTargetHeight bound the character grid.
	MaxTargetWidth  = 500
	MaxTargetHeight = 1000
	// CharAspect is the height/width ratio of a character cell.
	CharAspect = 2.2

	DefaultFontSize   = 6
	DefaultOutputName = "ascii_highres.png"
)

// Ramp is an ordered set of characters representing luminance buckets.
// Index 0 is drawn for the darkest pixels and the last index for the
// brightest, so on the default white-on-black scheme a ramp should run
// from sparse glyphs to dense ones.
type Ramp []rune

// Ramp presets selected with ramp=<n>.
//
// Presets 0, 1 and 3 run sparse-to-dense and suit light text on a dark
// background. Preset 2 is preset 1 reversed, for dark text on a light
// background (color=black bg=white). Preset 0 is the classic 69-level
// ramp and carries '*' twice; the duplicate is kept so output matches
// existing renders.
var RampPresets = []Ramp{
	Ramp(" .'`^\",:;Il!i~+_-?][}{1)(|\\/*tfjrxnuvczXYUJCLQ0OZmwqpdbkhao*#MW&8%B@$"),
	Ramp(" .:-=+*#%@"),
	Ramp("@%#*+=-:. "),
	Ramp(" ░▒▓█"),
}

// PresetRamp returns preset n, or preset 0 when n is out of range.
func PresetRamp(n int) Ramp {
	if n < 0 || n >= len(RampPresets) {
		return RampPresets[0]
	}
	return RampPresets[n]
}

func (r Ramp) String() string { return string(r) }

// ExportOptions is the per-request rendering configuration. It is
// captured by value when a request starts and never re-read.
type ExportOptions struct {
	// TargetWidth is the number of characters per line.
	TargetWidth int
	// FontSize is the pixel size used for export rendering.
	FontSize   int
	Foreground RGB
	Background RGB
	Ramp       Ramp
	// OutputName names the exported artifact.
	OutputName string
	// ExportRequested adds the PNG export after the preview.
	ExportRequested bool
}

// DefaultOptions returns the options used when no key=value tokens are
// given.
func DefaultOptions() ExportOptions {
	return ExportOptions{
		TargetWidth: DefaultTargetWidth,
		FontSize:    DefaultFontSize,
		Foreground:  White,
		Background:  Black,
		Ramp:        PresetRamp(0),
		OutputName:  DefaultOutputName,
	}
}

// ParseOptions parses space-separated key=value tokens over the defaults.
// Recognized keys are download, wide, font_size, bg, color, name and ramp.
// Unknown keys and malformed tokens are ignored; order does not matter.
func ParseOptions(s string) ExportOptions {
	opts := DefaultOptions()
	for _, tok := range strings.Fields(s) {
		key, val, ok := strings.Cut(tok, "=")
		if !ok || key == "" || val == "" {
			continue
		}
		switch key {
		case "download":
			opts.ExportRequested = atoi(val) != 0
		case "wide":
			opts.TargetWidth = atoi(val)
		case "font_size":
			opts.FontSize = atoi(val)
		case "bg":
			opts.Background = ParseColor(val)
		case "color":
			opts.Foreground = ParseColor(val)
		case "name":
			opts.OutputName = val
		case "ramp":
			opts.Ramp = PresetRamp(atoi(val))
		}
	}
	return opts
}

// Request is a validated conversion command: a source URL plus options.
type Request struct {
	SourceURL string
	Options   ExportOptions
}

// ParseRequest splits "<url> [key=value ...]" and validates the URL.
func ParseRequest(args string) (Request, error) {
	fields := strings.Fields(args)
	var url string
	if len(fields) > 0 {
		url = fields[0]
	}
	if err := ValidateURL(url); err != nil {
		return Request{}, err
	}
	return Request{SourceURL: url, Options: ParseOptions(strings.Join(fields[1:], " "))}, nil
}

// ParseCommand splits a console line into its command name and the
// remaining arguments.
func ParseCommand(line string) (name, args string) {
	line = strings.TrimSpace(line)
	i := strings.IndexAny(line, " \t")
	if i < 0 {
		return line, ""
	}
	return line[:i], strings.TrimSpace(line[i+1:])
}

// ValidateURL accepts only non-empty http:// and https:// URLs.
func ValidateURL(url string) error {
	switch {
	case url == "":
		return newError(ErrInvalidRequest, nil, "missing image URL")
	case strings.HasPrefix(url, "http://"), strings.HasPrefix(url, "https://"):
		return nil
	}
	return newError(ErrInvalidRequest, nil, "please provide a valid http/https URL, got %q", url)
}

// Describe returns the option dump printed before an export.
func (o ExportOptions) Describe() []string {
	return []string{
		"User options:",
		fmt.Sprintf("  chars_wide:   %d", o.TargetWidth),
		fmt.Sprintf("  font_size:    %d", o.FontSize),
		fmt.Sprintf("  bg color:     %s (%d,%d,%d)", colorName(o.Background),
			o.Background.R, o.Background.G, o.Background.B),
		fmt.Sprintf("  fg color:     %s (%d,%d,%d)", colorName(o.Foreground),
			o.Foreground.R, o.Foreground.G, o.Foreground.B),
		fmt.Sprintf("  ramp:         %d levels", len(o.Ramp)),
		fmt.Sprintf("  filename:     %s", o.OutputName),
	}
}

// atoi parses a leading optional sign and decimal digits, stopping at the
// first other byte. Input without digits yields 0.
func atoi(s string) int {
	i, neg := 0, false
	if i < len(s) && (s[i] == '-' || s[i] == '+') {
		neg = s[i] == '-'
		i++
	}
	n := 0
	for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		n = n*10 + int(s[i]-'0')
		if n > 1<<30 {
			n = 1 << 30
		}
	}
	if neg {
		return -n
	}
	return n
}
