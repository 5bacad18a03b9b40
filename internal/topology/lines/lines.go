package lines

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/metroroute/pkg/metro"
)

// DefaultColor is used for lines without a colour entry.
const DefaultColor = "skyblue"

// Components used when an RGB colour object omits a channel (skyblue).
const (
	defaultR = 135
	defaultG = 206
	defaultB = 235
)

// ParseMembership reads a JSON object mapping line codes to ordered station
// names. Key order is preserved because later lines win during resolution.
func ParseMembership(r io.Reader) ([]metro.LineMembership, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("reading line table: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("line table must be a JSON object")
	}

	var out []metro.LineMembership
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("reading line code: %w", err)
		}
		code, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v in line table", tok)
		}

		var stations []string
		if err := dec.Decode(&stations); err != nil {
			return nil, fmt.Errorf("decoding stations of line %s: %w", code, err)
		}
		out = append(out, metro.LineMembership{Line: code, Stations: stations})
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("closing line table: %w", err)
	}
	return out, nil
}

type colorEntry struct {
	Code  string          `json:"Code"`
	Color json.RawMessage `json:"Color"`
}

type rgb struct {
	R *int `json:"R"`
	G *int `json:"G"`
	B *int `json:"B"`
}

// ParseColors reads a JSON array of {"Code", "Color"} entries. Color is a
// CSS colour string or an {"R","G","B"} object; the result maps line code to
// "#rrggbb" or the lower-cased colour name.
func ParseColors(r io.Reader) (map[string]string, error) {
	var entries []colorEntry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decoding line colors: %w", err)
	}

	colors := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.Code == "" {
			continue
		}
		colors[e.Code] = colorValue(e.Color)
	}
	return colors, nil
}

func colorValue(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return DefaultColor
	}

	var obj rgb
	if raw[0] == '{' && json.Unmarshal(raw, &obj) == nil {
		return fmt.Sprintf("#%02x%02x%02x",
			channel(obj.R, defaultR), channel(obj.G, defaultG), channel(obj.B, defaultB))
	}

	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.ToLower(s)
	}
	return strings.ToLower(string(raw))
}

func channel(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	if *v < 0 {
		return 0
	}
	if *v > 255 {
		return 255
	}
	return *v
}

// LoadMembershipFile is ParseMembership over a file.
func LoadMembershipFile(path string) ([]metro.LineMembership, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening line table: %w", err)
	}
	defer f.Close()
	return ParseMembership(f)
}

// LoadColorsFile is ParseColors over a file.
func LoadColorsFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening line colors: %w", err)
	}
	defer f.Close()
	return ParseColors(f)
}
