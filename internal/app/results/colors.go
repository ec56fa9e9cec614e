package results

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// NeutralColor paints a constituency with no votes yet.
	NeutralColor = "#e0e0e0"

	// fallbackPartyColor stands in for a candidate whose party has no usable
	// color on file.
	fallbackPartyColor = "#808080"
)

type rgb struct {
	r, g, b float64
}

func parseHexColor(value string) (rgb, error) {
	clean := strings.TrimPrefix(strings.TrimSpace(value), "#")
	if len(clean) != 6 {
		return rgb{}, fmt.Errorf("results: malformed color %q", value)
	}
	r, err := strconv.ParseUint(clean[0:2], 16, 8)
	if err != nil {
		return rgb{}, fmt.Errorf("results: malformed color %q", value)
	}
	g, err := strconv.ParseUint(clean[2:4], 16, 8)
	if err != nil {
		return rgb{}, fmt.Errorf("results: malformed color %q", value)
	}
	b, err := strconv.ParseUint(clean[4:6], 16, 8)
	if err != nil {
		return rgb{}, fmt.Errorf("results: malformed color %q", value)
	}
	return rgb{r: float64(r), g: float64(g), b: float64(b)}, nil
}

func encodeHexColor(c rgb) string {
	return fmt.Sprintf("#%02x%02x%02x", clampChannel(c.r), clampChannel(c.g), clampChannel(c.b))
}

func clampChannel(v float64) uint8 {
	rounded := math.Round(v)
	if rounded < 0 {
		return 0
	}
	if rounded > 255 {
		return 255
	}
	return uint8(rounded)
}

// blendColors mixes party colors weighted by vote share. An additive weighted
// mixture per channel, deliberately simple and reproducible rather than
// perceptually uniform.
func blendColors(colors []string, weights []float64) string {
	var mixed rgb
	for i, value := range colors {
		c, err := parseHexColor(value)
		if err != nil {
			c, _ = parseHexColor(fallbackPartyColor)
		}
		mixed.r += c.r * weights[i]
		mixed.g += c.g * weights[i]
		mixed.b += c.b * weights[i]
	}
	return encodeHexColor(mixed)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
