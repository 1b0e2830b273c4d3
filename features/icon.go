package features

import (
	"math"
	"strings"
)

// levelIcon returns the icon for a level in [0, 1].
//
// Icons are ordered from the lowest level to the highest, each covering an
// equal share of the range:
//
//	icons = [empty, half, full]
//	0.00 - 0.33 -> empty
//	0.33 - 0.66 -> half
//	0.66 - 1.00 -> full
func levelIcon(icons []string, level float64) string {
	if len(icons) == 0 {
		return ""
	}

	idx := int(math.Floor(level * float64(len(icons))))

	return icons[min(max(idx, 0), len(icons)-1)]
}

// renderTemplate replaces {KEY} placeholders of template with values.
func renderTemplate(template string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)

	for key, value := range values {
		pairs = append(pairs, "{"+key+"}", value)
	}

	return strings.TrimSpace(strings.NewReplacer(pairs...).Replace(template))
}

// percent returns level in [0, 1] as a whole percentage.
func percent(level float64) int {
	return int(math.Round(min(max(level, 0), 1) * 100))
}
