package domain

import "strings"

type DominantColorFormat string

const DominantColorHex DominantColorFormat = "hex"

// FormatDominantColor renders a stored dominant color. Only hex is
// supported; unknown formats fall back to it. ok is false when no color
// has been computed for the image.
func FormatDominantColor(color string, format DominantColorFormat) (string, bool) {
	color = strings.TrimSpace(color)
	if color == "" {
		return "", false
	}
	return "#" + color, true
}
