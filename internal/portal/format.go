package portal

import (
	"math"
	"strconv"
	"strings"
)

const (
	groupSeparator = "\u202f"
	currencySuffix = "\u00a0F CFA"
)

// FormatCurrency renders a whole-number West African CFA franc amount the way
// the French locale does, e.g. "29 250 000 F CFA".
func FormatCurrency(amount float64) string {
	rounded := int64(math.Round(amount))
	sign := ""
	if rounded < 0 {
		sign = "-"
		rounded = -rounded
	}

	digits := strconv.FormatInt(rounded, 10)
	var b strings.Builder
	b.WriteString(sign)
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteString(groupSeparator)
		}
		b.WriteRune(d)
	}
	b.WriteString(currencySuffix)
	return b.String()
}

var statusLabels = map[string]string{
	"completed":   "Terminé",
	"in_progress": "En cours",
	"planning":    "Planification",
	"on_hold":     "En attente",
	"delivered":   "Livré",
	"confirmed":   "Confirmé",
	"pending":     "En attente",
	"cancelled":   "Annulé",
	"normal":      "Normal",
	"warning":     "Attention",
	"critical":    "Critique",
	"high":        "Haute",
	"medium":      "Moyenne",
	"low":         "Basse",
}

const (
	colorGreen  = "bg-green-100 text-green-800"
	colorBlue   = "bg-blue-100 text-blue-800"
	colorYellow = "bg-yellow-100 text-yellow-800"
	colorRed    = "bg-red-100 text-red-800"
	colorGray   = "bg-gray-100 text-gray-800"
)

var statusColors = map[string]string{
	"completed":   colorGreen,
	"in_progress": colorBlue,
	"planning":    colorYellow,
	"on_hold":     colorRed,
	"delivered":   colorGreen,
	"confirmed":   colorBlue,
	"pending":     colorYellow,
	"cancelled":   colorRed,
	"normal":      colorGreen,
	"warning":     colorYellow,
	"critical":    colorRed,
	"high":        colorRed,
	"medium":      colorYellow,
	"low":         colorGreen,
}

// StatusLabel returns the French display label of a project, order, sensor
// or priority value. Unknown values are returned unchanged.
func StatusLabel(status string) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return status
}

// StatusColor returns the badge classes for a status value.
func StatusColor(status string) string {
	if color, ok := statusColors[status]; ok {
		return color
	}
	return colorGray
}
