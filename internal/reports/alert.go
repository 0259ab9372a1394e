package reports

import (
	"fmt"
	"strings"

	"drivesafe/safetytips"
)

// BuildAlert renders a chat-friendly message for a classified report.
func BuildAlert(r Report, advice safetytips.Advice) string {
	emoji, label := alertLabel(advice.Categories)
	location := strings.TrimSpace(r.Location)
	if location == "" {
		location = "Location unavailable"
	}
	lines := []string{
		fmt.Sprintf("%s Driving report – %s", emoji, label),
		"",
		fmt.Sprintf("📍 Location: %s", location),
		fmt.Sprintf("🏷️ Type: %s", r.Type),
		fmt.Sprintf("🕒 Time: %s", r.Timestamp.Format(TimestampLayout)),
		"",
		"Report:",
		r.Description,
	}
	body := strings.Join(lines, "\n")
	if advice.Formatted != "" {
		body += "\n" + strings.TrimRight(advice.Formatted, "\n")
	}
	return body
}

func alertLabel(categories []safetytips.Category) (string, string) {
	if len(categories) == 0 {
		return "🚗", "General"
	}
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = categoryTitle(c)
	}
	return categoryEmoji(categories[0]), strings.Join(names, "/")
}

func categoryEmoji(c safetytips.Category) string {
	switch c {
	case safetytips.Speed:
		return "🏎️"
	case safetytips.Braking:
		return "🛑"
	case safetytips.LaneChange:
		return "↔️"
	case safetytips.Distraction:
		return "📱"
	case safetytips.Turning:
		return "↪️"
	default:
		return "🚗"
	}
}

func categoryTitle(c safetytips.Category) string {
	words := strings.Fields(strings.ReplaceAll(string(c), "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
