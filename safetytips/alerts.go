package safetytips

var alertMessages = map[string]string{
	"speeding":       "⚠️ Warning: Speed exceeds limit. Please slow down.",
	"sharp_turn":     "⚠️ Caution: Sharp turn ahead. Reduce speed.",
	"phone_use":      "⚠️ Alert: Phone use detected. Keep eyes on road.",
	"sudden_brake":   "⚠️ Notice: Sudden braking detected. Maintain safe distance.",
	"lane_departure": "⚠️ Warning: Lane departure detected. Stay in lane.",
	"fatigue":        "⚠️ Warning: Signs of fatigue detected. Consider taking a break.",
}

// AlertKinds lists the driver alerts with a dedicated message.
func AlertKinds() []string {
	return []string{"speeding", "sharp_turn", "phone_use", "sudden_brake", "lane_departure", "fatigue"}
}

// AlertMessage returns the in-car warning text for an alert kind. Kinds are
// matched exactly; anything else gets the generic alert.
func AlertMessage(kind string) string {
	if msg, ok := alertMessages[kind]; ok {
		return msg
	}
	return "⚠️ Alert: " + kind
}
