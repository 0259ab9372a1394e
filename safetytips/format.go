package safetytips

import (
	"fmt"
	"strings"
)

const tipsHeader = "🚗 Safety Tips & Recommendations:"

// FormatTips renders tips as a numbered block under a fixed header. No tips
// render as the empty string.
func FormatTips(tips []string) string {
	if len(tips) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n" + tipsHeader + "\n\n")
	for i, tip := range tips {
		fmt.Fprintf(&b, "%d. %s\n", i+1, tip)
	}
	return b.String()
}
