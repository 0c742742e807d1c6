package timefmt

import (
	"fmt"
	"time"
)

// Ago describes how long ago tm was relative to now.
func Ago(now, tm time.Time) string {
	d := now.Sub(tm)
	if d < time.Minute {
		return "just now"
	}
	return fmt.Sprintf("%s ago", Dur(d))
}

func Dur(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	days := int(d.Hours() / 24)
	return fmt.Sprintf("%dd", days)
}
