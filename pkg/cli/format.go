package cli

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// FormatDuration formats milliseconds to human readable string
func FormatDuration(ms int) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	secs := float64(ms) / 1000
	if secs < 60 {
		return fmt.Sprintf("%.1fs", secs)
	}
	mins := int(secs / 60)
	secs = secs - float64(mins*60)
	return fmt.Sprintf("%dm%.1fs", mins, secs)
}

// FormatElapsed formats a duration with FormatDuration.
func FormatElapsed(d time.Duration) string {
	return FormatDuration(int(d.Milliseconds()))
}

// FormatBytes formats bytes to a human readable IEC string ("25 MiB").
func FormatBytes(bytes int64) string {
	if bytes < 0 {
		return fmt.Sprintf("%d B", bytes)
	}
	return humanize.IBytes(uint64(bytes))
}

// FormatCount formats an integer with thousands separators.
func FormatCount(n int) string {
	return humanize.Comma(int64(n))
}
