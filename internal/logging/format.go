package logging

import "fmt"

// FormatBytes renders a byte count with a binary unit suffix for status
// output and log fields.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < 0 {
		n = 0
	}
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
