package filter

import (
	"strings"

	"github.com/dustin/go-humanize"
)

// ParseSize reads sizes such as "1.4 GB", "700MiB" or "1,024 KB". Zero when unreadable.
func ParseSize(s string) int64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\u00a0", " "))
	if s == "" {
		return 0
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0
	}
	return int64(n)
}

// FormatSize renders bytes with binary units, e.g. "1.5 GiB".
func FormatSize(bytes int64) string {
	if bytes <= 0 {
		return "unknown"
	}
	return humanize.IBytes(uint64(bytes))
}
