package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// parseRetention accepts Go durations plus a day suffix ("30d").
func parseRetention(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if days, ok := strings.CutSuffix(v, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid retention %q", v)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid retention %q: %w", v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid retention %q: must be positive", v)
	}
	return d, nil
}
