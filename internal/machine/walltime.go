package machine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jackleland/autospice/internal/errs"
)

// Walltime is a wall-clock duration in whole seconds.
type Walltime int

// WalltimeHours builds a Walltime from whole hours.
func WalltimeHours(hours int) Walltime {
	return Walltime(hours * 3600)
}

// WalltimeSeconds builds a Walltime from raw seconds.
func WalltimeSeconds(seconds int) Walltime {
	return Walltime(seconds)
}

// ParseWalltime parses a requested walltime. Accepted forms are "H:MM:SS",
// "H:MM", and a bare integer number of hours.
func ParseWalltime(s string) (Walltime, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errs.Configf("walltime must not be empty")
	}

	if !strings.Contains(s, ":") {
		hours, err := strconv.Atoi(s)
		if err != nil || hours < 0 {
			return 0, errs.Configf("invalid walltime %q: expected H:MM:SS or a whole number of hours", s)
		}
		return WalltimeHours(hours), nil
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, errs.Configf("invalid walltime %q: expected H:MM:SS", s)
	}
	fields := make([]int, len(parts))
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, errs.Configf("invalid walltime %q: expected H:MM:SS", s)
		}
		fields[i] = n
	}

	hours := fields[0]
	minutes := fields[1]
	seconds := 0
	if len(fields) == 3 {
		seconds = fields[2]
	}
	if minutes > 59 || seconds > 59 {
		return 0, errs.Configf("invalid walltime %q: minutes and seconds must be below 60", s)
	}
	return Walltime(hours*3600 + minutes*60 + seconds), nil
}

// Seconds returns the walltime in seconds.
func (w Walltime) Seconds() int {
	return int(w)
}

// String formats the walltime as H:MM:SS with unpadded hours, the form the
// scheduler directive tables expect.
func (w Walltime) String() string {
	total := int(w)
	return fmt.Sprintf("%d:%02d:%02d", total/3600, total%3600/60, total%60)
}
