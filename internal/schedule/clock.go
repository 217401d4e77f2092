package schedule

import (
	"fmt"
	"strconv"
	"strings"
)

// MinuteOfDay is a wall-clock time expressed as minutes since midnight.
// All slot arithmetic happens on this type; "HH:mm" strings exist only
// at the API boundary.
type MinuteOfDay int

// ParseMinuteOfDay parses an "HH:mm" string. Exactly two digits on each
// side of the colon; no signs, no spaces.
func ParseMinuteOfDay(s string) (MinuteOfDay, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 || !twoDigits(parts[0]) || !twoDigits(parts[1]) {
		return 0, fmt.Errorf("invalid time %q, expected HH:mm", s)
	}

	h, _ := strconv.Atoi(parts[0])
	if h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}

	m, _ := strconv.Atoi(parts[1])
	if m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}

	return MinuteOfDay(h*60 + m), nil
}

func twoDigits(s string) bool {
	return len(s) == 2 &&
		s[0] >= '0' && s[0] <= '9' &&
		s[1] >= '0' && s[1] <= '9'
}

func (m MinuteOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(m)/60, int(m)%60)
}
