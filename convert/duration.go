package convert

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xhit/go-str2duration/v2"
)

// clockDuration matches [-][d.]hh:mm[:ss[.fraction]].
var clockDuration = regexp.MustCompile(`^(-)?(?:(\d+)\.)?(\d{1,2}):(\d{1,2})(?::(\d{1,2})(?:\.(\d{1,9}))?)?$`)

// ParseDuration parses the duration spellings accepted in configuration:
// clock form "13:00:10", day form "1.02:03:04", Go form "1h30m" and day or
// week units such as "2d" or "1w". Bare numbers are rejected because their
// unit is ambiguous.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return 0, fmt.Errorf("%w: %q", ErrNumericDuration, s)
	}
	if m := clockDuration.FindStringSubmatch(s); m != nil {
		return clockToDuration(m)
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	d, err := str2duration.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}
	return d, nil
}

func clockToDuration(m []string) (time.Duration, error) {
	atoi := func(s string) int {
		if s == "" {
			return 0
		}
		n, _ := strconv.Atoi(s)
		return n
	}
	hours, minutes, seconds := atoi(m[3]), atoi(m[4]), atoi(m[5])
	if hours > 23 || minutes > 59 || seconds > 59 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidDuration, m[0])
	}
	d := time.Duration(atoi(m[2]))*24*time.Hour +
		time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second
	if frac := m[6]; frac != "" {
		frac += strings.Repeat("0", 9-len(frac))
		d += time.Duration(atoi(frac))
	}
	if m[1] == "-" {
		d = -d
	}
	return d, nil
}

// FormatDuration renders d in the clock form read by ParseDuration.
func FormatDuration(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	sec := d / time.Second
	d -= sec * time.Second

	out := sign
	if days > 0 {
		out += strconv.FormatInt(int64(days), 10) + "."
	}
	out += fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
	if d > 0 {
		out += "." + strings.TrimRight(fmt.Sprintf("%09d", d), "0")
	}
	return out
}
