package normalize

import (
	"strconv"
	"strings"
	"time"
)

// Time-of-day tokens.
const (
	TokenHour      = "t_hour"
	TokenMidnight  = "t_midnight"
	TokenDawn      = "t_dawn"
	TokenForenoon  = "t_forenoon"
	TokenAfternoon = "t_afternoon"
	TokenDusk      = "t_dusk"
	TokenNight     = "t_night"
)

// clockLayout accepts one or two digit hours and minutes.
const clockLayout = "3:4 pm"

// ClassifyTime maps a matched clock expression such as "10:30 AM" to a
// time-of-day token. A match that still holds a redaction marker becomes
// TokenHour. Anything that does not parse is returned unchanged.
func ClassifyTime(match string) string {
	text := strings.ToLower(strings.TrimSpace(match))
	if strings.Contains(text, "**") {
		return TokenHour
	}
	hour, ok := parseClock(text)
	if !ok {
		return match
	}
	return Bucket(hour)
}

// Bucket returns the token for a 24-hour clock hour.
func Bucket(hour int) string {
	switch {
	case hour >= 0 && hour < 4:
		return TokenMidnight
	case hour >= 4 && hour < 8:
		return TokenDawn
	case hour >= 8 && hour < 12:
		return TokenForenoon
	case hour >= 12 && hour < 16:
		return TokenAfternoon
	case hour >= 16 && hour < 20:
		return TokenDusk
	default:
		return TokenNight
	}
}

// parseClock parses "h:mm am|pm" into a 24-hour hour. A blank or "00" hour
// reads as 12 (with blank minutes as 00), and hours above 12 wrap modulo 12.
func parseClock(text string) (int, bool) {
	fields := strings.Fields(text)
	if len(fields) != 2 || fields[1] == "" {
		return 0, false
	}
	meridiem := "pm"
	if fields[1][0] == 'a' {
		meridiem = "am"
	}

	hh, mm, found := strings.Cut(fields[0], ":")
	if !found {
		return 0, false
	}
	if hh == "" || hh == "00" {
		if mm == "" {
			mm = "00"
		}
		hh = "12"
	}
	n, err := strconv.Atoi(hh)
	if err != nil {
		return 0, false
	}
	if n > 12 {
		n %= 12
	}
	// 12-hour clocks have no hour zero.
	if n == 0 {
		return 0, false
	}

	t, err := time.Parse(clockLayout, strconv.Itoa(n)+":"+mm+" "+meridiem)
	if err != nil {
		return 0, false
	}
	return t.Hour(), true
}
