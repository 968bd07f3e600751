package ilp

import (
	"fmt"
	"strconv"
	"time"
)

// timestampLength is the fixed width of the ILP interval timestamp:
// YYYYMMDDHHMMSSmmm (4+2+2+2+2+2+3 = 17 ASCII digits).
const timestampLength = 17

const timestampLayout = "20060102150405.000"

// encodeTimestamp renders t (truncated to the second, UTC) as the fixed
// 17-byte ASCII form. The codec itself only ever stores second precision
// (per §4.1), so the millisecond component is always "000".
func encodeTimestamp(t time.Time) []byte {
	t = t.UTC().Truncate(time.Second)
	s := fmt.Sprintf("%04d%02d%02d%02d%02d%02d%03d",
		t.Year(), int(t.Month()), t.Day(),
		t.Hour(), t.Minute(), t.Second(), 0)
	return []byte(s)
}

// decodeTimestamp parses the fixed 17-byte ASCII form into a UTC time.
func decodeTimestamp(b []byte) (time.Time, error) {
	if len(b) != timestampLength {
		return time.Time{}, newParseError("expires_at", ErrInvalidPacket)
	}
	s := string(b)
	field := func(lo, hi int) (int, error) {
		n, err := strconv.Atoi(s[lo:hi])
		if err != nil {
			return 0, newParseError("expires_at", err)
		}
		return n, nil
	}
	year, err := field(0, 4)
	if err != nil {
		return time.Time{}, err
	}
	month, err := field(4, 6)
	if err != nil {
		return time.Time{}, err
	}
	day, err := field(6, 8)
	if err != nil {
		return time.Time{}, err
	}
	hour, err := field(8, 10)
	if err != nil {
		return time.Time{}, err
	}
	min, err := field(10, 12)
	if err != nil {
		return time.Time{}, err
	}
	sec, err := field(12, 14)
	if err != nil {
		return time.Time{}, err
	}
	if _, err := field(14, 17); err != nil {
		return time.Time{}, err
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, newParseError("expires_at", fmt.Errorf("out of range"))
	}
	return time.Date(year, time.Month(month), day, hour, min, sec, 0, time.UTC), nil
}
