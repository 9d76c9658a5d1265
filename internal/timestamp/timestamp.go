// Package timestamp parses the MM:SS / HH:MM:SS offsets accepted by the
// video import request.
package timestamp

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrEmpty  = errors.New("timestamp: empty string")
	ErrFormat = errors.New("timestamp: expected MM:SS or HH:MM:SS")
)

// Parse converts a clock-style offset into a duration. Accepted shapes are
// MM:SS and HH:MM:SS; minutes and seconds must be in [0, 59], hours in
// [0, 23].
func Parse(s string) (time.Duration, error) {
	if s == "" {
		return 0, ErrEmpty
	}

	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q", ErrFormat, s)
	}

	values := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("%w: component %q", ErrFormat, p)
		}
		values[i] = v
	}

	var hours, minutes, seconds int
	if len(values) == 2 {
		minutes, seconds = values[0], values[1]
	} else {
		hours, minutes, seconds = values[0], values[1], values[2]
	}

	if seconds > 59 {
		return 0, fmt.Errorf("%w: seconds out of range in %q", ErrFormat, s)
	}
	if minutes > 59 {
		return 0, fmt.Errorf("%w: minutes out of range in %q", ErrFormat, s)
	}
	if hours > 23 {
		return 0, fmt.Errorf("%w: hours out of range in %q", ErrFormat, s)
	}

	return time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second, nil
}

// ParseOptional is Parse with "empty means no bound" semantics: an empty
// string yields ok=false and no error.
func ParseOptional(s string) (d time.Duration, ok bool, err error) {
	if s == "" {
		return 0, false, nil
	}
	d, err = Parse(s)
	if err != nil {
		return 0, false, err
	}
	return d, true, nil
}
