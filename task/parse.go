package task

import (
	"errors"
	"regexp"
	"strconv"
)

// windowPattern accepts a case-insensitive, whitespace-separated
// "s=<int> e=<int>" (or the long forms "start"/"end") anywhere in a message
// body. The first match wins.
var windowPattern = regexp.MustCompile(`(?i)(s|start)=(\d+)\s+(e|end)=(\d+)`)

// ErrNoPattern signals that a message body carries no cut window at all.
var ErrNoPattern = errors.New("no cut window found in message body")

// ParseWindow extracts the requested start/end in milliseconds from a
// message body. The values are returned as written, un-normalized.
func ParseWindow(body string) (startMS, endMS int64, err error) {
	m := windowPattern.FindStringSubmatch(body)
	if m == nil {
		return 0, 0, ErrNoPattern
	}
	startMS, err = strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	endMS, err = strconv.ParseInt(m[4], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	return startMS, endMS, nil
}

// FixStartEnd normalizes a window: the lower value becomes start, the larger
// becomes end, and both are floored at zero. The result is independent of
// argument order.
func FixStartEnd(start, end int64) (int64, int64) {
	if start > end {
		start, end = end, start
	}
	if start < 0 {
		start = 0
	}
	if end < start {
		end = start
	}
	return start, end
}
