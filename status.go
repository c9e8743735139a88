package eshealth

import (
	"fmt"
	"strconv"
)

// Status is the aggregate health colour reported by the cluster health API.
type Status string

const (
	StatusRed    Status = "red"
	StatusYellow Status = "yellow"
	StatusGreen  Status = "green"
)

// statusOrdinals ranks statuses by severity: green > yellow > red.
var statusOrdinals = map[Status]int{
	StatusRed:    0,
	StatusYellow: 1,
	StatusGreen:  2,
}

// ParseStatus validates a status string as returned by the cluster or
// supplied through configuration.
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if !status.Valid() {
		return "", fmt.Errorf("invalid cluster status %q: must be one of red, yellow, green", s)
	}
	return status, nil
}

// Valid reports whether the status is one of the three known colours.
func (s Status) Valid() bool {
	_, ok := statusOrdinals[s]
	return ok
}

// Ordinal returns the severity rank of the status (red=0, yellow=1, green=2),
// or -1 for an unknown status.
func (s Status) Ordinal() int {
	ord, ok := statusOrdinals[s]
	if !ok {
		return -1
	}
	return ord
}

// Satisfies reports whether this (actual) status meets or exceeds the desired
// status, i.e. ordinal(desired) <= ordinal(actual). An unknown status on
// either side never satisfies.
func (s Status) Satisfies(desired Status) bool {
	want, ok := statusOrdinals[desired]
	if !ok {
		return false
	}
	have, ok := statusOrdinals[s]
	if !ok {
		return false
	}
	return want <= have
}

// CoerceCount normalizes a node-count expression: a bare integer such as "42"
// becomes an int, anything else (for example ">=10" or "le(3)") is returned
// as the original string.
func CoerceCount(s string) any {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return s
}
