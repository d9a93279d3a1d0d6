// Package gnss contains common constants, the GNSS calendar and time span helpers.
package gnss

import (
	"errors"
	"time"
)

// errors
var (
	// ErrInvalidDate is returned when a date or date-time could not be parsed.
	ErrInvalidDate = errors.New("gnss: invalid date")

	// ErrUnsupportedSpan is returned when a time span can not be expressed in whole days, hours or minutes.
	ErrUnsupportedSpan = errors.New("gnss: unsupported span")
)

// GPSEpoch is the origin of the GPS week count.
var GPSEpoch = time.Date(1980, 1, 6, 0, 0, 0, 0, time.UTC)

const (
	// DefaultDateTimeLayout is the layout used for parsing date-time strings if nothing else is configured.
	DefaultDateTimeLayout = "2006-01-02_15:04:05"

	day  = 24 * time.Hour
	week = 7 * day
)
