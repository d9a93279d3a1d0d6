package gnss

import (
	"fmt"
	"time"
)

// SpanCode returns the 3-char nominal span between start and end as used in IGS long filenames,
// e.g. "01D", "06H" or "15M". The unit is the coarsest of day, hour and minute dividing the span evenly.
func SpanCode(start, end Epoch) (string, error) {
	return DurationCode(end.Sub(start))
}

// DurationCode returns the 3-char code for the duration d, see SpanCode.
func DurationCode(d time.Duration) (string, error) {
	if d <= 0 {
		return "", fmt.Errorf("%w: non-positive span %s", ErrUnsupportedSpan, d)
	}

	var (
		n    int64
		unit string
	)
	switch {
	case d%day == 0:
		n, unit = int64(d/day), "D"
	case d%time.Hour == 0:
		n, unit = int64(d/time.Hour), "H"
	case d%time.Minute == 0:
		n, unit = int64(d/time.Minute), "M"
	default:
		return "", fmt.Errorf("%w: %s is not a multiple of minutes", ErrUnsupportedSpan, d)
	}

	if n > 99 {
		return "", fmt.Errorf("%w: %s does not fit into 2 digits", ErrUnsupportedSpan, d)
	}
	return fmt.Sprintf("%02d%s", n, unit), nil
}
