// Package product generates the filenames of IGS products like orbits, clocks or biases,
// following either the legacy short names or the IGS Long Product Filename convention v1.0.
// See http://acc.igs.org/repro3/Long_Product_Filenames_v1.0.pdf.
package product

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/de-bkg/gnssfetch/pkg/gnss"
)

const (
	// longStartTimeFormat is the time format for the start time in long product filenames.
	longStartTimeFormat string = "20060021504"

	gzipSuffix     = ".gz"
	compressSuffix = ".Z"
)

// errors
var (
	// ErrUnknownFormat is returned for a product format extension that has no content type.
	ErrUnknownFormat = errors.New("product: unknown format")

	// ErrInvalidField is returned if a filename field does not have the required width.
	ErrInvalidField = errors.New("product: invalid filename field")
)

// LongFilenameCutover is the instant the CDDIS archive switched to long product filenames (GPS week 2238).
var LongFilenameCutover = time.Date(2022, 11, 27, 0, 0, 0, 0, time.UTC)

// Convention is a product filename convention.
type Convention int

// Filename conventions. ConventionAuto picks the convention by the epoch of the product.
const (
	ConventionAuto Convention = iota
	ConventionLegacy
	ConventionLong
)

func (c Convention) String() string {
	return [...]string{"auto", "legacy", "long"}[c]
}

// PickConvention returns the naming convention used by the archive for products starting at e.
func PickConvention(e gnss.Epoch) Convention {
	if e.Time().Before(LongFilenameCutover) {
		return ConventionLegacy
	}
	return ConventionLong
}

// Fields holds all parts of a product filename.
type Fields struct {
	Center       string        // AAA, analysis center, e.g. COD
	Version      string        // V, 1 digit
	Project      string        // PPP, e.g. OPS, EXP
	SolutionType string        // TTT, e.g. FIN, RAP, ULT
	Start        gnss.Epoch    // YYYYDDDHHMM
	End          gnss.Epoch    // optional, Start+Timespan if zero
	Timespan     time.Duration // LEN
	SamplingRate string        // SMP, e.g. 05M
	ContentType  string        // CNT, e.g. ORB
	Format       string        // FMT, the extension, e.g. SP3
	Convention   Convention
}

// EncodeLong returns the filename following the IGS long product filename convention, without compression suffix:
// AAAVPPPTTT_YYYYDDDHHMM_LEN_SMP_CNT.FMT
func EncodeLong(f Fields) (string, error) {
	end := f.End
	if end.IsZero() {
		end = f.Start.Add(f.Timespan)
	}
	span, err := gnss.SpanCode(f.Start, end)
	if err != nil {
		return "", err
	}

	checks := []struct {
		name, val string
		length    int
	}{
		{"center", f.Center, 3}, {"version", f.Version, 1}, {"project", f.Project, 3},
		{"solution type", f.SolutionType, 3}, {"sampling rate", f.SamplingRate, 3}, {"content type", f.ContentType, 3},
	}
	for _, c := range checks {
		if len(c.val) != c.length {
			return "", fmt.Errorf("%w: %s %q must have %d chars", ErrInvalidField, c.name, c.val, c.length)
		}
	}
	if f.Format == "" {
		return "", fmt.Errorf("%w: empty format", ErrInvalidField)
	}

	var fn strings.Builder
	fn.WriteString(strings.ToUpper(f.Center))
	fn.WriteString(f.Version)
	fn.WriteString(strings.ToUpper(f.Project))
	fn.WriteString(strings.ToUpper(f.SolutionType))
	fn.WriteString("_")
	fn.WriteString(f.Start.Time().Format(longStartTimeFormat))
	fn.WriteString("_")
	fn.WriteString(span)
	fn.WriteString("_")
	fn.WriteString(f.SamplingRate)
	fn.WriteString("_")
	fn.WriteString(f.ContentType)
	fn.WriteString(".")
	fn.WriteString(strings.ToUpper(f.Format))

	return fn.String(), nil
}

// EncodeLegacy returns the legacy short filename including the .Z suffix.
// Station coordinate solutions are weekly: igs{yy}P{week}.snx.Z, all other products are
// ultra-rapids: igu{week}{dow}_{hh}.{ext}.Z.
func EncodeLegacy(f Fields) string {
	ext := strings.ToLower(f.Format)
	if ext == "snx" {
		return fmt.Sprintf("igs%02dP%04d.snx%s", f.Start.Year()%100, f.Start.Week(), compressSuffix)
	}
	return fmt.Sprintf("igu%s_%02d.%s%s", f.Start.WeekDay(), f.Start.Time().Hour(), ext, compressSuffix)
}

// RemoteName returns the filename as published in the archive, including the compression suffix.
func (f Fields) RemoteName() (string, error) {
	conv := f.Convention
	if conv == ConventionAuto {
		conv = PickConvention(f.Start)
	}

	if conv == ConventionLegacy {
		return EncodeLegacy(f), nil
	}

	name, err := EncodeLong(f)
	if err != nil {
		return "", err
	}
	return name + gzipSuffix, nil
}

// FileName is a generated product filename together with the fields it was built from.
type FileName struct {
	Name   string
	Fields Fields
}

// Epoch returns the start epoch of the product.
func (fn FileName) Epoch() gnss.Epoch {
	return fn.Fields.Start
}

func (fn FileName) String() string {
	return fn.Name
}
