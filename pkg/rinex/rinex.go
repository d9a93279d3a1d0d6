// Package rinex provides helpers for RINEX filenames and their locations in the CDDIS daily archive.
package rinex

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/de-bkg/gnssfetch/pkg/gnss"
)

// DailyRoot is the root of the daily data directories in the CDDIS archive.
const DailyRoot = "/gnss/data/daily"

// errors
var (
	// ErrNoStationID is returned for filenames without a recognizable station identifier.
	ErrNoStationID = errors.New("RINEX: no station identifier")
)

var (
	// Rnx2FileNamePattern is the regex for RINEX2 filenames.
	Rnx2FileNamePattern = regexp.MustCompile(`(([a-z0-9]{4})(\d{3})([a-x0])(\d{2})?\.(\d{2})([domnglqfph]))\.?([a-zA-Z0-9]+)?`)

	// Rnx3FileNamePattern is the regex for RINEX3 filenames.
	Rnx3FileNamePattern = regexp.MustCompile(`((([A-Z0-9]{4})(\d)(\d)([A-Z]{3})_([RSU])_((\d{4})(\d{3})(\d{2})(\d{2}))_(\d{2}[A-Z])_?(\d{2}[CZSMHDU])?_([GREJCSM][MNO]))\.(rnx|crx))\.?([a-zA-Z0-9]+)?`)
)

// BroadcastFilename returns the name of the daily merged GPS broadcast navigation file
// following the RINEX2 convention, e.g. "brdc0010.23n.gz".
func BroadcastFilename(e gnss.Epoch) (string, error) {
	var fn strings.Builder
	fn.WriteString("brdc")
	fn.WriteString(fmt.Sprintf("%03d", e.DayOfYear()))
	fn.WriteString("0")

	yyyy := strconv.Itoa(e.Year())
	fn.WriteString("." + yyyy[2:])
	fn.WriteString("n")

	// Checks
	length := len(fn.String())
	if length != 12 {
		return "", fmt.Errorf("wrong filename length: %s: %d (should: %d)", fn.String(), length, 12)
	}

	fn.WriteString(".gz")
	return fn.String(), nil
}

// BroadcastDir returns the archive directory of the daily broadcast files of the year of e.
func BroadcastDir(e gnss.Epoch) string {
	return path.Join(DailyRoot, strconv.Itoa(e.Year()), "brdc")
}

// DailyObsDir returns the archive directory of the daily observation files of e, e.g. "/gnss/data/daily/2023/001/23d".
func DailyObsDir(e gnss.Epoch) string {
	yyyy := strconv.Itoa(e.Year())
	return path.Join(DailyRoot, yyyy, fmt.Sprintf("%03d", e.DayOfYear()), yyyy[2:]+"d")
}

// IsHatanakaObs reports whether name is a gzipped RINEX3 Hatanaka observation file,
// e.g. "ALGO00CAN_R_20230010000_01D_30S_MO.crx.gz".
func IsHatanakaObs(name string) bool {
	return strings.HasSuffix(name, ".crx.gz") && Rnx3FileNamePattern.MatchString(name)
}

// StationID returns the upper-case 4-char station identifier of a RINEX2 or RINEX3 filename.
func StationID(name string) (string, error) {
	name = path.Base(name)
	if len(name) > 20 { // Rnx3
		if res := Rnx3FileNamePattern.FindStringSubmatch(name); res != nil {
			return res[3], nil
		}
	} else if res := Rnx2FileNamePattern.FindStringSubmatch(name); res != nil {
		return strings.ToUpper(res[2]), nil
	}
	return "", fmt.Errorf("%w: %s", ErrNoStationID, name)
}
