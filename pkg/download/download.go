// Package download sequences the download of GNSS products, broadcast navigation files, models and
// RINEX observations from CDDIS, the GNSS data archive and static web locations.
package download

import (
	"errors"

	"github.com/de-bkg/gnssfetch/pkg/gnss"
)

// DefaultWorkers is the number of concurrent transfers of a batch.
const DefaultWorkers = 4

// ErrProductNotYetAvailable is returned if the week directory of a product exists
// but the product is not listed yet.
var ErrProductNotYetAvailable = errors.New("download: product not yet available")

// Source is an archive for RINEX files.
type Source string

// Sources
const (
	SourceCDDIS    Source = "cddis"
	SourceGNSSData Source = "gnss-data"
)

// Categories selects what to download.
type Categories struct {
	ATX  bool // antenna model
	BLQ  bool // ocean loading model
	GPT2 bool // troposphere model grid
	NAV  bool // broadcast navigation
	SNX  bool // station coordinates
	SP3  bool // orbits
	ERP  bool // earth rotation parameters
	CLK  bool // clocks
	BIA  bool // biases
}

// Request is the complete, resolved description of a download run.
type Request struct {
	Start      gnss.Epoch
	End        gnss.Epoch
	MostRecent bool

	Categories Categories

	Center       string // analysis center of orbits, clocks and ERPs
	SolutionType string // FIN, RAP, ULT
	BiasCenter   string // analysis center of biases

	Stations        []string
	RinexFilePeriod string
	RinexVersion    int
	NavSource       Source
	ObsSource       Source
	Crx2rnx         bool // Hatanaka decompress observations from CDDIS

	ProductDir string
	RinexDir   string
	TropDir    string
}

// Pointer returns the epoch the search for the most recent products starts from.
func (r Request) Pointer() gnss.Epoch {
	if r.MostRecent || r.Start.IsZero() {
		return gnss.Today()
	}
	return r.Start.Midnight()
}
