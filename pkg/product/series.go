package product

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/de-bkg/gnssfetch/pkg/gnss"
)

// ProductsRoot is the root of the weekly product directories in the CDDIS archive.
const ProductsRoot = "/gnss/products"

// Defaults for the project and version fields.
const (
	DefaultCenter  = "IGS"
	DefaultProject = "OPS"
	DefaultVersion = "0"
)

// WeekDir returns the archive directory holding the products of the GPS week of e, e.g. "/gnss/products/2243".
func WeekDir(e gnss.Epoch) string {
	return path.Join(ProductsRoot, fmt.Sprintf("%04d", e.Week()))
}

// TimespanFor returns the nominal span of a product of the given solution type.
// Ultra-rapids cover two days, all others one day.
func TimespanFor(solution string) time.Duration {
	if strings.EqualFold(solution, "ULT") {
		return 48 * time.Hour
	}
	return 24 * time.Hour
}

// Product describes a series of products, one file per timespan.
// Empty fields are derived: center, project and version take the defaults,
// sampling rate and content type come from the rule tables and the timespan from the solution type.
type Product struct {
	Format       string // SP3, CLK, ERP, BIA, SNX, ...
	Center       string
	SolutionType string
	Project      string
	Version      string
	SamplingRate string
	ContentType  string
	Timespan     time.Duration
	Convention   Convention
}

// Span returns the timespan of one product file.
func (p Product) Span() time.Duration {
	if p.Timespan > 0 {
		return p.Timespan
	}
	return TimespanFor(p.SolutionType)
}

// Fields returns the filename fields of the product starting at start.
func (p Product) Fields(start gnss.Epoch) (Fields, error) {
	center := strings.ToUpper(p.Center)
	if center == "" {
		center = DefaultCenter
	}

	cnt := p.ContentType
	if cnt == "" {
		var err error
		if cnt, err = ContentType(p.Format, center); err != nil {
			return Fields{}, err
		}
	}

	smp := p.SamplingRate
	if smp == "" {
		smp = SamplingRate(p.Format, center, p.SolutionType)
	}

	f := Fields{
		Center:       center,
		Version:      p.Version,
		Project:      p.Project,
		SolutionType: strings.ToUpper(p.SolutionType),
		Start:        start,
		Timespan:     p.Span(),
		SamplingRate: smp,
		ContentType:  cnt,
		Format:       strings.ToUpper(p.Format),
		Convention:   p.Convention,
	}
	if f.Version == "" {
		f.Version = DefaultVersion
	}
	if f.Project == "" {
		f.Project = DefaultProject
	}
	return f, nil
}

// At returns the remote filename of the product starting at start.
func (p Product) At(start gnss.Epoch) (FileName, error) {
	f, err := p.Fields(start)
	if err != nil {
		return FileName{}, err
	}
	name, err := f.RemoteName()
	if err != nil {
		return FileName{}, fmt.Errorf("product %s at %s: %w", p.Format, start, err)
	}
	return FileName{Name: name, Fields: f}, nil
}
