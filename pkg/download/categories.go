package download

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/de-bkg/gnssfetch/pkg/gnss"
	"github.com/de-bkg/gnssfetch/pkg/gnssdata"
	"github.com/de-bkg/gnssfetch/pkg/product"
	"github.com/de-bkg/gnssfetch/pkg/rinex"
	"github.com/de-bkg/gnssfetch/pkg/transport"
	log "github.com/sirupsen/logrus"
)

// Static locations of models.
const (
	ATXBaseURL = "https://files.igs.org/pub/station/general/"
	PEABaseURL = "https://peanpod.s3-ap-southeast-2.amazonaws.com/pea/examples/EX03/products/"
	BLQFile    = "OLOAD_GO.BLQ"
	GPT2File   = "gpt_25.grd"
)

// SINEXProduct is the daily IGS station coordinate solution.
var SINEXProduct = product.Product{
	Format:       "SNX",
	Center:       "IGS",
	SolutionType: "SNX",
	SamplingRate: "01D",
	ContentType:  "CRD",
	Timespan:     24 * time.Hour,
}

// ATXName returns the name of the antenna model matching the reference frame in use at e.
func ATXName(e gnss.Epoch) string {
	if product.PickConvention(e) == product.ConventionLong {
		return "igs20.atx"
	}
	return "igs14.atx"
}

// ATX downloads the IGS antenna model valid at ref.
func (o *Orchestrator) ATX(ctx context.Context, dir string, ref gnss.Epoch) (string, error) {
	return o.fetcher().Fetch(ctx, Transfer{Source: o.Web, RemoteDir: ATXBaseURL, RemoteName: ATXName(ref), LocalDir: dir})
}

// BLQ downloads the ocean loading model.
func (o *Orchestrator) BLQ(ctx context.Context, dir string) (string, error) {
	return o.fetcher().Fetch(ctx, Transfer{Source: o.Web, RemoteDir: PEABaseURL, RemoteName: BLQFile, LocalDir: dir})
}

// GPT2 downloads the GPT 2.5 troposphere model grid.
func (o *Orchestrator) GPT2(ctx context.Context, dir string) (string, error) {
	return o.fetcher().Fetch(ctx, Transfer{Source: o.Web, RemoteDir: PEABaseURL, RemoteName: GPT2File, LocalDir: dir})
}

// Broadcast downloads the daily broadcast navigation files covering the request, starting the day before.
func (o *Orchestrator) Broadcast(ctx context.Context, req Request) ([]string, error) {
	if req.NavSource == SourceGNSSData {
		q := gnssdata.Query{
			Stations:     []string{"BRDC"},
			FileType:     "nav",
			RinexVersion: 2,
			FilePeriod:   req.RinexFilePeriod,
			Decompress:   true,
			Start:        req.Start.Time(),
			End:          req.End.Time(),
		}
		return o.fromGNSSData(ctx, q, req.ProductDir)
	}

	var transfers []Transfer
	for ref := req.Start.AddDays(-1); req.End.Sub(ref) > 0; ref = ref.Next() {
		name, err := rinex.BroadcastFilename(ref)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, Transfer{
			Source:     o.CDDIS,
			RemoteDir:  rinex.BroadcastDir(ref),
			RemoteName: name,
			LocalDir:   req.ProductDir,
			Decompress: true,
		})
	}
	return o.fetcher().FetchAll(ctx, transfers, o.Workers)
}

// SINEX downloads the station coordinate solution at the start of the request. If it is not published yet
// or the request asks for the most recent files, the most recent solution is downloaded.
func (o *Orchestrator) SINEX(ctx context.Context, req Request) (string, error) {
	if !req.MostRecent {
		paths, err := o.ProductSeries(ctx, Series{Product: SINEXProduct, Start: req.Start, End: req.End, Limit: 1, Dir: req.ProductDir})
		if err == nil && len(paths) > 0 {
			return paths[0], nil
		}
		if !errors.Is(err, ErrProductNotYetAvailable) {
			return "", err
		}
		o.logger().Infof("Date too recent (%v), downloading the most recent SNX file available", err)
	}
	return o.MostRecentProduct(ctx, SINEXProduct, req.Pointer(), req.ProductDir)
}

// Observations downloads the RINEX observation files of the requested stations.
func (o *Orchestrator) Observations(ctx context.Context, req Request) ([]string, error) {
	if req.ObsSource == SourceCDDIS {
		avail, err := o.AvailableStations(ctx, req.Start, req.End)
		if err != nil {
			return nil, err
		}
		if missing := slices.DeleteFunc(slices.Clone(req.Stations), func(s string) bool {
			return slices.Contains(avail, strings.ToUpper(s))
		}); len(missing) > 0 {
			o.logger().WithField("stations", strings.Join(missing, ",")).Info("Not available on every day")
		}

		var paths []string
		for day := req.Start.Midnight(); day.Before(req.End); day = day.Next() {
			p, err := o.DailyObservations(ctx, req.Stations, day, req.RinexDir, req.Crx2rnx)
			if err != nil {
				return paths, err
			}
			paths = append(paths, p...)
		}
		return paths, nil
	}

	version := req.RinexVersion
	if version == 0 {
		version = 3
	}
	q := gnssdata.Query{
		Stations:     req.Stations,
		FileType:     "obs",
		RinexVersion: version,
		FilePeriod:   req.RinexFilePeriod,
		Decompress:   true,
		Start:        req.Start.Time(),
		End:          req.End.Time(),
	}
	return o.fromGNSSData(ctx, q, req.RinexDir)
}

// fromGNSSData downloads the files matching the query and logs the stations without files.
func (o *Orchestrator) fromGNSSData(ctx context.Context, q gnssdata.Query, dir string) ([]string, error) {
	entries, err := o.GNSSData.RinexFiles(ctx, q)
	if err != nil {
		return nil, err
	}

	transfers := make([]Transfer, 0, len(entries))
	for _, e := range entries {
		name, err := e.LocalName()
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, Transfer{Source: o.Web, RemoteName: e.FileLocation, LocalDir: dir, LocalName: name})
	}
	paths, err := o.fetcher().FetchAll(ctx, transfers, o.Workers)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(paths))
	for _, t := range transfers {
		names = append(names, t.LocalName)
	}
	if missing := gnssdata.MissingStations(q.Stations, names); len(missing) > 0 {
		o.logger().WithField("stations", strings.Join(missing, ",")).Info("Not downloaded / missing")
	}
	return paths, nil
}

// AvailableStations returns the stations having Hatanaka compressed daily observations in CDDIS
// on every day from start to end (exclusive), sorted.
func (o *Orchestrator) AvailableStations(ctx context.Context, start, end gnss.Epoch) ([]string, error) {
	sess, err := o.CDDIS.Dial(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	last := end.Add(-time.Second).Midnight()
	var avail []string
	first := true
	for day := start.Midnight(); !last.Before(day); day = day.Next() {
		dir := rinex.DailyObsDir(day)
		o.logger().WithField("dir", dir).Info("Searching for stations")
		if err := sess.ChangeDir(ctx, dir); err != nil {
			return nil, err
		}
		listing, err := sess.List(ctx)
		if err != nil {
			return nil, err
		}

		var stations []string
		for _, name := range listing {
			if !rinex.IsHatanakaObs(name) {
				continue
			}
			if id, err := rinex.StationID(name); err == nil {
				stations = append(stations, id)
			}
		}

		if first {
			avail = stations
			first = false
		} else {
			avail = slices.DeleteFunc(avail, func(s string) bool { return !slices.Contains(stations, s) })
		}
	}

	slices.Sort(avail)
	return slices.Compact(avail), nil
}

// DailyObservations downloads the daily observation files of the stations from CDDIS
// and optionally converts them from Hatanaka to plain RINEX.
func (o *Orchestrator) DailyObservations(ctx context.Context, stations []string, day gnss.Epoch, dir string, crx2rnx bool) ([]string, error) {
	remoteDir := rinex.DailyObsDir(day)
	logger := o.logger().WithField("dir", remoteDir)
	logger.Infof("Downloading daily RINEX data for %s", day)

	sess, err := o.CDDIS.Dial(ctx)
	if err != nil {
		return nil, err
	}
	if err := sess.ChangeDir(ctx, remoteDir); err != nil {
		sess.Close()
		return nil, err
	}
	listing, err := sess.List(ctx)
	sess.Close()
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(stations))
	for _, s := range stations {
		wanted[strings.ToUpper(s)] = true
	}
	var (
		paths     []string
		transfers []Transfer
		slots     []int
	)
	for _, name := range listing {
		if !rinex.IsHatanakaObs(name) {
			continue
		}
		id, err := rinex.StationID(name)
		if err != nil || !wanted[id] {
			continue
		}
		if crx2rnx {
			if rnx, err := rinex.RnxFilename(transport.DecompressedName(name)); err == nil && fileExists(filepath.Join(dir, rnx)) {
				logger.WithField("file", rnx).Infof("File already present in %s", dir)
				paths = append(paths, filepath.Join(dir, rnx))
				continue
			}
		}
		slots = append(slots, len(paths))
		paths = append(paths, "")
		transfers = append(transfers, Transfer{Source: o.CDDIS, RemoteDir: remoteDir, RemoteName: name, LocalDir: dir, Decompress: true})
	}
	logger.WithField("files", len(transfers)).Infof("Downloading stations: %s", strings.Join(stations, ","))

	fetched, err := o.fetcher().FetchAll(ctx, transfers, o.Workers)
	if err != nil {
		return nil, err
	}
	for i, p := range fetched {
		if crx2rnx {
			if p, err = rinex.Crx2rnx(ctx, p); err != nil {
				return nil, fmt.Errorf("crx2rnx: %w", err)
			}
		}
		paths[slots[i]] = p
	}
	if crx2rnx {
		logger.WithFields(log.Fields{"files": len(fetched)}).Debug("Hatanaka decompressed")
	}
	return paths, nil
}
