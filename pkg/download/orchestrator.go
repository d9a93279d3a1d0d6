package download

import (
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"time"

	"github.com/de-bkg/gnssfetch/pkg/gnss"
	"github.com/de-bkg/gnssfetch/pkg/gnssdata"
	"github.com/de-bkg/gnssfetch/pkg/product"
	"github.com/de-bkg/gnssfetch/pkg/search"
	"github.com/de-bkg/gnssfetch/pkg/transport"
	log "github.com/sirupsen/logrus"
)

// recentShift is the backward shift of the start of a series whose week directory is not published yet.
const recentShift = -6 * time.Hour

// Orchestrator downloads products and data from the configured archives.
type Orchestrator struct {
	CDDIS    transport.Dialer // products, broadcast and daily observations
	Web      transport.Dialer // static files and gnss-data file locations
	GNSSData *gnssdata.Client
	Fetcher  *Fetcher
	Workers  int // concurrent transfers per batch, defaults to DefaultWorkers
	MaxWeeks int // look-back of most recent searches, defaults to search.DefaultMaxWeeks
	Log      log.FieldLogger
}

// New returns an Orchestrator for the public archives.
func New(fetcher *Fetcher, logger log.FieldLogger) *Orchestrator {
	if logger == nil {
		logger = log.StandardLogger()
	}
	httpClient := transport.NewHTTPClient(false)
	cddis := transport.NewCDDISDialer()
	cddis.Log = logger
	return &Orchestrator{
		CDDIS:    cddis,
		Web:      &transport.HTTPDialer{Client: httpClient, Log: logger},
		GNSSData: &gnssdata.Client{HTTP: httpClient, Log: logger},
		Fetcher:  fetcher,
		Log:      logger,
	}
}

func (o *Orchestrator) logger() log.FieldLogger {
	if o.Log == nil {
		return log.StandardLogger()
	}
	return o.Log
}

func (o *Orchestrator) fetcher() *Fetcher {
	if o.Fetcher == nil {
		o.Fetcher = NewFetcher(DefaultMaxRetries, o.Log)
	}
	return o.Fetcher
}

// Series is a time range of products of one kind.
type Series struct {
	Product product.Product
	Start   gnss.Epoch
	End     gnss.Epoch
	Limit   int // maximum number of files, unlimited if <= 0
	Dir     string
}

// ProductSeries downloads the products covering the series from CDDIS in chronological order and returns their paths.
// If the week directory of the first product does not exist yet, the start is shifted back 6 hours once.
// If the first product is not listed, ErrProductNotYetAvailable is returned.
func (o *Orchestrator) ProductSeries(ctx context.Context, s Series) ([]string, error) {
	logger := o.logger().WithField("format", s.Product.Format)
	logger.Infof("Attempting CDDIS product download from %s to %s", s.Start, s.End)

	ref := s.Start
	fn, err := s.Product.At(ref)
	if err != nil {
		return nil, err
	}
	logger.WithFields(log.Fields{"file": fn.Name, "week": ref.Week()}).Info("Generated filename")

	if !fileExists(o.transfer(fn, s.Dir).LocalPath()) {
		if fn, ref, err = o.checkPublished(ctx, s.Product, fn, ref); err != nil {
			return nil, err
		}
	}

	span := s.Product.Span()
	var paths []string
	for {
		p, err := o.fetcher().Fetch(ctx, o.transfer(fn, s.Dir))
		if err != nil {
			return paths, err
		}
		paths = append(paths, p)

		if s.End.Sub(ref) <= span || (s.Limit > 0 && len(paths) >= s.Limit) {
			return paths, nil
		}
		ref = ref.Add(span)
		if fn, err = s.Product.At(ref); err != nil {
			return paths, err
		}
	}
}

// checkPublished looks up fn in its week directory. If the directory is missing, the reference is
// shifted back once and the returned filename and reference reflect the shift.
func (o *Orchestrator) checkPublished(ctx context.Context, p product.Product, fn product.FileName, ref gnss.Epoch) (product.FileName, gnss.Epoch, error) {
	sess, err := o.CDDIS.Dial(ctx)
	if err != nil {
		return fn, ref, err
	}
	defer sess.Close()

	dir := product.WeekDir(ref)
	err = sess.ChangeDir(ctx, dir)
	if errors.Is(err, transport.ErrPathNotFound) {
		o.logger().WithField("dir", dir).Infof("%s too recent, shifting back %s", ref, -recentShift)
		ref = ref.Add(recentShift)
		if fn, err = p.At(ref); err != nil {
			return fn, ref, err
		}
		dir = product.WeekDir(ref)
		err = sess.ChangeDir(ctx, dir)
	}
	if err != nil {
		return fn, ref, err
	}

	listing, err := sess.List(ctx)
	if err != nil {
		return fn, ref, err
	}
	if !slices.Contains(listing, fn.Name) {
		o.logger().WithFields(log.Fields{"file": fn.Name, "dir": dir}).Info("File not listed, too recent")
		return fn, ref, fmt.Errorf("%w: %s in %s", ErrProductNotYetAvailable, fn.Name, dir)
	}
	return fn, ref, nil
}

// MostRecentProduct downloads the most recent product at or before pointer and returns its path.
// If the week of the pointer has no directory yet, the search starts in the previous week.
func (o *Orchestrator) MostRecentProduct(ctx context.Context, p product.Product, pointer gnss.Epoch, dir string) (string, error) {
	pointer = pointer.Midnight()
	logger := o.logger().WithField("format", p.Format)
	logger.Infof("Searching for most recent file, starting at %s", pointer)

	res, err := o.searchMostRecent(ctx, p, pointer)
	if err != nil {
		return "", err
	}
	return o.fetcher().Fetch(ctx, o.transfer(res.File, dir))
}

func (o *Orchestrator) searchMostRecent(ctx context.Context, p product.Product, pointer gnss.Epoch) (search.Result, error) {
	sess, err := o.CDDIS.Dial(ctx)
	if err != nil {
		return search.Result{}, err
	}
	defer sess.Close()

	if err := sess.ChangeDir(ctx, product.ProductsRoot); err != nil {
		return search.Result{}, err
	}
	weeks, err := sess.List(ctx)
	if err != nil {
		return search.Result{}, err
	}
	if !slices.Contains(weeks, path.Base(product.WeekDir(pointer))) {
		pointer = pointer.StepBack(7 + pointer.DayOfWeek())
	}

	s := &search.Searcher{Session: sess, MaxWeeks: o.MaxWeeks, Log: o.logger()}
	return s.MostRecent(ctx, p, pointer)
}

// transfer returns the transfer of a CDDIS product into dir.
func (o *Orchestrator) transfer(fn product.FileName, dir string) Transfer {
	return Transfer{
		Source:     o.CDDIS,
		RemoteDir:  product.WeekDir(fn.Epoch()),
		RemoteName: fn.Name,
		LocalDir:   dir,
		Decompress: true,
	}
}

// Run downloads everything selected by the request. Categories are processed one after the other,
// the first failure ends the run.
func (o *Orchestrator) Run(ctx context.Context, req Request) error {
	c := req.Categories
	ref := req.Start
	if req.MostRecent || ref.IsZero() {
		ref = gnss.Today()
	}

	steps := []struct {
		enabled bool
		name    string
		run     func() error
	}{
		{c.ATX, "ATX", func() error { _, err := o.ATX(ctx, req.ProductDir, ref); return err }},
		{c.BLQ, "BLQ", func() error { _, err := o.BLQ(ctx, req.ProductDir); return err }},
		{c.GPT2, "GPT2", func() error { _, err := o.GPT2(ctx, req.TropDir); return err }},
		{c.NAV, "NAV", func() error { _, err := o.Broadcast(ctx, req); return err }},
		{c.SNX, "SNX", func() error { _, err := o.SINEX(ctx, req); return err }},
		{c.SP3, "SP3", func() error { _, err := o.products(ctx, req, "SP3", req.Center); return err }},
		{c.ERP, "ERP", func() error { _, err := o.products(ctx, req, "ERP", req.Center); return err }},
		{c.CLK, "CLK", func() error { _, err := o.products(ctx, req, "CLK", req.Center); return err }},
		{c.BIA, "BIA", func() error { _, err := o.products(ctx, req, "BIA", req.BiasCenter); return err }},
		{len(req.Stations) > 0, "RINEX", func() error { _, err := o.Observations(ctx, req); return err }},
	}
	for _, step := range steps {
		if !step.enabled {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		o.logger().WithField("category", step.name).Info("Downloading")
		if err := step.run(); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}
	return nil
}

// products downloads orbits, clocks, ERPs or biases: the range of the request or, in most recent mode,
// the most recent file.
func (o *Orchestrator) products(ctx context.Context, req Request, format, center string) ([]string, error) {
	p := product.Product{Format: format, Center: center, SolutionType: req.SolutionType}
	if req.MostRecent {
		fp, err := o.MostRecentProduct(ctx, p, req.Pointer(), req.ProductDir)
		if err != nil {
			return nil, err
		}
		return []string{fp}, nil
	}
	return o.ProductSeries(ctx, Series{Product: p, Start: req.Start, End: req.End, Dir: req.ProductDir})
}
