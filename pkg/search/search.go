// Package search finds the most recent product published in a remote archive by stepping back week by week.
package search

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/de-bkg/gnssfetch/pkg/gnss"
	"github.com/de-bkg/gnssfetch/pkg/product"
	log "github.com/sirupsen/logrus"
)

// DefaultMaxWeeks is the number of weeks searched backwards if no limit is configured.
const DefaultMaxWeeks = 52

// ErrSearchExhausted is returned if no product was found within the configured number of weeks.
var ErrSearchExhausted = errors.New("search: no product found within look-back")

// Lister lists remote directories. transport.Session satisfies it.
type Lister interface {
	ChangeDir(ctx context.Context, dir string) error
	List(ctx context.Context) ([]string, error)
}

// Namer generates the filename of a product at an epoch. product.Product satisfies it.
type Namer interface {
	At(start gnss.Epoch) (product.FileName, error)
}

// Cursor is the pointer of a backward search.
type Cursor struct {
	epoch   gnss.Epoch
	listing []string
	steps   int
}

// NewCursor returns a cursor pointing at start.
func NewCursor(start gnss.Epoch) *Cursor {
	return &Cursor{epoch: start}
}

// Epoch returns the current pointer.
func (c *Cursor) Epoch() gnss.Epoch {
	return c.epoch
}

// Steps returns how often the cursor stepped back.
func (c *Cursor) Steps() int {
	return c.steps
}

// Listing returns the listing fetched for the current pointer, nil if not listed yet.
func (c *Cursor) Listing() []string {
	return c.listing
}

// Back moves the pointer to the start of the previous GPS week, i.e. 7 + day of week days back.
func (c *Cursor) Back() {
	c.epoch = c.epoch.StepBack(7 + c.epoch.DayOfWeek())
	c.listing = nil
	c.steps++
}

// CandidateIter lazily yields the candidate filenames of a backward search, see Candidates.
type CandidateIter struct {
	namer    Namer
	cursor   *Cursor
	maxSteps int
	started  bool
}

// Candidates returns an iterator over the (epoch, filename) pairs tried when searching backwards from start.
// At most maxWeeks steps back are made, the iterator yields maxWeeks+1 candidates.
func Candidates(namer Namer, start gnss.Epoch, maxWeeks int) *CandidateIter {
	if maxWeeks <= 0 {
		maxWeeks = DefaultMaxWeeks
	}
	return &CandidateIter{namer: namer, cursor: NewCursor(start), maxSteps: maxWeeks}
}

// Next advances to the next candidate and returns it. ok is false once the look-back is exhausted.
func (it *CandidateIter) Next() (fn product.FileName, ok bool, err error) {
	if it.started {
		if it.cursor.Steps() >= it.maxSteps {
			return product.FileName{}, false, nil
		}
		it.cursor.Back()
	}
	it.started = true

	fn, err = it.namer.At(it.cursor.Epoch())
	if err != nil {
		return product.FileName{}, false, err
	}
	return fn, true, nil
}

// Cursor returns the cursor of the iterator.
func (it *CandidateIter) Cursor() *Cursor {
	return it.cursor
}

// Result is a product found in the archive.
type Result struct {
	File  product.FileName
	Dir   string // remote directory
	Steps int    // number of weeks stepped back
}

// Searcher searches backwards for the most recent product in the directories given by Dir.
// The Session is used sequentially.
type Searcher struct {
	Session  Lister
	Dir      func(gnss.Epoch) string // defaults to product.WeekDir
	MaxWeeks int                     // defaults to DefaultMaxWeeks
	Log      log.FieldLogger
}

// MostRecent returns the most recent product at or before start.
// An ErrPathNotFound of the session, when a week directory does not exist, is returned as is.
func (s *Searcher) MostRecent(ctx context.Context, namer Namer, start gnss.Epoch) (Result, error) {
	dirFn := s.Dir
	if dirFn == nil {
		dirFn = product.WeekDir
	}
	logger := s.Log
	if logger == nil {
		logger = log.StandardLogger()
	}

	it := Candidates(namer, start, s.MaxWeeks)
	for {
		fn, ok, err := it.Next()
		if err != nil {
			return Result{}, err
		}
		cur := it.Cursor()
		if !ok {
			return Result{}, fmt.Errorf("%w: %d weeks before %s", ErrSearchExhausted, cur.Steps(), start)
		}
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		dir := dirFn(cur.Epoch())
		if err := s.Session.ChangeDir(ctx, dir); err != nil {
			return Result{}, err
		}
		listing, err := s.Session.List(ctx)
		if err != nil {
			return Result{}, err
		}
		cur.listing = listing

		logger.WithFields(log.Fields{"file": fn.Name, "dir": dir, "week": cur.Epoch().Week()}).Info("Searching for file")
		if slices.Contains(listing, fn.Name) {
			logger.WithFields(log.Fields{"file": fn.Name, "dir": dir}).Info("Found file")
			return Result{File: fn, Dir: dir, Steps: cur.Steps()}, nil
		}
		logger.WithField("week", cur.Epoch().Week()).Infof("No %s found in GPS week, moving to the previous week", fn.Fields.Format)
	}
}
