// Package config holds the settings of a download run, read from a YAML file and command line flags,
// and resolves them into a download.Request.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/de-bkg/gnssfetch/pkg/download"
	"github.com/de-bkg/gnssfetch/pkg/gnss"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned if the settings are incomplete or inconsistent.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// DefaultDatetimeFormat is the layout of start and end date-times.
const DefaultDatetimeFormat = gnss.DefaultDateTimeLayout

// Presets
const (
	PresetManual     = "manual"
	PresetRealTime   = "real-time"
	PresetIGSStation = "igs-station"
)

// Categories selects the files to download.
type Categories struct {
	ATX  bool `yaml:"atx"`
	BLQ  bool `yaml:"blq"`
	SNX  bool `yaml:"snx"`
	NAV  bool `yaml:"nav"`
	SP3  bool `yaml:"sp3"`
	ERP  bool `yaml:"erp"`
	CLK  bool `yaml:"clk"`
	BIA  bool `yaml:"bia"`
	GPT2 bool `yaml:"gpt2"`
}

// Config holds the settings of a download run.
type Config struct {
	TargetDir string   `yaml:"target-dir" validate:"required"`
	Preset    string   `yaml:"preset" validate:"omitempty,oneof=manual real-time igs-station"`
	Stations  []string `yaml:"stations,omitempty" validate:"dive,min=4,max=9,alphanum"`

	StartDatetime  string `yaml:"start-datetime"`
	EndDatetime    string `yaml:"end-datetime"`
	DatetimeFormat string `yaml:"datetime-format" validate:"required"`
	MostRecent     bool   `yaml:"most-recent"`

	Categories Categories `yaml:"download"`

	AnalysisCenter string `yaml:"analysis-center" validate:"len=3,alphanum"`
	SolutionType   string `yaml:"solution-type" validate:"oneof=FIN RAP ULT"`
	BiaAC          string `yaml:"bia-ac" validate:"len=3,alphanum"`

	ProductDir string `yaml:"product-dir"`
	RinexDir   string `yaml:"rinex-data-dir"`
	TropDir    string `yaml:"trop-dir"`

	RinexFilePeriod string `yaml:"rinex-file-period" validate:"len=3"`
	RinexVersion    int    `yaml:"rinex-version" validate:"oneof=2 3 4"`
	DataSource      string `yaml:"data-source" validate:"oneof=cddis gnss-data"`
	ObsSource       string `yaml:"obs-source" validate:"oneof=cddis gnss-data"`
	Crx2rnx         bool   `yaml:"crx2rnx"`

	MaxLookbackWeeks int `yaml:"max-lookback-weeks" validate:"gte=0"`
	Workers          int `yaml:"workers" validate:"gte=0"`
	Retries          int `yaml:"retries" validate:"gte=0"`
}

// Default returns the default settings.
func Default() Config {
	return Config{
		Preset:          PresetManual,
		DatetimeFormat:  DefaultDatetimeFormat,
		AnalysisCenter:  "IGS",
		SolutionType:    "RAP",
		BiaAC:           "COD",
		RinexFilePeriod: "01D",
		RinexVersion:    3,
		DataSource:      string(download.SourceGNSSData),
		ObsSource:       string(download.SourceGNSSData),
		Workers:         download.DefaultWorkers,
		Retries:         download.DefaultMaxRetries,
	}
}

// Load reads the YAML file at path over the default settings.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads YAML settings from r over the default settings. Unknown keys are an error.
func Decode(r io.Reader) (Config, error) {
	conf := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&conf); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return conf, nil
}

// Encode writes the settings as YAML.
func (c Config) Encode(w io.Writer) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// use a single instance of Validate, it caches struct info
var validate = validator.New()

// Validate checks the settings.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// normalize brings codes into the case used by the archives.
func (c *Config) normalize() {
	c.Preset = strings.ToLower(strings.TrimSpace(c.Preset))
	c.AnalysisCenter = strings.ToUpper(strings.TrimSpace(c.AnalysisCenter))
	c.SolutionType = strings.ToUpper(strings.TrimSpace(c.SolutionType))
	c.BiaAC = strings.ToUpper(strings.TrimSpace(c.BiaAC))
	c.RinexFilePeriod = strings.ToUpper(strings.TrimSpace(c.RinexFilePeriod))
	c.DataSource = strings.ToLower(strings.TrimSpace(c.DataSource))
	c.ObsSource = strings.ToLower(strings.TrimSpace(c.ObsSource))

	var stations []string
	for _, s := range c.Stations {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			stations = append(stations, s)
		}
	}
	c.Stations = stations
}

// applyPreset switches on the categories of the preset.
func (c *Config) applyPreset() {
	switch c.Preset {
	case PresetRealTime:
		c.MostRecent = true
		c.Categories.ATX = true
		c.Categories.BLQ = true
		c.Categories.GPT2 = true
		c.Categories.SNX = true
	case PresetIGSStation:
		c.Categories.ATX = true
		c.Categories.BLQ = true
		c.Categories.GPT2 = true
		c.Categories.SNX = true
		c.Categories.NAV = true
		c.Categories.SP3 = true
		c.Categories.ERP = true
		if c.SolutionType == "RAP" {
			c.Categories.CLK = true
			c.Categories.BIA = true
		}
	}
}

// Resolve applies the preset and defaults and returns the request of the run.
// Start and end are required unless the most recent files are requested. The time-ranged downloads
// of broadcast and observation files always need them.
func (c Config) Resolve() (download.Request, error) {
	c.normalize()
	if err := c.Validate(); err != nil {
		return download.Request{}, err
	}
	c.applyPreset()

	layout := Layout(c.DatetimeFormat)
	var start, end gnss.Epoch
	var err error
	if c.StartDatetime != "" {
		if start, err = gnss.ParseEpoch(layout, c.StartDatetime); err != nil {
			return download.Request{}, fmt.Errorf("%w: start-datetime: %w", ErrInvalidConfig, err)
		}
	}
	if c.EndDatetime != "" {
		if end, err = gnss.ParseEpoch(layout, c.EndDatetime); err != nil {
			return download.Request{}, fmt.Errorf("%w: end-datetime: %w", ErrInvalidConfig, err)
		}
	}

	ranged := !c.MostRecent || c.Categories.NAV || len(c.Stations) > 0
	if ranged && (start.IsZero() || end.IsZero()) {
		return download.Request{}, fmt.Errorf("%w: start-datetime and end-datetime are required", ErrInvalidConfig)
	}
	if !start.IsZero() && !end.IsZero() && !start.Before(end) {
		return download.Request{}, fmt.Errorf("%w: start %s is not before end %s", ErrInvalidConfig, start, end)
	}

	req := download.Request{
		Start:      start,
		End:        end,
		MostRecent: c.MostRecent,
		Categories: download.Categories{
			ATX:  c.Categories.ATX,
			BLQ:  c.Categories.BLQ,
			GPT2: c.Categories.GPT2,
			NAV:  c.Categories.NAV,
			SNX:  c.Categories.SNX,
			SP3:  c.Categories.SP3,
			ERP:  c.Categories.ERP,
			CLK:  c.Categories.CLK,
			BIA:  c.Categories.BIA,
		},
		Center:          c.AnalysisCenter,
		SolutionType:    c.SolutionType,
		BiasCenter:      c.BiaAC,
		Stations:        c.Stations,
		RinexFilePeriod: c.RinexFilePeriod,
		RinexVersion:    c.RinexVersion,
		NavSource:       download.Source(c.DataSource),
		ObsSource:       download.Source(c.ObsSource),
		Crx2rnx:         c.Crx2rnx,
		ProductDir:      orDefault(c.ProductDir, c.TargetDir),
		RinexDir:        orDefault(c.RinexDir, c.TargetDir),
		TropDir:         orDefault(c.TropDir, c.TargetDir),
	}
	return req, nil
}

// Dirs returns the distinct local directories of the run.
func (c Config) Dirs() []string {
	var dirs []string
	for _, d := range []string{c.TargetDir, orDefault(c.ProductDir, c.TargetDir), orDefault(c.RinexDir, c.TargetDir), orDefault(c.TropDir, c.TargetDir)} {
		if d != "" && !slices.Contains(dirs, d) {
			dirs = append(dirs, d)
		}
	}
	return dirs
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

var strftime = strings.NewReplacer(
	"%Y", "2006",
	"%y", "06",
	"%m", "01",
	"%d", "02",
	"%j", "002",
	"%H", "15",
	"%M", "04",
	"%S", "05",
	"%%", "%",
)

// Layout returns the Go time layout of a date-time format. Formats with strftime directives,
// e.g. "%Y-%m-%d_%H:%M:%S", are translated, others are returned unchanged.
func Layout(format string) string {
	if !strings.Contains(format, "%") {
		return format
	}
	return strftime.Replace(format)
}
