// Command-line tool for downloading GNSS products, models and RINEX data from CDDIS, the GNSS data archive
// and the IGS web servers.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/de-bkg/gnssfetch/pkg/config"
	"github.com/de-bkg/gnssfetch/pkg/download"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

const version = "0.1.0"

func main() {
	app := &cli.App{
		Name:    "gnssfetch",
		Usage:   "download GNSS products, models and RINEX data",
		Version: version,
		Flags:   flags(),
		Action:  run,
		Description: `Examples:
    # Products for two days
    $ gnssfetch --target-dir=/data --start-datetime=2023-01-01_00:00:00 --end-datetime=2023-01-03_00:00:00 \
        --analysis-center=COD --solution-type=FIN --sp3 --erp --clk

    # Everything needed for a real-time run
    $ gnssfetch --target-dir=/data --preset=real-time`,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func flags() []cli.Flag {
	def := config.Default()
	return []cli.Flag{
		&cli.StringFlag{Name: "target-dir", Usage: "directory to place file downloads"},
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML `FILE` with settings, overridden by flags"},
		&cli.BoolFlag{Name: "print-config", Usage: "print the resulting settings as YAML and exit"},
		&cli.StringFlag{Name: "preset", Value: def.Preset, Usage: "choose from: manual, real-time, igs-station"},
		&cli.StringFlag{Name: "station-list", Usage: "comma-separated list of stations to download RINEX observations for"},
		&cli.StringFlag{Name: "start-datetime", Usage: "start of date-time period to download files for"},
		&cli.StringFlag{Name: "end-datetime", Usage: "end of date-time period to download files for"},
		&cli.StringFlag{Name: "datetime-format", Value: def.DatetimeFormat, Usage: "format of the date-times, Go layout or strftime"},
		&cli.BoolFlag{Name: "most-recent", Usage: "download the latest version of files"},
		&cli.StringFlag{Name: "analysis-center", Value: def.AnalysisCenter, Usage: "analysis center of products"},
		&cli.BoolFlag{Name: "atx", Usage: "download the ATX antenna model"},
		&cli.BoolFlag{Name: "blq", Usage: "download the BLQ ocean loading model"},
		&cli.BoolFlag{Name: "snx", Usage: "download the SNX station coordinates"},
		&cli.BoolFlag{Name: "nav", Usage: "download broadcast navigation files"},
		&cli.BoolFlag{Name: "sp3", Usage: "download SP3 orbits"},
		&cli.BoolFlag{Name: "erp", Usage: "download ERP files"},
		&cli.BoolFlag{Name: "clk", Usage: "download CLK clocks"},
		&cli.BoolFlag{Name: "bia", Usage: "download BIA biases"},
		&cli.BoolFlag{Name: "gpt2", Usage: "download the GPT 2.5 troposphere model"},
		&cli.StringFlag{Name: "product-dir", Usage: "directory for product files (default: target-dir)"},
		&cli.StringFlag{Name: "rinex-data-dir", Usage: "directory for RINEX data files (default: target-dir)"},
		&cli.StringFlag{Name: "trop-dir", Usage: "directory for troposphere model files (default: target-dir)"},
		&cli.StringFlag{Name: "solution-type", Value: def.SolutionType, Usage: "solution type of products: FIN, RAP or ULT"},
		&cli.StringFlag{Name: "rinex-file-period", Value: def.RinexFilePeriod, Usage: "file period of RINEX files, e.g. 01D, 01H, 15M"},
		&cli.IntFlag{Name: "rinex-version", Value: def.RinexVersion, Usage: "RINEX version of observation files from the GNSS data archive"},
		&cli.StringFlag{Name: "bia-ac", Value: def.BiaAC, Usage: "analysis center of BIA files"},
		&cli.StringFlag{Name: "data-source", Value: def.DataSource, Usage: "source of broadcast files: cddis or gnss-data"},
		&cli.StringFlag{Name: "obs-source", Value: def.ObsSource, Usage: "source of RINEX observations: cddis or gnss-data"},
		&cli.BoolFlag{Name: "crx2rnx", Usage: "convert Hatanaka compressed observations from CDDIS, requires CRX2RNX"},
		&cli.IntFlag{Name: "max-lookback-weeks", Value: def.MaxLookbackWeeks, Usage: "weeks to search back for the most recent files (default: 52)"},
		&cli.IntFlag{Name: "workers", Value: def.Workers, Usage: "concurrent transfers"},
		&cli.IntFlag{Name: "retries", Value: def.Retries, Usage: "retries of failed transfers"},
		&cli.BoolFlag{Name: "verbose", Usage: "debug logging"},
	}
}

func run(c *cli.Context) error {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if c.Bool("verbose") {
		log.SetLevel(log.DebugLevel)
	}

	conf, err := settings(c)
	if err != nil {
		return err
	}
	if c.Bool("print-config") {
		return conf.Encode(os.Stdout)
	}

	req, err := conf.Resolve()
	if err != nil {
		return cli.Exit(err, 2)
	}
	for _, dir := range conf.Dirs() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := log.StandardLogger()
	o := download.New(download.NewFetcher(conf.Retries, logger), logger)
	o.Workers = conf.Workers
	o.MaxWeeks = conf.MaxLookbackWeeks

	if err := o.Run(ctx, req); err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	log.Info("Download finished")
	return nil
}

// settings reads the config file if given and applies the flags set on the command line.
func settings(c *cli.Context) (config.Config, error) {
	conf := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		if conf, err = config.Load(path); err != nil {
			if errors.Is(err, config.ErrInvalidConfig) {
				return conf, cli.Exit(err, 2)
			}
			return conf, err
		}
	}

	str := func(name string, dst *string) {
		if c.IsSet(name) || *dst == "" {
			*dst = c.String(name)
		}
	}
	boolean := func(name string, dst *bool) {
		if c.IsSet(name) {
			*dst = c.Bool(name)
		}
	}
	integer := func(name string, dst *int) {
		if c.IsSet(name) {
			*dst = c.Int(name)
		}
	}

	str("target-dir", &conf.TargetDir)
	str("preset", &conf.Preset)
	str("start-datetime", &conf.StartDatetime)
	str("end-datetime", &conf.EndDatetime)
	str("datetime-format", &conf.DatetimeFormat)
	str("analysis-center", &conf.AnalysisCenter)
	str("product-dir", &conf.ProductDir)
	str("rinex-data-dir", &conf.RinexDir)
	str("trop-dir", &conf.TropDir)
	str("solution-type", &conf.SolutionType)
	str("rinex-file-period", &conf.RinexFilePeriod)
	str("bia-ac", &conf.BiaAC)
	str("data-source", &conf.DataSource)
	str("obs-source", &conf.ObsSource)

	if c.IsSet("station-list") {
		conf.Stations = strings.Split(c.String("station-list"), ",")
	}

	boolean("most-recent", &conf.MostRecent)
	boolean("crx2rnx", &conf.Crx2rnx)
	boolean("atx", &conf.Categories.ATX)
	boolean("blq", &conf.Categories.BLQ)
	boolean("snx", &conf.Categories.SNX)
	boolean("nav", &conf.Categories.NAV)
	boolean("sp3", &conf.Categories.SP3)
	boolean("erp", &conf.Categories.ERP)
	boolean("clk", &conf.Categories.CLK)
	boolean("bia", &conf.Categories.BIA)
	boolean("gpt2", &conf.Categories.GPT2)

	integer("rinex-version", &conf.RinexVersion)
	integer("max-lookback-weeks", &conf.MaxLookbackWeeks)
	integer("workers", &conf.Workers)
	integer("retries", &conf.Retries)
	return conf, nil
}
