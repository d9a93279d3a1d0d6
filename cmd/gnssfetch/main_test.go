package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/de-bkg/gnssfetch/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func parse(t *testing.T, args ...string) config.Config {
	t.Helper()
	var conf config.Config
	app := &cli.App{
		Flags: flags(),
		Action: func(c *cli.Context) error {
			var err error
			conf, err = settings(c)
			return err
		},
	}
	require.NoError(t, app.Run(append([]string{"gnssfetch"}, args...)))
	return conf
}

func TestSettings_Defaults(t *testing.T) {
	conf := parse(t, "--target-dir", "/data")
	want := config.Default()
	want.TargetDir = "/data"
	assert.Equal(t, want, conf)
}

func TestSettings_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gnssfetch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("target-dir: /from/file\nanalysis-center: ESA\nworkers: 2\ndownload:\n  sp3: true\n"), 0o644))

	conf := parse(t, "--config", path, "--analysis-center", "COD", "--clk", "--station-list", "ALIC,DARW", "--retries", "0")

	assert.Equal(t, "/from/file", conf.TargetDir)
	assert.Equal(t, "COD", conf.AnalysisCenter)
	assert.Equal(t, 2, conf.Workers)
	assert.Equal(t, 0, conf.Retries)
	assert.True(t, conf.Categories.SP3)
	assert.True(t, conf.Categories.CLK)
	assert.Equal(t, []string{"ALIC", "DARW"}, conf.Stations)
	assert.Equal(t, "RAP", conf.SolutionType)
}

func TestSettings_InvalidConfigExitCode(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantCode int
	}{
		{name: "unknown key", content: "target-dir: /data\nanalysis-centre: COD\n", wantCode: 2},
		{name: "bad yaml", content: "target-dir: [/data\n", wantCode: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "gnssfetch.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			var errSettings error
			app := &cli.App{
				Flags:          flags(),
				ExitErrHandler: func(*cli.Context, error) {},
				Action: func(c *cli.Context) error {
					_, errSettings = settings(c)
					return errSettings
				},
			}
			require.Error(t, app.Run([]string{"gnssfetch", "--config", path}))

			var ec cli.ExitCoder
			require.True(t, errors.As(errSettings, &ec))
			assert.Equal(t, tt.wantCode, ec.ExitCode())
			assert.Contains(t, errSettings.Error(), "invalid configuration")
		})
	}
}

func TestSettings_MissingConfigFile(t *testing.T) {
	var errSettings error
	app := &cli.App{
		Flags:          flags(),
		ExitErrHandler: func(*cli.Context, error) {},
		Action: func(c *cli.Context) error {
			_, errSettings = settings(c)
			return errSettings
		},
	}
	require.Error(t, app.Run([]string{"gnssfetch", "--config", filepath.Join(t.TempDir(), "missing.yaml")}))
	assert.ErrorIs(t, errSettings, os.ErrNotExist)
}
