package rinex

import (
	"fmt"
	"testing"
	"time"

	"github.com/de-bkg/gnssfetch/pkg/gnss"
	"github.com/stretchr/testify/assert"
)

func TestFileNamePattern(t *testing.T) {
	// Rnx2
	res := Rnx2FileNamePattern.FindStringSubmatch("adar335t.18d.Z") // obs hourly
	assert.Greater(t, len(res), 7)

	res = Rnx2FileNamePattern.FindStringSubmatch("bcln332d15.18o") // obs highrate
	assert.Greater(t, len(res), 7)

	// Rnx3
	res = Rnx3FileNamePattern.FindStringSubmatch("ALGO00CAN_R_20121601000_15M_01S_GO.rnx") // obs highrate
	assert.Greater(t, len(res), 7)

	res = Rnx3FileNamePattern.FindStringSubmatch("ALGO00CAN_R_20121600000_01D_MN.rnx.gz") // nav
	assert.Greater(t, len(res), 7)
}

func ExampleBroadcastFilename() {
	e := gnss.NewEpoch(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))
	name, _ := BroadcastFilename(e)
	fmt.Println(name)
	fmt.Println(BroadcastDir(e))
	// Output:
	// brdc0010.23n.gz
	// /gnss/data/daily/2023/brdc
}

func TestBroadcastFilename(t *testing.T) {
	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{name: "new year", t: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), want: "brdc0010.23n.gz"},
		{name: "end of leap year", t: time.Date(2020, 12, 31, 12, 0, 0, 0, time.UTC), want: "brdc3660.20n.gz"},
		{name: "previous day", t: time.Date(2022, 12, 31, 0, 0, 0, 0, time.UTC), want: "brdc3650.22n.gz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BroadcastFilename(gnss.NewEpoch(tt.t))
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDailyObsDir(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("/gnss/data/daily/2023/001/23d", DailyObsDir(gnss.NewEpoch(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))))
	assert.Equal("/gnss/data/daily/2022/331/22d", DailyObsDir(gnss.NewEpoch(time.Date(2022, 11, 27, 23, 0, 0, 0, time.UTC))))
}

func TestStationID(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		want    string
		wantErr bool
	}{
		{name: "rnx3 crx", file: "ALIC00AUS_R_20230010000_01D_30S_MO.crx.gz", want: "ALIC"},
		{name: "rnx3 with path", file: "/gnss/data/daily/2023/001/23d/ALGO00CAN_R_20230010000_01D_30S_MO.crx.gz", want: "ALGO"},
		{name: "rnx2 hatanaka", file: "brst1550.20d.Z", want: "BRST"},
		{name: "rnx2 obs", file: "adar335t.18o", want: "ADAR"},
		{name: "garbage", file: "README", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := StationID(tt.file)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoStationID)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsHatanakaObs(t *testing.T) {
	assert := assert.New(t)
	assert.True(IsHatanakaObs("ALIC00AUS_R_20230010000_01D_30S_MO.crx.gz"))
	assert.False(IsHatanakaObs("alic0010.23d.gz"))
	assert.False(IsHatanakaObs("ALIC00AUS_R_20230010000_01D_30S_MO.rnx.gz"))
	assert.False(IsHatanakaObs("brdc0010.23n.gz"))
	assert.False(IsHatanakaObs("SHA256SUMS"))
}
