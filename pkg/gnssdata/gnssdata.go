// Package gnssdata queries RINEX files from the Geoscience Australia GNSS data archive API.
// See https://data.gnss.ga.gov.au/docs/.
package gnssdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/de-bkg/gnssfetch/pkg/transport"
	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
)

// DefaultAPIURL is the base URL of the GNSS data API.
const DefaultAPIURL = "https://data.gnss.ga.gov.au/api"

// queryTimeFormat is the time format for start and end dates in queries.
const queryTimeFormat = "2006-01-02T15:04:05Z"

// errors
var (
	// ErrUnknownFileType is returned for entries that are neither observation nor navigation files.
	ErrUnknownFileType = errors.New("gnssdata: unknown file type")
)

// Query holds the parameters of a rinexFiles request.
type Query struct {
	Stations     []string  `validate:"required,min=1,dive,required"`
	FileType     string    `validate:"required,oneof=obs nav"`
	RinexVersion int       `validate:"oneof=2 3 4"`
	FilePeriod   string    `validate:"required,len=3"` // e.g. 01D, 01H, 15M
	Decompress   bool
	Start        time.Time `validate:"required"`
	End          time.Time `validate:"required,gtfield=Start"`
}

// use a single instance of Validate, it caches struct info
var validate = validator.New()

// Validate checks the query parameters.
func (q Query) Validate() error {
	return validate.Struct(q)
}

// Values returns the URL query parameters.
func (q Query) Values() url.Values {
	v := url.Values{}
	v.Set("metadataStatus", "valid")
	v.Set("stationId", strings.Join(q.Stations, ","))
	v.Set("fileType", q.FileType)
	v.Set("rinexVersion", strconv.Itoa(q.RinexVersion))
	v.Set("filePeriod", q.FilePeriod)
	v.Set("decompress", strconv.FormatBool(q.Decompress))
	v.Set("startDate", q.Start.UTC().Format(queryTimeFormat))
	v.Set("endDate", q.End.UTC().Format(queryTimeFormat))
	v.Set("tenantId", "default")
	return v
}

// Entry is one file returned by a rinexFiles query.
type Entry struct {
	FileLocation string `json:"fileLocation"`
	FileType     string `json:"fileType"`
	StationID    string `json:"stationId"`
}

// LocalName returns the filename under which the entry is stored locally.
// Observation files are named {name}.rnx, navigation files keep the first two parts of their name.
func (e Entry) LocalName() (string, error) {
	u, err := url.Parse(e.FileLocation)
	if err != nil {
		return "", err
	}
	base := path.Base(u.Path)
	parts := strings.Split(base, ".")

	switch e.FileType {
	case "obs":
		return parts[0] + ".rnx", nil
	case "nav":
		if len(parts) < 2 {
			return base, nil
		}
		return strings.Join(parts[:2], "."), nil
	default:
		return "", fmt.Errorf("%w: %q: %s", ErrUnknownFileType, e.FileType, e.FileLocation)
	}
}

// Client is a client for the GNSS data API.
type Client struct {
	// BaseURL defaults to DefaultAPIURL.
	BaseURL string

	// HTTP defaults to transport.NewHTTPClient(false).
	HTTP *http.Client

	// UserAgent defaults to transport.DefaultUserAgent.
	UserAgent string

	Log log.FieldLogger
}

// RinexFiles returns the files matching the query.
func (c *Client) RinexFiles(ctx context.Context, q Query) ([]Entry, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}

	base := c.BaseURL
	if base == "" {
		base = DefaultAPIURL
	}
	u, err := url.Parse(strings.TrimSuffix(base, "/") + "/rinexFiles")
	if err != nil {
		return nil, err
	}
	u.RawQuery = q.Values().Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, err
	}
	ua := c.UserAgent
	if ua == "" {
		ua = transport.DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "application/json")

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = transport.NewHTTPClient(false)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", u.Redacted(), resp.Status)
	}

	var entries []Entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode rinexFiles response: %w", err)
	}

	logger := c.Log
	if logger == nil {
		logger = log.StandardLogger()
	}
	logger.WithFields(log.Fields{"stations": len(q.Stations), "files": len(entries), "type": q.FileType}).Info("Queried GNSS data archive")
	return entries, nil
}

// MissingStations returns the requested stations for which no file was downloaded, sorted.
// Stations are identified by the first four characters of the filenames.
func MissingStations(requested []string, filenames []string) []string {
	got := make(map[string]bool, len(filenames))
	for _, fn := range filenames {
		if len(fn) >= 4 {
			got[strings.ToUpper(fn[:4])] = true
		}
	}

	var missing []string
	for _, sta := range requested {
		if !got[strings.ToUpper(sta)] {
			missing = append(missing, sta)
		}
	}
	slices.Sort(missing)
	return slices.Compact(missing)
}
