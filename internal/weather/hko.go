package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/BTreeMap/CareWatch/internal/models"
)

// DefaultBaseURL is the Hong Kong Observatory open-data endpoint.
const DefaultBaseURL = "https://data.weather.gov.hk/weatherAPI/opendata/weather.php"

// DefaultTimeout bounds each open-data request.
const DefaultTimeout = 5 * time.Second

// preferredStation is the reading used when present; otherwise the first
// reported station wins.
const preferredStation = "Hong Kong Observatory"

// Opts holds configuration options for the weather client.
type Opts struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Option defines a configuration option for the weather client.
type Option func(*Opts)

// WithBaseURL overrides the open-data endpoint (used by tests).
func WithBaseURL(u string) Option {
	return func(o *Opts) { o.BaseURL = u }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// WithHTTPClient supplies a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// Client pulls current conditions and active warning codes from the HKO
// open-data API. It is a data source with a pull contract: partial outages
// yield nil readings, not errors.
type Client struct {
	http    *http.Client
	baseURL string
}

// NewClient creates a weather client.
func NewClient(opts ...Option) *Client {
	cfg := Opts{BaseURL: DefaultBaseURL, Timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{http: httpClient, baseURL: cfg.BaseURL}
}

// rhrread mirrors the fields of the HKO current-weather report we consume.
type rhrread struct {
	Temperature struct {
		Data []struct {
			Place string  `json:"place"`
			Value float64 `json:"value"`
		} `json:"data"`
	} `json:"temperature"`
	Humidity struct {
		Data []struct {
			Value int `json:"value"`
		} `json:"data"`
	} `json:"humidity"`
}

// warnsum is a map of warning statements keyed by category.
type warnsum map[string]struct {
	Code string `json:"code"`
}

// Current returns the latest temperature, humidity, and active warning codes.
// Each sub-request degrades independently: a failed fetch leaves its readings
// unset. An error is returned only when no data could be obtained at all.
func (c *Client) Current(ctx context.Context) (models.Weather, error) {
	var report models.Weather
	report.Warnings = []string{}

	weatherOK := true
	var current rhrread
	if err := c.fetch(ctx, url.Values{"dataType": {"rhrread"}, "lang": {"en"}}, &current); err != nil {
		slog.Error("Weather.Current: current-weather fetch failed", "error", err)
		weatherOK = false
	} else {
		if temps := current.Temperature.Data; len(temps) > 0 {
			value := temps[0].Value
			for _, t := range temps {
				if t.Place == preferredStation {
					value = t.Value
					break
				}
			}
			report.Temperature = &value
		}
		if hums := current.Humidity.Data; len(hums) > 0 {
			value := hums[0].Value
			report.Humidity = &value
		}
	}

	warningsOK := true
	var warnings warnsum
	if err := c.fetch(ctx, url.Values{"dataType": {"warnsum"}}, &warnings); err != nil {
		slog.Error("Weather.Current: warning fetch failed", "error", err)
		warningsOK = false
	} else {
		for _, info := range warnings {
			if info.Code != "" {
				report.Warnings = append(report.Warnings, info.Code)
			}
		}
		if len(report.Warnings) > 0 {
			slog.Info("Weather.Current: active warnings", "codes", report.Warnings)
		}
	}

	if !weatherOK && !warningsOK {
		return report, fmt.Errorf("weather source unavailable")
	}
	return report, nil
}

func (c *Client) fetch(ctx context.Context, params url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build weather request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("weather request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("weather request returned HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode weather response: %w", err)
	}
	return nil
}
