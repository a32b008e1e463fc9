package weather

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"vet-clinical-support/internal/platform/httpclient"
)

var (
	ErrNotConfigured = errors.New("weather client not configured")
	ErrUpstream      = errors.New("weather upstream error")
)

// Current son las condiciones actuales para el dashboard.
// Es decorativo: cualquier fallo se descarta aguas arriba.
type Current struct {
	TemperatureC float64
	Condition    string
	City         string
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	http *httpclient.Client
}

func NewClient(cfg Config) (*Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	hc, err := httpclient.NewWithBaseURL(strings.TrimSpace(cfg.BaseURL), timeout)
	if err != nil {
		return nil, err
	}
	return &Client{http: hc}, nil
}

func NewClientWithHTTP(hc *httpclient.Client) *Client {
	return &Client{http: hc}
}

func (c *Client) IsConfigured() bool {
	return c != nil && c.http != nil && strings.TrimSpace(c.http.BaseURL) != ""
}

func (c *Client) FetchCurrent(ctx context.Context, city string) (Current, error) {
	if !c.IsConfigured() {
		return Current{}, ErrNotConfigured
	}
	city = strings.TrimSpace(city)
	if city == "" {
		city = "Ciudad de México"
	}
	var w struct {
		TempC     float64 `json:"temp_c"`
		Condition string  `json:"condition"`
		City      string  `json:"city"`
	}
	path := "/v1/current?city=" + strings.ReplaceAll(city, " ", "%20")
	if err := c.http.DoJSON(ctx, http.MethodGet, path, nil, nil, &w); err != nil {
		return Current{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return Current{
		TemperatureC: w.TempC,
		Condition:    w.Condition,
		City:         w.City,
	}, nil
}
