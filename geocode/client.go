// Package geocode resolves free-text addresses to coordinates through a
// Nominatim-compatible search endpoint.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"melhor-casa/models"
	"melhor-casa/services"
	"melhor-casa/utils"
)

const (
	DefaultBaseURL   = "https://nominatim.openstreetmap.org"
	DefaultUserAgent = "melhor-casa/1.0"
	countrySuffix    = ", Brazil"
)

// ErrNoResult is returned when the service knows no place for the address.
var ErrNoResult = errors.New("geocode: no result")

// Result is one resolved place.
type Result struct {
	Latitude    float64
	Longitude   float64
	DisplayName string
}

// Options configures a Client. Zero values fall back to the public
// Nominatim instance at one request per second.
type Options struct {
	BaseURL    string
	UserAgent  string
	RatePerSec float64
	HTTPClient *http.Client
}

// Client looks up addresses one request at a time; the limiter is shared by
// every caller, including LocateAll workers.
type Client struct {
	baseURL   string
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
	logger    *utils.Logger
}

// NewClient returns a Client. Zero Options fields take their defaults.
func NewClient(opts Options, logger *utils.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 1
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		userAgent: opts.UserAgent,
		client:    opts.HTTPClient,
		limiter:   rate.NewLimiter(rate.Limit(opts.RatePerSec), 1),
		logger:    logger,
	}
}

type place struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Locate resolves address, which is searched within Brazil. It makes a
// single attempt.
func (c *Client) Locate(ctx context.Context, address string) (Result, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return Result{}, fmt.Errorf("geocode: empty address: %w", ErrNoResult)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return Result{}, fmt.Errorf("geocode: %w", err)
	}

	q := url.Values{}
	q.Set("format", "json")
	q.Set("q", address+countrySuffix)
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return Result{}, fmt.Errorf("geocode: build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("geocode: %q: %w", address, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("geocode: %q: unexpected status %d", address, resp.StatusCode)
	}

	var places []place
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return Result{}, fmt.Errorf("geocode: %q: decode: %w", address, err)
	}
	if len(places) == 0 {
		return Result{}, fmt.Errorf("geocode: %q: %w", address, ErrNoResult)
	}

	lat, errLat := strconv.ParseFloat(places[0].Lat, 64)
	lon, errLon := strconv.ParseFloat(places[0].Lon, 64)
	if errLat != nil || errLon != nil {
		return Result{}, fmt.Errorf("geocode: %q: bad coordinates %q,%q", address, places[0].Lat, places[0].Lon)
	}

	c.logger.Debug("[geocode] %q → %.5f, %.5f", address, lat, lon)
	return Result{Latitude: lat, Longitude: lon, DisplayName: places[0].DisplayName}, nil
}

// LocateUser resolves address into a UserLocation.
func (c *Client) LocateUser(ctx context.Context, address string) (*models.UserLocation, error) {
	r, err := c.Locate(ctx, address)
	if err != nil {
		return nil, err
	}
	return &models.UserLocation{Address: address, Latitude: r.Latitude, Longitude: r.Longitude}, nil
}

// LocateAll fills in coordinates for records that have an address but none
// yet. It returns the updated copy and the number of records located.
// Failures are logged and leave the record unchanged.
func (c *Client) LocateAll(ctx context.Context, props []models.Property, pool *utils.WorkerPool) ([]models.Property, int) {
	out := make([]models.Property, len(props))
	for i := range props {
		out[i] = props[i].Clone()
	}

	var mu sync.Mutex
	located := 0
	for i := range out {
		if out[i].HasCoordinates() {
			continue
		}
		address := addressOf(&out[i])
		if address == "" {
			continue
		}

		pool.Submit(ctx, func(ctx context.Context) {
			r, err := c.Locate(ctx, address)
			if err != nil {
				c.logger.Warn("[geocode] %s: %v", out[i].Link, err)
				return
			}
			lat, lon := r.Latitude, r.Longitude
			mu.Lock()
			out[i].Latitude, out[i].Longitude = &lat, &lon
			located++
			mu.Unlock()
		})
	}
	pool.Wait()

	c.logger.Info("[geocode] Located %d of %d properties", located, len(props))
	return out, located
}

func addressOf(p *models.Property) string {
	if loc := strings.TrimSpace(p.Location); loc != "" && loc != services.DefaultLocation {
		return loc
	}
	return strings.TrimSpace(p.Street + " " + p.Neighborhood)
}
