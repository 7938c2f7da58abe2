// Package catalog implements the read-only station-catalog client
// described in spec.md §6: list stations matching a query, resolve a
// station reference to a streaming URL. Grounded on the teacher's
// internal/api.Client (retryablehttp + token-bucket rate limiting).
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/time/rate"
)

// StationRef identifies a station without its resolved streaming details,
// per spec.md §6's list() return type.
type StationRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Station is the resolved record spec.md §6's resolve() returns.
type Station struct {
	Name      string  `json:"name"`
	Country   string  `json:"country"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	StreamURL string  `json:"stream_url"`
}

// Query mirrors spec.md §6's list() filter set.
type Query struct {
	Text   string
	Region string
	Random bool
	Seed   string
}

// ClientConfig configures the catalog HTTP client.
type ClientConfig struct {
	BaseURL           string
	Timeout           time.Duration
	Retries           int
	RequestsPerSecond float64
	BurstSize         int
	UserAgent         string
	Debug             bool
}

// Client is the HTTP client for the catalog service. It never mutates
// catalog state: both operations spec.md §6 defines are reads.
type Client struct {
	baseURL    string
	httpClient *retryablehttp.Client
	limiter    *rate.Limiter
	userAgent  string
	debug      bool
}

// NewClient builds a catalog client from cfg.
func NewClient(cfg ClientConfig) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.Retries
	retryClient.HTTPClient.Timeout = cfg.Timeout
	retryClient.Logger = nil
	if cfg.Debug {
		retryClient.Logger = &debugLogger{}
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: retryClient,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
		userAgent:  cfg.UserAgent,
		debug:      cfg.Debug,
	}
}

type debugLogger struct{}

func (d *debugLogger) Printf(format string, args ...interface{}) {
	log.Printf("[CATALOG-HTTP] "+format, args...)
}

func (c *Client) debugLog(format string, args ...interface{}) {
	if !c.debug {
		return
	}
	log.Printf("[CATALOG] "+format, args...)
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("catalog rate limit wait: %w", err)
	}

	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	c.debugLog("GET %s", fullURL)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read catalog response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: %s", ErrCatalogStatus, strconv.Itoa(resp.StatusCode))
	}

	return body, nil
}

// List requests stations matching query, per spec.md §6's list() op. When
// query.Text is set, all returned entries are re-ranked client-side by
// fuzzy match against the station name; no entries are dropped.
func (c *Client) List(ctx context.Context, query Query) ([]StationRef, error) {
	params := url.Values{}
	if query.Text != "" {
		params.Set("q", query.Text)
	}
	if query.Region != "" {
		params.Set("region", query.Region)
	}
	if query.Random {
		params.Set("random", "true")
	}
	if query.Seed != "" {
		params.Set("seed", query.Seed)
	}

	body, err := c.get(ctx, "/stations", params)
	if err != nil {
		return nil, err
	}

	var refs []StationRef
	if err := json.Unmarshal(body, &refs); err != nil {
		return nil, fmt.Errorf("decode station list: %w", err)
	}

	c.debugLog("list returned %d stations", len(refs))

	if query.Text != "" {
		refs = rankByFuzzyMatch(refs, query.Text)
	}

	return refs, nil
}

// Resolve fetches the streaming details for a station reference, per
// spec.md §6's resolve() op.
func (c *Client) Resolve(ctx context.Context, ref StationRef) (*Station, error) {
	body, err := c.get(ctx, "/stations/"+url.PathEscape(ref.ID), nil)
	if err != nil {
		return nil, err
	}

	var station Station
	if err := json.Unmarshal(body, &station); err != nil {
		return nil, fmt.Errorf("decode station: %w", err)
	}

	c.debugLog("resolved %s -> %s", ref.ID, station.StreamURL)
	return &station, nil
}

// rankByFuzzyMatch reorders refs by Levenshtein distance of their Name
// against text, best match first, following the same fuzzy.LevenshteinDistance
// idiom the search engine uses for song/album/author ranking.
func rankByFuzzyMatch(refs []StationRef, text string) []StationRef {
	textLower := strings.ToLower(text)

	type scored struct {
		ref  StationRef
		dist int
	}
	entries := make([]scored, len(refs))
	for i, r := range refs {
		entries[i] = scored{ref: r, dist: fuzzy.LevenshteinDistance(textLower, strings.ToLower(r.Name))}
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].dist < entries[j].dist })

	ordered := make([]StationRef, len(entries))
	for i, e := range entries {
		ordered[i] = e.ref
	}
	return ordered
}
