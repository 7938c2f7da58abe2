package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(ClientConfig{
		BaseURL:           srv.URL,
		Timeout:           2 * time.Second,
		Retries:           0,
		RequestsPerSecond: 1000,
		BurstSize:         10,
		UserAgent:         "loopstation-test",
	})
	return c, srv
}

func TestClientListDecodesStations(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stations", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]StationRef{
			{ID: "1", Name: "Radio Alpha"},
			{ID: "2", Name: "Radio Beta"},
		})
	})

	refs, err := c.List(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "Radio Alpha", refs[0].Name)
}

func TestClientListRanksByFuzzyMatch(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]StationRef{
			{ID: "1", Name: "Jazz FM"},
			{ID: "2", Name: "Dubstep Radio"},
			{ID: "3", Name: "Dub Reggae"},
		})
	})

	refs, err := c.List(context.Background(), Query{Text: "dub reggae"})
	require.NoError(t, err)
	require.Len(t, refs, 3)
	assert.Equal(t, "Dub Reggae", refs[0].Name)
}

func TestClientResolveDecodesStation(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stations/abc", r.URL.Path)
		_ = json.NewEncoder(w).Encode(Station{
			Name:      "Radio Alpha",
			Country:   "DE",
			StreamURL: "https://example.com/stream.mp3",
		})
	})

	station, err := c.Resolve(context.Background(), StationRef{ID: "abc"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/stream.mp3", station.StreamURL)
}

func TestClientListSurfacesHTTPStatus(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.List(context.Background(), Query{})
	require.Error(t, err)
}

func TestCacheRoundTrip(t *testing.T) {
	cache := NewCache()
	ref := StationRef{ID: "1", Name: "Radio Alpha"}

	_, ok := cache.Get(ref)
	assert.False(t, ok)

	station := &Station{Name: "Radio Alpha"}
	cache.Put(ref, station)

	got, ok := cache.Get(ref)
	require.True(t, ok)
	assert.Same(t, station, got)
	assert.Equal(t, 1, cache.Len())
}
