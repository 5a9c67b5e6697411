package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/valyala/fasthttp"

	"github.com/samirrijal/wavemap/internal/core/domain"
)

// Manifest lists the event areas the feed maintains.
type Manifest struct {
	Source string      `json:"source"`
	Areas  []AreaEntry `json:"areas"`
}

// AreaEntry is an event area plus the URL its wave frames are polled from.
type AreaEntry struct {
	domain.EventArea
	WavesURL string `json:"waves_url,omitempty"`
}

func loadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	for i := range m.Areas {
		if err := m.Areas[i].Validate(); err != nil {
			return nil, fmt.Errorf("area %d (%s): %w", i, m.Areas[i].ID, err)
		}
	}
	return &m, nil
}

// frameFetcher downloads GeoJSON wave frames and remembers the last body per URL
// so unchanged frames are not republished.
type frameFetcher struct {
	client  *fasthttp.Client
	timeout time.Duration
	last    map[string][]byte
}

func newFrameFetcher(timeout time.Duration) *frameFetcher {
	return &frameFetcher{
		client: &fasthttp.Client{
			Name:                "wavemap-wavefeed",
			ReadTimeout:         timeout,
			MaxIdleConnDuration: time.Minute,
		},
		timeout: timeout,
		last:    make(map[string][]byte),
	}
}

// fetch returns the frame at url, or nil when it is identical to the previous one.
// Not safe for concurrent use with the same url.
func (f *frameFetcher) fetch(url string) (*geojson.FeatureCollection, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/geo+json, application/json")

	if err := f.client.DoTimeout(req, resp, f.timeout); err != nil {
		return nil, fmt.Errorf("fetch frame: %w", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode(), url)
	}

	return f.decode(url, resp.Body())
}

func (f *frameFetcher) decode(url string, body []byte) (*geojson.FeatureCollection, error) {
	if prev, ok := f.last[url]; ok && bytes.Equal(prev, body) {
		return nil, nil
	}
	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, fmt.Errorf("parse frame: %w", err)
	}
	f.last[url] = append([]byte(nil), body...)
	return fc, nil
}
