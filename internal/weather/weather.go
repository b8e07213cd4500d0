// Package weather supplies outdoor temperatures to the simulation, either from
// real OpenWeatherMap readings or from a seeded noise model.
package weather

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// Source supplies the outdoor temperature in °C for a tick.
type Source interface {
	OutdoorTemp(tick uint64) float64
}

// Describer is implemented by sources that can summarise current conditions.
type Describer interface {
	Description(tick uint64) string
}

const (
	defaultEndpoint = "https://api.openweathermap.org/data/2.5/weather"
	defaultLocation = "Reykjavik,IS"

	readingTTL   = 5 * time.Minute
	firstBackoff = time.Minute
	maxBackoff   = 10 * time.Minute
)

// Reading is one observed outdoor temperature.
type Reading struct {
	TempC   float64
	Summary string
	At      time.Time
}

// Client reads the current temperature for one location from OpenWeatherMap.
// A reading is reused for five minutes; failed calls back off from one minute,
// doubling up to ten.
type Client struct {
	apiKey   string
	location string
	endpoint string
	http     *http.Client
	now      func() time.Time

	mu      sync.Mutex
	last    *Reading
	backoff time.Duration
	retryAt time.Time
}

// NewClient returns nil when apiKey is empty.
func NewClient(apiKey, location string) *Client {
	if apiKey == "" {
		return nil
	}
	if location == "" {
		location = defaultLocation
	}
	return &Client{
		apiKey:   apiKey,
		location: location,
		endpoint: defaultEndpoint,
		http:     &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
	}
}

// Current returns the latest reading. While the API is failing, the last good
// reading is returned if there is one.
func (c *Client) Current() (*Reading, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.last != nil && now.Sub(c.last.At) < readingTTL {
		return c.last, nil
	}
	if now.Before(c.retryAt) {
		return c.stale(fmt.Errorf("weather API backing off until %s", c.retryAt.Format(time.TimeOnly)))
	}

	r, err := c.request()
	if err != nil {
		c.backoff = min(max(2*c.backoff, firstBackoff), maxBackoff)
		c.retryAt = now.Add(c.backoff)
		return c.stale(err)
	}
	r.At = now
	c.last = r
	c.backoff = 0
	c.retryAt = time.Time{}
	return r, nil
}

func (c *Client) stale(err error) (*Reading, error) {
	if c.last != nil {
		return c.last, nil
	}
	return nil, err
}

func (c *Client) request() (*Reading, error) {
	q := url.Values{}
	q.Set("q", c.location)
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")

	resp, err := c.http.Get(c.endpoint + "?" + q.Encode())
	if err != nil {
		return nil, fmt.Errorf("weather API call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read weather response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather API error %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		Main struct {
			Temp *float64 `json:"temp"`
		} `json:"main"`
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse weather: %w", err)
	}
	if payload.Main.Temp == nil {
		return nil, fmt.Errorf("weather response for %s has no temperature", c.location)
	}

	r := &Reading{TempC: *payload.Main.Temp}
	if len(payload.Weather) > 0 {
		r.Summary = payload.Weather[0].Description
	}
	slog.Debug("outdoor reading", "location", c.location, "temp", r.TempC, "summary", r.Summary)
	return r, nil
}

// Live reports real readings while the API answers and the fallback model
// otherwise. A nil client always uses the fallback.
type Live struct {
	client   *Client
	fallback Source
}

// NewLive wraps client with a fallback source.
func NewLive(client *Client, fallback Source) *Live {
	return &Live{client: client, fallback: fallback}
}

// OutdoorTemp implements Source.
func (l *Live) OutdoorTemp(tick uint64) float64 {
	if r := l.reading(); r != nil {
		return r.TempC
	}
	return l.fallback.OutdoorTemp(tick)
}

// Description implements Describer.
func (l *Live) Description(tick uint64) string {
	if r := l.reading(); r != nil && r.Summary != "" {
		return r.Summary
	}
	if d, ok := l.fallback.(Describer); ok {
		return d.Description(tick)
	}
	return ""
}

func (l *Live) reading() *Reading {
	if l.client == nil {
		return nil
	}
	r, err := l.client.Current()
	if err != nil {
		slog.Debug("outdoor reading unavailable, using model", "error", err)
		return nil
	}
	return r
}
