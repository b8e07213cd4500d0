// Package entropy picks seeds for a fresh simulation, from random.org when
// an API key is configured and from crypto/rand otherwise.
package entropy

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultEndpoint = "https://api.random.org/json-rpc/4/invoke"
	maxInt          = 1_000_000_000 // random.org's upper bound for integers
)

// Client draws seeds from random.org.
type Client struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// NewClient creates a random.org client. Returns nil if apiKey is empty.
func NewClient(apiKey string) *Client {
	if apiKey == "" {
		return nil
	}
	return &Client{
		apiKey:   apiKey,
		endpoint: defaultEndpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// Seed returns a non-negative seed. Falls back to crypto/rand when c is nil or
// the API call fails.
func Seed(c *Client) int64 {
	if c != nil {
		s, err := c.fetch()
		if err == nil {
			return s
		}
		slog.Warn("random.org seed failed, using crypto/rand", "error", err)
	}
	return cryptoSeed()
}

// fetch combines two random.org integers into one seed.
func (c *Client) fetch() (int64, error) {
	req := map[string]any{
		"jsonrpc": "2.0",
		"method":  "generateIntegers",
		"params": map[string]any{
			"apiKey": c.apiKey,
			"n":      2,
			"min":    0,
			"max":    maxInt,
		},
		"id": 1,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := c.client.Post(c.endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("random.org returned %d", resp.StatusCode)
	}

	var result struct {
		Result struct {
			Random struct {
				Data []int64 `json:"data"`
			} `json:"random"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	if result.Error != nil {
		return 0, fmt.Errorf("random.org: %s", result.Error.Message)
	}
	data := result.Result.Random.Data
	if len(data) != 2 {
		return 0, fmt.Errorf("random.org returned %d integers", len(data))
	}
	return data[0]*(maxInt+1) + data[1], nil
}

func cryptoSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return time.Now().UnixNano() & (1<<63 - 1)
	}
	return int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
}
