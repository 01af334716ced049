package geoip

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	defaultEndpoint = "http://ip-api.com/json"
	lookupTimeout   = 3 * time.Second
)

// Location is a best-effort geolocation record. Every field is optional;
// the zero value is a valid "unknown" result.
type Location struct {
	Country     string  `json:"country"`
	CountryCode string  `json:"countryCode"`
	City        string  `json:"city"`
	Region      string  `json:"regionName"`
	Latitude    float64 `json:"lat"`
	Longitude   float64 `json:"lon"`
	Timezone    string  `json:"timezone"`
}

// Client resolves client IPs to locations via an external HTTP service.
// Lookup never returns an error: enrichment must not block ingestion.
type Client struct {
	endpoint string
	http     *http.Client
}

// New creates a geolocation client. endpoint may be empty to use the default.
func New(endpoint string) *Client {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = defaultEndpoint
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     &http.Client{Timeout: lookupTimeout},
	}
}

// Lookup resolves ip to a Location. Loopback and private-range addresses
// short-circuit to a fixed local record without an external call; any
// lookup failure yields the zero Location.
func (c *Client) Lookup(ctx context.Context, ip string) Location {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return Location{}
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return Location{}
	}
	if isPrivate(parsed) {
		return Location{Country: "Local", City: "Localhost"}
	}

	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s", c.endpoint, ip), nil)
	if err != nil {
		return Location{}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Location{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Location{}
	}

	var payload struct {
		Status string `json:"status"`
		Location
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Location{}
	}
	if payload.Status != "" && payload.Status != "success" {
		return Location{}
	}
	return payload.Location
}

func isPrivate(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}
