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
	"time"

	log "github.com/sirupsen/logrus"
)

var ErrGeocodeUnavailable = errors.New("geocode unavailable")

const (
	// Fallback is shown whenever a name cannot be resolved.
	Fallback = "Location name unavailable"
	// Unknown is used when the lookup succeeded but returned nothing usable.
	Unknown = "Unknown location"

	DefaultBaseURL   = "https://nominatim.openstreetmap.org"
	DefaultUserAgent = "QR Attendance System"
)

// Geocoder resolves coordinates to a display name.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (string, error)
}

// Client is a Nominatim-compatible reverse geocoding client.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	now        func() time.Time
}

// NewClient creates a reverse geocoding client.
func NewClient(baseURL, userAgent string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

type address struct {
	Building string `json:"building"`
	Road     string `json:"road"`
	Suburb   string `json:"suburb"`
	City     string `json:"city"`
	Town     string `json:"town"`
	Village  string `json:"village"`
	State    string `json:"state"`
	Country  string `json:"country"`
}

type reverseResponse struct {
	DisplayName string   `json:"display_name"`
	Address     *address `json:"address"`
	Error       string   `json:"error"`
}

// Reverse looks up the place name for a coordinate pair. Every request carries
// a unique cache-busting parameter so a new position never gets a stale name.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("zoom", "18")
	q.Set("addressdetails", "1")
	q.Set("_", strconv.FormatInt(c.now().UnixMilli(), 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeocodeUnavailable, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeocodeUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrGeocodeUnavailable, resp.StatusCode)
	}

	var body reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeocodeUnavailable, err)
	}
	if body.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrGeocodeUnavailable, body.Error)
	}
	return format(body), nil
}

func format(body reverseResponse) string {
	if body.Address == nil {
		if body.DisplayName != "" {
			return body.DisplayName
		}
		return Unknown
	}

	a := body.Address
	var parts []string
	for _, s := range []string{a.Building, a.Road, a.Suburb, firstNonEmpty(a.City, a.Town, a.Village), a.State, a.Country} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		if body.DisplayName != "" {
			return body.DisplayName
		}
		return Unknown
	}
	return strings.Join(parts, ", ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// DisplayName resolves a name and never fails: errors are logged and replaced
// by Fallback. A nil geocoder also yields Fallback.
func DisplayName(ctx context.Context, g Geocoder, lat, lon float64) string {
	if g == nil {
		return Fallback
	}
	name, err := g.Reverse(ctx, lat, lon)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{"lat": lat, "lon": lon}).Warn("Reverse geocoding failed")
		return Fallback
	}
	return name
}
