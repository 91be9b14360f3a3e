package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"rescuelink/utils"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// GeocodeService resolves coordinates to a human readable address against a
// Nominatim compatible endpoint. Lookups never fail: when nothing usable comes
// back the formatted coordinates are returned instead.
type GeocodeService struct {
	baseURL    string
	httpClient *http.Client
	cache      *gocache.Cache
	userAgent  string
}

func NewGeocodeService(baseURL string, timeout time.Duration) *GeocodeService {
	return &GeocodeService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		cache:      gocache.New(24*time.Hour, time.Hour),
		userAgent:  "rescuelink/1.0",
	}
}

type nominatimResponse struct {
	DisplayName string `json:"display_name"`
	Address     struct {
		DisplayName string `json:"display_name"`
		Road        string `json:"road"`
		City        string `json:"city"`
		Town        string `json:"town"`
		Country     string `json:"country"`
	} `json:"address"`
}

func (r nominatimResponse) bestAddress() string {
	if r.DisplayName != "" {
		return r.DisplayName
	}
	if r.Address.DisplayName != "" {
		return r.Address.DisplayName
	}
	var parts []string
	for _, p := range []string{r.Address.Road, r.Address.City, r.Address.Town, r.Address.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Reverse returns the address for a coordinate pair.
func (gs *GeocodeService) Reverse(ctx context.Context, lat, lng float64) string {
	fallback := utils.FormatCoordinate(lat, lng)
	cacheKey := fmt.Sprintf("%.5f:%.5f", lat, lng)
	if cached, ok := gs.cache.Get(cacheKey); ok {
		return cached.(string)
	}

	address, err := gs.lookup(ctx, lat, lng)
	if err != nil {
		logrus.Debugf("Reverse geocoding failed for %s: %v", fallback, err)
		return fallback
	}
	if address == "" {
		return fallback
	}

	gs.cache.Set(cacheKey, address, gocache.DefaultExpiration)
	return address
}

func (gs *GeocodeService) lookup(ctx context.Context, lat, lng float64) (string, error) {
	query := url.Values{}
	query.Set("format", "json")
	query.Set("lat", fmt.Sprintf("%f", lat))
	query.Set("lon", fmt.Sprintf("%f", lng))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, gs.baseURL+"/reverse?"+query.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", gs.userAgent)

	resp, err := gs.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("geocoder returned %d", resp.StatusCode)
	}

	var body nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	return strings.TrimSpace(body.bestAddress()), nil
}
