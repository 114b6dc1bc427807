// Package geo implements the region gate: client IP extraction,
// geolocation with multi-provider failover, and a bounded TTL cache.
// Admission fails closed when every provider is unavailable.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Provider resolves an IP address to an upper-case two-letter country code.
type Provider interface {
	Country(ctx context.Context, ip string) (string, error)
}

// IPAPIProvider queries ip-api.com.
type IPAPIProvider struct {
	hc      *http.Client
	baseURL string
}

func NewIPAPIProvider() *IPAPIProvider {
	return &IPAPIProvider{hc: &http.Client{}, baseURL: "http://ip-api.com"}
}

func (p *IPAPIProvider) Country(ctx context.Context, ip string) (string, error) {
	var out struct {
		Status      string `json:"status"`
		CountryCode string `json:"countryCode"`
	}
	if err := getJSON(ctx, p.hc, p.baseURL+"/json/"+ip+"?fields=status,countryCode", &out); err != nil {
		return "", err
	}
	if out.Status != "success" || out.CountryCode == "" {
		return "", fmt.Errorf("ip-api: no result for %s", ip)
	}
	return strings.ToUpper(out.CountryCode), nil
}

// IPWhoProvider queries ipwho.is.
type IPWhoProvider struct {
	hc      *http.Client
	baseURL string
}

func NewIPWhoProvider() *IPWhoProvider {
	return &IPWhoProvider{hc: &http.Client{}, baseURL: "https://ipwho.is"}
}

func (p *IPWhoProvider) Country(ctx context.Context, ip string) (string, error) {
	var out struct {
		Success     bool   `json:"success"`
		CountryCode string `json:"country_code"`
	}
	if err := getJSON(ctx, p.hc, p.baseURL+"/"+ip, &out); err != nil {
		return "", err
	}
	if !out.Success || out.CountryCode == "" {
		return "", fmt.Errorf("ipwho: no result for %s", ip)
	}
	return strings.ToUpper(out.CountryCode), nil
}

func getJSON(ctx context.Context, hc *http.Client, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("geolocation status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}
