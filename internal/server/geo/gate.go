package geo

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/lightninglabs/neutrino/cache"
	"github.com/lightninglabs/neutrino/cache/lru"
	"golang.org/x/sync/singleflight"

	"github.com/dmitrijs2005/typerank/internal/logging"
)

// cachedCountry is one geolocation cache entry with its expiry stamp.
type cachedCountry struct {
	country   string
	expiresAt time.Time
}

func (c *cachedCountry) Size() (uint64, error) {
	return 1, nil
}

// Gate decides whether a request originates from the admitted country.
// The cache and singleflight group are owned by the Gate instance, not
// package state, so tests construct fresh gates per case.
type Gate struct {
	providers []Provider
	cache     *lru.Cache[string, *cachedCountry]
	group     singleflight.Group
	ttl       time.Duration
	timeout   time.Duration
	admitted  string
	logger    logging.Logger
}

func NewGate(providers []Provider, admittedCountry string, cacheSize int, ttl, timeout time.Duration, logger logging.Logger) *Gate {
	return &Gate{
		providers: providers,
		cache:     lru.NewCache[string, *cachedCountry](uint64(cacheSize)),
		ttl:       ttl,
		timeout:   timeout,
		admitted:  strings.ToUpper(admittedCountry),
		logger:    logger.With("module", "region_gate"),
	}
}

// ClientIP extracts the request origin, preferring trusted proxy headers
// over the raw socket address: first X-Forwarded-For hop, then X-Real-IP,
// then RemoteAddr.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
		if first != "" {
			return first
		}
	}
	if real := strings.TrimSpace(r.Header.Get("X-Real-IP")); real != "" {
		return real
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// IsAdmitted reports whether the request's origin IP geolocates to the
// admitted country. Loopback and private addresses are admitted (local
// development); total geolocation failure denies.
func (g *Gate) IsAdmitted(ctx context.Context, r *http.Request) bool {
	ip := ClientIP(r)

	parsed := net.ParseIP(ip)
	if parsed == nil {
		g.logger.Warn(ctx, "unparseable client address", "addr", ip)
		return false
	}
	if parsed.IsLoopback() || parsed.IsPrivate() {
		return true
	}

	country, err := g.country(ctx, ip)
	if err != nil {
		// fail closed
		g.logger.Warn(ctx, "geolocation failed, denying", "ip", ip, "error", err.Error())
		return false
	}

	return country == g.admitted
}

// country resolves with cache, singleflight and provider failover.
func (g *Gate) country(ctx context.Context, ip string) (string, error) {
	if entry, err := g.cache.Get(ip); err == nil {
		if time.Now().Before(entry.expiresAt) {
			return entry.country, nil
		}
		g.cache.Delete(ip)
	} else if !errors.Is(err, cache.ErrElementNotFound) {
		return "", err
	}

	// collapse concurrent lookups for the same IP into one provider call
	v, err, _ := g.group.Do(ip, func() (any, error) {
		country, err := g.lookup(ctx, ip)
		if err != nil {
			return "", err
		}
		_, _ = g.cache.Put(ip, &cachedCountry{
			country:   country,
			expiresAt: time.Now().Add(g.ttl),
		})
		return country, nil
	})
	if err != nil {
		return "", err
	}

	return v.(string), nil
}

// lookup tries each provider in order, returning the first answer.
func (g *Gate) lookup(ctx context.Context, ip string) (string, error) {
	var lastErr error

	for _, p := range g.providers {
		pctx, cancel := context.WithTimeout(ctx, g.timeout)
		country, err := p.Country(pctx, ip)
		cancel()

		if err == nil {
			return country, nil
		}
		lastErr = err
	}

	if lastErr == nil {
		lastErr = errors.New("no geolocation providers configured")
	}
	return "", lastErr
}
