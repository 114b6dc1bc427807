// Package config handles configuration for the server component,
// including defaults, JSON overlay, and command-line flags.
package config

import "time"

// Upstream mode selection, fixed at process startup.
const (
	UpstreamModeAPI  = "api"
	UpstreamModeDemo = "demo"
)

// Config holds runtime settings for the typerank server.
//
// Fields:
//   - EndpointAddr: bind address for the HTTP endpoint.
//   - DatabaseDSN: PostgreSQL DSN (pgx). Empty selects the file backend.
//   - StateDir: directory for the file-backed state documents.
//   - SecretKey: HMAC secret for signing session JWTs (HS256). Empty
//     generates a random per-process secret at startup; sessions then do
//     not survive restarts.
//   - AdminToken: static token guarding the admin endpoints; empty disables them.
//   - UpstreamBaseURL / UpstreamMode: typing-test API location and mode
//     ("api" for real calls, "demo" for the offline source).
//   - TargetMode / TargetDuration: the qualifying test configuration.
//   - SweepInterval / SweepPacing: refresh sweep schedule and per-user delay.
//   - AdmittedCountry: two-letter code of the single admitted region.
type Config struct {
	EndpointAddr                 string
	DatabaseDSN                  string
	StateDir                     string
	SecretKey                    string
	AdminToken                   string
	SessionTokenValidityDuration time.Duration
	UpstreamBaseURL              string
	UpstreamMode                 string
	TargetMode                   string
	TargetDuration               int
	UpstreamTimeout              time.Duration
	SweepInterval                time.Duration
	SweepPacing                  time.Duration
	AdmittedCountry              string
	GeoCacheSize                 int
	GeoCacheTTL                  time.Duration
	GeoTimeout                   time.Duration
	S3RootUser                   string
	S3RootPassword               string
	S3Bucket                     string
	S3Region                     string
	S3BaseEndpoint               string
}

// LoadDefaults populates Config with sensible development defaults.
// NOTE: These values are insecure for production and should be overridden.
func (c *Config) LoadDefaults() {
	c.EndpointAddr = ":8080"
	c.DatabaseDSN = ""
	c.StateDir = "state"
	c.SecretKey = ""
	c.AdminToken = ""
	c.SessionTokenValidityDuration = 12 * time.Hour
	c.UpstreamBaseURL = "https://api.monkeytype.com"
	c.UpstreamMode = UpstreamModeAPI
	c.TargetMode = "time"
	c.TargetDuration = 60
	c.UpstreamTimeout = 5 * time.Second
	c.SweepInterval = 3 * time.Minute
	c.SweepPacing = 500 * time.Millisecond
	c.AdmittedCountry = "LV"
	c.GeoCacheSize = 512
	c.GeoCacheTTL = 10 * time.Minute
	c.GeoTimeout = 2 * time.Second
	c.S3RootUser = ""
	c.S3RootPassword = ""
	c.S3Bucket = ""
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = ""
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
