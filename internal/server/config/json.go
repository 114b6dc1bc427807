package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/typerank/internal/flagx"
	"github.com/dmitrijs2005/typerank/internal/timex"
)

// JsonConfig is an intermediate DTO used only for reading JSON
// configuration files. It uses timex.Duration for interval fields, which
// allows parsing both string values such as "3m" and integer nanoseconds.
// After unmarshalling, its fields are copied into the runtime Config.
//
// A zero value in the file means "keep the current value", so a partial
// overlay does not wipe out defaults.
type JsonConfig struct {
	EndpointAddr                 string         `json:"endpoint_addr"`
	DatabaseDSN                  string         `json:"database_dsn"`
	StateDir                     string         `json:"state_dir"`
	SecretKey                    string         `json:"secret_key"`
	AdminToken                   string         `json:"admin_token"`
	SessionTokenValidityDuration timex.Duration `json:"session_token_validity_duration"`
	UpstreamBaseURL              string         `json:"upstream_base_url"`
	UpstreamMode                 string         `json:"upstream_mode"`
	TargetMode                   string         `json:"target_mode"`
	TargetDuration               int            `json:"target_duration"`
	UpstreamTimeout              timex.Duration `json:"upstream_timeout"`
	SweepInterval                timex.Duration `json:"sweep_interval"`
	SweepPacing                  timex.Duration `json:"sweep_pacing"`
	AdmittedCountry              string         `json:"admitted_country"`
	GeoCacheSize                 int            `json:"geo_cache_size"`
	GeoCacheTTL                  timex.Duration `json:"geo_cache_ttl"`
	GeoTimeout                   timex.Duration `json:"geo_timeout"`
	S3RootUser                   string         `json:"s3_root_user"`
	S3RootPassword               string         `json:"s3_root_password"`
	S3Bucket                     string         `json:"s3_bucket"`
	S3Region                     string         `json:"s3_region"`
	S3BaseEndpoint               string         `json:"s3_base_endpoint"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c or -config command-line
// flags; if neither is set, no JSON file is loaded. If the file cannot be
// read or contains invalid JSON, the function panics.
func parseJson(config *Config) {

	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	setString(&config.EndpointAddr, c.EndpointAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.StateDir, c.StateDir)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.AdminToken, c.AdminToken)
	setDuration(&config.SessionTokenValidityDuration, c.SessionTokenValidityDuration)
	setString(&config.UpstreamBaseURL, c.UpstreamBaseURL)
	setString(&config.UpstreamMode, c.UpstreamMode)
	setString(&config.TargetMode, c.TargetMode)
	setInt(&config.TargetDuration, c.TargetDuration)
	setDuration(&config.UpstreamTimeout, c.UpstreamTimeout)
	setDuration(&config.SweepInterval, c.SweepInterval)
	setDuration(&config.SweepPacing, c.SweepPacing)
	setString(&config.AdmittedCountry, c.AdmittedCountry)
	setInt(&config.GeoCacheSize, c.GeoCacheSize)
	setDuration(&config.GeoCacheTTL, c.GeoCacheTTL)
	setDuration(&config.GeoTimeout, c.GeoTimeout)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
