package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/typerank/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN (empty selects the file backend)
//	-t string   state directory for the file backend
//	-s string   JWT HMAC secret key
//	-k string   admin token (empty disables admin endpoints)
//	-u string   upstream typing API base URL
//	-m string   upstream mode ("api" or "demo")
//	-i int      sweep interval, minutes
//	-r string   admitted country code (e.g., "LV")
//
// Notes:
//   - The function first filters os.Args to only the flags it recognizes
//     using flagx.FilterArgs, avoiding collisions with other components.
//   - The sweep interval flag is accepted as an integer in minutes and then
//     converted to a time.Duration value.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-t", "-s", "-k", "-u", "-m", "-i", "-r"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.StateDir, "t", config.StateDir, "state directory")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.AdminToken, "k", config.AdminToken, "admin token")
	fs.StringVar(&config.UpstreamBaseURL, "u", config.UpstreamBaseURL, "upstream base URL")
	fs.StringVar(&config.UpstreamMode, "m", config.UpstreamMode, "upstream mode (api|demo)")

	sweepInterval := fs.Int("i", int(config.SweepInterval.Minutes()), "sweep_interval (in minutes)")

	fs.StringVar(&config.AdmittedCountry, "r", config.AdmittedCountry, "admitted country code")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SweepInterval = time.Duration(*sweepInterval) * time.Minute
}
