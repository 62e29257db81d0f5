package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/timecapsule/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-i int      unlock check interval, seconds
//	-m string   SMTP address (host:port)
//	-f string   mail From address
//	-q string   quote API endpoint
//	-k string   quote API key
//	-l string   public base URL for viewer links
//	-b string   S3 bucket name
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-i", "-m", "-f", "-q", "-k", "-l", "-b", "-e"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	unlockCheckInterval := fs.Int("i", int(config.UnlockCheckInterval.Seconds()), "unlock check interval (in seconds)")

	fs.StringVar(&config.SMTPAddr, "m", config.SMTPAddr, "SMTP address (host:port)")
	fs.StringVar(&config.SMTPFrom, "f", config.SMTPFrom, "mail From address")
	fs.StringVar(&config.QuoteAPIEndpoint, "q", config.QuoteAPIEndpoint, "quote API endpoint")
	fs.StringVar(&config.QuoteAPIKey, "k", config.QuoteAPIKey, "quote API key")
	fs.StringVar(&config.PublicBaseURL, "l", config.PublicBaseURL, "public base URL for viewer links")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.UnlockCheckInterval = time.Duration(*unlockCheckInterval) * time.Second
}
