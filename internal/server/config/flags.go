package config

import (
	"flag"
	"os"
	"time"

	"github.com/ajeevsan/fileUpload-backend/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":3000")
//	-d string   PostgreSQL DSN
//	-s string   token signing secret key
//	-w int      expiry window, hours
//	-i int      reaper sweep interval, minutes
//	-m int      max upload size, MiB
//	-auth       use authenticated (AES-GCM) envelopes
//	-u string   S3 access key
//	-p string   S3 secret key
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components. Duration
// flags are accepted as integers and converted to time.Duration values.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-w", "-i", "-m", "-auth", "-u", "-p", "-b", "-g", "-e"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	expiryWindow := fs.Int("w", int(config.ExpiryWindow.Hours()), "expiry window (in hours)")
	sweepInterval := fs.Int("i", int(config.SweepInterval.Minutes()), "sweep interval (in minutes)")
	maxUploadSize := fs.Int64("m", config.MaxUploadSize/(1024*1024), "max upload size (in MiB)")

	fs.BoolVar(&config.AuthenticatedEncryption, "auth", config.AuthenticatedEncryption, "use authenticated encryption")

	fs.StringVar(&config.S3AccessKey, "u", config.S3AccessKey, "S3 access key")
	fs.StringVar(&config.S3SecretKey, "p", config.S3SecretKey, "S3 secret key")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.ExpiryWindow = time.Duration(*expiryWindow) * time.Hour
	config.SweepInterval = time.Duration(*sweepInterval) * time.Minute
	config.MaxUploadSize = *maxUploadSize * 1024 * 1024
}
