package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/wbcms/internal/flagx"
)

var knownFlags = []string{
	"-a", "-g", "-d", "-s", "-t", "-r",
	"-reset-ttl", "-reset-window", "-reset-client-limit", "-reset-client-window", "-password-min-length",
	"-limiter", "-redis",
	"-smtp-host", "-smtp-port", "-smtp-user", "-smtp-password", "-mail-from",
	"-frontend-url", "-log-level",
}

// configFileFlags are consumed by parseJson.
var configFileFlags = []string{"-c", "-config", "--config"}

// CommandArgs removes server settings and the config file flag from args,
// leaving subcommands and their own flags for the command parser.
func CommandArgs(args []string) []string {
	all := append(append([]string{}, knownFlags...), configFileFlags...)
	return flagx.DropArgs(args, all)
}

// parseFlags overlays Config fields given on the command line.
//
// Supported flags:
//
//	-a string                 HTTP bind address (e.g., ":8000")
//	-g string                 gRPC health bind address
//	-d string                 PostgreSQL DSN
//	-s string                 JWT HMAC secret key
//	-t int                    access token validity, minutes
//	-r int                    refresh token validity, minutes
//	-reset-ttl duration       reset link validity (e.g., "24h")
//	-reset-window duration    minimum gap between reset requests per e-mail
//	-reset-client-limit int   forgot-password requests per client per window
//	-reset-client-window duration  window for -reset-client-limit
//	-password-min-length int  password policy minimum length
//	-limiter string           rate limiter backend: memory | redis
//	-redis string             Redis address
//	-smtp-host/-smtp-port/-smtp-user/-smtp-password/-mail-from  outbound mail
//	-frontend-url string      base URL for reset links
//	-log-level string         debug | info | warn | error
//
// Arguments not in knownFlags (cobra subcommands and their own flags) are
// filtered out first. Token validities are minutes to stay compatible with
// existing deployment scripts.
func parseFlags(config *Config, args []string) {
	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run the HTTP API")
	fs.StringVar(&config.EndpointAddrGRPC, "g", config.EndpointAddrGRPC, "address and port to run the gRPC health endpoint")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")
	refreshTokenValidityDuration := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh_token_validity_duration (in minutes)")

	fs.DurationVar(&config.ResetTokenValidityDuration, "reset-ttl", config.ResetTokenValidityDuration, "reset token validity")
	fs.DurationVar(&config.ResetRequestWindow, "reset-window", config.ResetRequestWindow, "reset request rate-limit window")
	fs.IntVar(&config.ResetClientLimit, "reset-client-limit", config.ResetClientLimit, "forgot-password requests per client address per window")
	fs.DurationVar(&config.ResetClientWindow, "reset-client-window", config.ResetClientWindow, "per-client forgot-password window")
	fs.IntVar(&config.PasswordMinLength, "password-min-length", config.PasswordMinLength, "minimum password length")

	fs.StringVar(&config.RateLimiterBackend, "limiter", config.RateLimiterBackend, "rate limiter backend (memory|redis)")
	fs.StringVar(&config.RedisAddr, "redis", config.RedisAddr, "redis address")

	fs.StringVar(&config.SMTPHost, "smtp-host", config.SMTPHost, "SMTP host")
	fs.IntVar(&config.SMTPPort, "smtp-port", config.SMTPPort, "SMTP port")
	fs.StringVar(&config.SMTPUser, "smtp-user", config.SMTPUser, "SMTP user")
	fs.StringVar(&config.SMTPPassword, "smtp-password", config.SMTPPassword, "SMTP password")
	fs.StringVar(&config.MailFrom, "mail-from", config.MailFrom, "From header for outbound mail")

	fs.StringVar(&config.FrontendURL, "frontend-url", config.FrontendURL, "frontend base URL")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level")

	if err := fs.Parse(flagx.FilterArgs(args, knownFlags)); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidityDuration) * time.Minute
}
