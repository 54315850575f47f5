package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/wbcms/internal/flagx"
	"github.com/dmitrijs2005/wbcms/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration so both "24h" and integer nanoseconds are accepted.
// Only fields present in the file override the defaults.
type JsonConfig struct {
	EndpointAddrHTTP             *string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC             *string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                  *string         `json:"database_dsn"`
	SecretKey                    *string         `json:"secret_key"`
	AccessTokenValidityDuration  *timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration *timex.Duration `json:"refresh_token_validity_duration"`
	ResetTokenValidityDuration   *timex.Duration `json:"reset_token_validity_duration"`
	ResetRequestWindow           *timex.Duration `json:"reset_request_window"`
	ResetClientLimit             *int            `json:"reset_client_limit"`
	ResetClientWindow            *timex.Duration `json:"reset_client_window"`
	PasswordMinLength            *int            `json:"password_min_length"`
	RateLimiterBackend           *string         `json:"rate_limiter_backend"`
	RedisAddr                    *string         `json:"redis_addr"`
	SMTPHost                     *string         `json:"smtp_host"`
	SMTPPort                     *int            `json:"smtp_port"`
	SMTPUser                     *string         `json:"smtp_user"`
	SMTPPassword                 *string         `json:"smtp_password"`
	MailFrom                     *string         `json:"mail_from"`
	FrontendURL                  *string         `json:"frontend_url"`
	LogLevel                     *string         `json:"log_level"`
}

// parseJson overlays values from the JSON file named by -c/-config onto
// config. No flag means nothing is loaded. An unreadable file or invalid
// JSON panics: the server must not start on a half-applied configuration.
func parseJson(config *Config, args []string) {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration != nil {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.ResetTokenValidityDuration != nil {
		config.ResetTokenValidityDuration = c.ResetTokenValidityDuration.Duration
	}
	if c.ResetRequestWindow != nil {
		config.ResetRequestWindow = c.ResetRequestWindow.Duration
	}
	setInt(&config.ResetClientLimit, c.ResetClientLimit)
	if c.ResetClientWindow != nil {
		config.ResetClientWindow = c.ResetClientWindow.Duration
	}
	setInt(&config.PasswordMinLength, c.PasswordMinLength)
	setString(&config.RateLimiterBackend, c.RateLimiterBackend)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.SMTPHost, c.SMTPHost)
	setInt(&config.SMTPPort, c.SMTPPort)
	setString(&config.SMTPUser, c.SMTPUser)
	setString(&config.SMTPPassword, c.SMTPPassword)
	setString(&config.MailFrom, c.MailFrom)
	setString(&config.FrontendURL, c.FrontendURL)
	setString(&config.LogLevel, c.LogLevel)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
