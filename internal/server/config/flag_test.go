package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "all flags", args: []string{
			"serve",
			"-a", "127.0.0.1:9090", "-g", "127.0.0.1:9091", "-d", "db", "-s", "secret",
			"-t", "1", "-r", "3",
			"-reset-ttl", "12h", "-reset-window", "30m", "-reset-client-limit", "5", "-reset-client-window", "2h",
			"-password-min-length", "10",
			"-limiter", "redis", "-redis", "redis:6379",
			"-smtp-host", "smtp.mak.ac.ug", "-smtp-port", "25", "-smtp-user", "mailer", "-smtp-password", "pw",
			"-mail-from", "noreply@mak.ac.ug", "-frontend-url", "https://wbcms.mak.ac.ug", "-log-level", "debug",
		}, expectPanic: false,
			expected: &Config{
				EndpointAddrHTTP:             "127.0.0.1:9090",
				EndpointAddrGRPC:             "127.0.0.1:9091",
				DatabaseDSN:                  "db",
				SecretKey:                    "secret",
				AccessTokenValidityDuration:  1 * time.Minute,
				RefreshTokenValidityDuration: 3 * time.Minute,
				ResetTokenValidityDuration:   12 * time.Hour,
				ResetRequestWindow:           30 * time.Minute,
				ResetClientLimit:             5,
				ResetClientWindow:            2 * time.Hour,
				PasswordMinLength:            10,
				RateLimiterBackend:           "redis",
				RedisAddr:                    "redis:6379",
				SMTPHost:                     "smtp.mak.ac.ug",
				SMTPPort:                     25,
				SMTPUser:                     "mailer",
				SMTPPassword:                 "pw",
				MailFrom:                     "noreply@mak.ac.ug",
				FrontendURL:                  "https://wbcms.mak.ac.ug",
				LogLevel:                     "debug",
			}},
		{name: "non-numeric minutes", args: []string{"-t", "soon"}, expectPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{}

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(config, tt.args) })
				assert.Empty(t, cmp.Diff(config, tt.expected))
			} else {
				require.Panics(t, func() { parseFlags(config, tt.args) })
			}
		})
	}
}

func TestParseFlags_IgnoresForeignFlags(t *testing.T) {
	config := &Config{}
	config.LoadDefaults()

	require.NotPanics(t, func() {
		parseFlags(config, []string{"user", "create", "--email", "reg@cit.mak.ac.ug", "--role", "registrar", "-d", "dsn"})
	})
	assert.Equal(t, "dsn", config.DatabaseDSN)
	assert.Equal(t, ":8000", config.EndpointAddrHTTP)
}

func TestCommandArgs(t *testing.T) {
	args := []string{"-c", "/etc/wbcms.json", "user", "create", "-d", "dsn", "--email", "reg@cit.mak.ac.ug", "-smtp-host=mail", "-log-level", "debug"}
	assert.Equal(t, []string{"user", "create", "--email", "reg@cit.mak.ac.ug"}, CommandArgs(args))
}
