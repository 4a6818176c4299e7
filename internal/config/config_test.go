package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("EMAIL_TIMEOUT_SECONDS", "")

	cfg := Load()

	assert.Equal(t, 8080, cfg.AppPort)
	assert.Equal(t, "postgres", cfg.Storage)
	assert.Equal(t, 5*time.Second, cfg.EmailTimeout)
	assert.Equal(t, 168*time.Hour, cfg.JWTTTL)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("STORAGE", "Memory")
	t.Setenv("EMAIL_TIMEOUT_SECONDS", "2")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg := Load()

	assert.Equal(t, 9090, cfg.AppPort)
	assert.Equal(t, "memory", cfg.Storage)
	assert.Equal(t, 2*time.Second, cfg.EmailTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"missing secret", Config{Storage: "postgres", EmailTimeout: time.Second}, false},
		{"bad storage", Config{JWTSecret: "s", Storage: "sqlite", EmailTimeout: time.Second}, false},
		{"zero timeout", Config{JWTSecret: "s", Storage: "memory"}, false},
		{"valid", Config{JWTSecret: "s", Storage: "memory", EmailTimeout: time.Second}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	cfg := Config{DBHost: "db", DBUser: "u", DBPassword: "p", DBName: "n", DBPort: "5432", DBSSLMode: "disable"}
	assert.Equal(t, "host=db user=u password=p dbname=n port=5432 sslmode=disable", cfg.PostgresDSN())
}
