package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/qr-attendance/internal/geo"
	"github.com/ukydev/qr-attendance/internal/geocode"
)

func lookup(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(lookup(nil))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, geo.DefaultPolicy(), cfg.Policy)
	assert.True(t, cfg.IncludeLocationName)
	assert.Equal(t, geocode.DefaultBaseURL, cfg.GeocoderURL)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 30*time.Second, cfg.LocationTimeout)
	assert.Equal(t, 24*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, 256, cfg.QRSize)
	assert.Nil(t, cfg.StaticLocation)
	assert.Empty(t, cfg.MongoURI)
	assert.Empty(t, cfg.AllowedOrigins)
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(lookup(map[string]string{
		"PORT":                  "9090",
		"MATCH_MODE":            "COARSE",
		"DELTA_THRESHOLD":       "0.002",
		"MATCH_RADIUS_METERS":   "100",
		"INCLUDE_LOCATION_NAME": "false",
		"HTTP_TIMEOUT":          "5",
		"LOCATION_MAX_AGE":      "2m",
		"STATIC_LAT":            "28.7041",
		"STATIC_LON":            "77.1025",
		"RATE_LIMIT_MAX":        "5",
		"CORS_ALLOWED_ORIGINS":  "http://localhost:3000, https://attend.example.com",
	}))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, geo.ModeCoarse, cfg.Policy.Mode)
	assert.Equal(t, 0.002, cfg.Policy.DeltaDegrees)
	assert.Equal(t, 100.0, cfg.Policy.RadiusMeters)
	assert.False(t, cfg.IncludeLocationName)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 2*time.Minute, cfg.LocationMaxAge)
	require.NotNil(t, cfg.StaticLocation)
	assert.Equal(t, 28.7041, cfg.StaticLocation.Latitude)
	assert.Equal(t, 77.1025, cfg.StaticLocation.Longitude)
	assert.Equal(t, 5, cfg.RateLimitMax)
	assert.Equal(t, []string{"http://localhost:3000", "https://attend.example.com"}, cfg.AllowedOrigins)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{"bad mode", map[string]string{"MATCH_MODE": "nearby"}},
		{"bad radius", map[string]string{"MATCH_RADIUS_METERS": "fifty"}},
		{"zero radius", map[string]string{"MATCH_RADIUS_METERS": "0"}},
		{"negative delta in coarse mode", map[string]string{"MATCH_MODE": "coarse", "DELTA_THRESHOLD": "-1"}},
		{"bad bool", map[string]string{"INCLUDE_LOCATION_NAME": "maybe"}},
		{"bad duration", map[string]string{"HTTP_TIMEOUT": "soon"}},
		{"only static lat", map[string]string{"STATIC_LAT": "10"}},
		{"static out of range", map[string]string{"STATIC_LAT": "100", "STATIC_LON": "0"}},
		{"bad int", map[string]string{"QR_SIZE": "big"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := FromEnv(lookup(tt.vars))
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}

func TestLoad_ReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("QR_SIZE=320\n"), 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd)
	defer os.Unsetenv("QR_SIZE")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 320, cfg.QRSize)
}

func TestSetupLogging(t *testing.T) {
	defer log.SetLevel(log.GetLevel())
	defer log.SetFormatter(log.StandardLogger().Formatter)

	cfg := &Config{LogLevel: "debug", LogFormat: "json"}
	cfg.SetupLogging()
	assert.Equal(t, log.DebugLevel, log.GetLevel())
	assert.IsType(t, &log.JSONFormatter{}, log.StandardLogger().Formatter)

	cfg = &Config{LogLevel: "loud", LogFormat: "text"}
	cfg.SetupLogging()
	assert.Equal(t, log.InfoLevel, log.GetLevel())
	assert.IsType(t, &log.TextFormatter{}, log.StandardLogger().Formatter)
}
