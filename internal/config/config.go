package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/qr-attendance/internal/geo"
	"github.com/ukydev/qr-attendance/internal/geocode"
	"github.com/ukydev/qr-attendance/internal/models"
)

// Config is the service configuration, read from the environment.
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	Policy              geo.Policy
	IncludeLocationName bool

	GeocoderURL       string
	GeocoderUserAgent string

	AttendanceAPIURL   string
	AttendanceAPIToken string
	HTTPTimeout        time.Duration

	LocationTimeout time.Duration
	LocationMaxAge  time.Duration
	StaticLocation  *models.Location

	MQTTBroker   string
	MQTTTopic    string
	MQTTClientID string

	MongoURI string
	MongoDB  string

	JWTSecret string
	JWTExpiry time.Duration

	QRSize int

	RateLimitMax    int
	RateLimitWindow int

	AllowedOrigins []string
}

// Load reads a .env file if present, then the environment. Unset variables
// take their defaults; malformed ones are an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Failed to read .env file")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	e := env{get: getenv}
	cfg := &Config{
		Port:      e.str("PORT", "8080"),
		LogLevel:  e.str("LOG_LEVEL", "info"),
		LogFormat: e.str("LOG_FORMAT", "text"),

		IncludeLocationName: e.boolean("INCLUDE_LOCATION_NAME", true),

		GeocoderURL:       e.str("GEOCODER_URL", geocode.DefaultBaseURL),
		GeocoderUserAgent: e.str("GEOCODER_USER_AGENT", geocode.DefaultUserAgent),

		AttendanceAPIURL:   e.str("ATTENDANCE_API_URL", "http://localhost:5000/api/attendance"),
		AttendanceAPIToken: e.str("ATTENDANCE_API_TOKEN", ""),
		HTTPTimeout:        e.duration("HTTP_TIMEOUT", 10*time.Second),

		LocationTimeout: e.duration("LOCATION_TIMEOUT", 30*time.Second),
		LocationMaxAge:  e.duration("LOCATION_MAX_AGE", 0),

		MQTTBroker:   e.str("MQTT_BROKER", ""),
		MQTTTopic:    e.str("MQTT_TOPIC", "attendance/location"),
		MQTTClientID: e.str("MQTT_CLIENT_ID", "qr-attendance"),

		MongoURI: e.str("MONGO_URI", ""),
		MongoDB:  e.str("MONGO_DB", "qr_attendance"),

		JWTSecret: e.str("JWT_SECRET", ""),
		JWTExpiry: e.duration("JWT_EXPIRY", 24*time.Hour),

		QRSize: e.integer("QR_SIZE", 256),

		RateLimitMax:    e.integer("RATE_LIMIT_MAX", 30),
		RateLimitWindow: e.integer("RATE_LIMIT_WINDOW_SECONDS", 60),

		AllowedOrigins: e.list("CORS_ALLOWED_ORIGINS"),
	}

	mode, err := geo.ParseMode(e.str("MATCH_MODE", string(geo.ModeMetric)))
	if err != nil {
		e.fail("MATCH_MODE", err)
	}
	cfg.Policy = geo.Policy{
		Mode:         mode,
		RadiusMeters: e.float("MATCH_RADIUS_METERS", geo.DefaultRadiusMeters),
		DeltaDegrees: e.float("DELTA_THRESHOLD", geo.DefaultDeltaDegrees),
	}

	lat, lon := e.get("STATIC_LAT"), e.get("STATIC_LON")
	if lat != "" || lon != "" {
		point := models.Location{
			Latitude:  e.float("STATIC_LAT", 0),
			Longitude: e.float("STATIC_LON", 0),
		}
		if lat == "" || lon == "" || !point.Valid() {
			e.fail("STATIC_LAT/STATIC_LON", fmt.Errorf("both must be set to valid coordinates"))
		} else {
			cfg.StaticLocation = &point
		}
	}

	if e.err != nil {
		return nil, e.err
	}
	if err := cfg.Policy.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetupLogging applies the configured level and format to the standard logger.
func (c *Config) SetupLogging() {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		log.WithField("level", c.LogLevel).Warn("Unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if strings.EqualFold(c.LogFormat, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

// env collects the first parse error.
type env struct {
	get func(string) string
	err error
}

func (e *env) fail(key string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("invalid %s: %w", key, err)
	}
}

func (e *env) str(key, def string) string {
	if v := strings.TrimSpace(e.get(key)); v != "" {
		return v
	}
	return def
}

func (e *env) integer(key string, def int) int {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return n
}

func (e *env) float(key string, def float64) float64 {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return f
}

func (e *env) boolean(key string, def bool) bool {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return b
}

// duration accepts Go duration strings ("15s") or plain seconds.
func (e *env) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return d
}

func (e *env) list(key string) []string {
	var out []string
	for _, part := range strings.Split(e.get(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
