package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/qr-attendance/internal/auth"
	"github.com/ukydev/qr-attendance/internal/checkin"
	"github.com/ukydev/qr-attendance/internal/config"
	"github.com/ukydev/qr-attendance/internal/db"
	"github.com/ukydev/qr-attendance/internal/geocode"
	"github.com/ukydev/qr-attendance/internal/handlers"
	"github.com/ukydev/qr-attendance/internal/location"
	"github.com/ukydev/qr-attendance/internal/middleware"
	"github.com/ukydev/qr-attendance/internal/payload"
	"github.com/ukydev/qr-attendance/internal/submit"
	"go.mongodb.org/mongo-driver/mongo"
)

// app holds the wired service and what must be released on shutdown.
type app struct {
	handler http.Handler
	session *checkin.Session
	mqtt    mqtt.Client
	mongo   *mongo.Client
}

func (a *app) close() {
	a.session.Close()
	if a.mqtt != nil {
		a.mqtt.Disconnect(250)
	}
	if a.mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.mongo.Disconnect(ctx); err != nil {
			log.WithError(err).Warn("Failed to disconnect from MongoDB")
		}
	}
}

// newLocator picks the position source: a fixed point when one is configured,
// otherwise a feed of device reports arriving over HTTP and, optionally, MQTT.
func newLocator(cfg *config.Config) (location.Provider, *location.Feed, mqtt.Client, error) {
	if cfg.StaticLocation != nil {
		log.WithFields(log.Fields{
			"lat": cfg.StaticLocation.Latitude,
			"lon": cfg.StaticLocation.Longitude,
		}).Info("Using static location")
		return location.NewStatic(cfg.StaticLocation), nil, nil, nil
	}

	feed := location.NewFeed(cfg.LocationMaxAge)
	if cfg.MQTTBroker == "" {
		return feed, feed, nil, nil
	}
	client, err := location.ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientID)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := location.SubscribeMQTT(client, cfg.MQTTTopic, feed); err != nil {
		client.Disconnect(250)
		return nil, nil, nil, err
	}
	return feed, feed, client, nil
}

func newApp(cfg *config.Config) (*app, error) {
	a := &app{}

	locator, feed, mqttClient, err := newLocator(cfg)
	if err != nil {
		return nil, err
	}
	a.mqtt = mqttClient

	var recorder checkin.Recorder
	var attempts db.AttemptCollection
	if cfg.MongoURI != "" {
		client, err := db.ConnectMongo(cfg.MongoURI)
		if err != nil {
			if mqttClient != nil {
				mqttClient.Disconnect(250)
			}
			return nil, err
		}
		a.mongo = client
		coll := db.NewMongoCollection(client, cfg.MongoDB)
		recorder, attempts = coll, coll
		log.WithField("db", cfg.MongoDB).Info("Connected to MongoDB, journaling attempts")
	}

	var geocoder geocode.Geocoder
	if cfg.GeocoderURL != "off" {
		geocoder = geocode.NewClient(cfg.GeocoderURL, cfg.GeocoderUserAgent, cfg.HTTPTimeout)
	}
	codec := payload.NewCodec(cfg.IncludeLocationName)
	authService := auth.NewService(cfg.JWTSecret, cfg.JWTExpiry)
	accounts := auth.NewMockProvider(authService)

	a.session = checkin.NewSession(checkin.Config{
		Policy:          cfg.Policy,
		LocationTimeout: cfg.LocationTimeout,
	}, checkin.Deps{
		Locator:    locator,
		Identities: accounts,
		Submitter:  submit.NewClient(cfg.AttendanceAPIURL, cfg.AttendanceAPIToken, cfg.HTTPTimeout),
		Codec:      codec,
		Geocoder:   geocoder,
		Recorder:   recorder,
	})
	emitter := checkin.NewEmitter(locator, geocoder, codec, cfg.QRSize)

	a.handler = handlers.NewRouter(handlers.RouterConfig{
		Auth:            handlers.NewAuthHandler(authService, accounts),
		Checkin:         handlers.NewCheckinHandler(a.session, emitter, feed),
		Attempts:        handlers.NewAttemptHandler(attempts),
		AuthMiddleware:  middleware.NewAuthMiddleware(authService),
		RateLimiter:     middleware.NewRateLimitMiddleware(),
		ScanLimit:       cfg.RateLimitMax,
		ScanLimitWindow: cfg.RateLimitWindow,
		AllowedOrigins:  cfg.AllowedOrigins,
	})
	return a, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}
	cfg.SetupLogging()

	a, err := newApp(cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to start")
	}
	defer a.close()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Graceful shutdown failed")
		}
	}()

	log.WithFields(log.Fields{
		"port":       cfg.Port,
		"match_mode": cfg.Policy.Mode,
		"radius_m":   cfg.Policy.RadiusMeters,
	}).Info("HTTP server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Error("HTTP server failed")
	}
	log.Info("Server stopped")
}
