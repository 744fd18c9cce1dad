package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/qr-attendance/internal/geo"
	"github.com/ukydev/qr-attendance/internal/location"
	"github.com/ukydev/qr-attendance/internal/models"
)

// Site is a named place a simulated device wanders around.
type Site struct {
	Name     string
	Location models.Location
}

var sites = []Site{
	{"London", models.Location{Latitude: 51.5074, Longitude: -0.1278}},
	{"New York", models.Location{Latitude: 40.7128, Longitude: -74.0060}},
	{"New Delhi", models.Location{Latitude: 28.7041, Longitude: 77.1025}},
	{"Paris", models.Location{Latitude: 48.8566, Longitude: 2.3522}},
	{"Nicosia", models.Location{Latitude: 35.1856, Longitude: 33.3823}},
	{"Tokyo", models.Location{Latitude: 35.6762, Longitude: 139.6503}},
	{"Sydney", models.Location{Latitude: -33.8688, Longitude: 151.2093}},
	{"Bogotá", models.Location{Latitude: 4.7110, Longitude: -74.0721}},
}

func jitterLocation(base models.Location, meters float64) models.Location {
	north := (rand.Float64()*2 - 1) * meters
	east := (rand.Float64()*2 - 1) * meters
	return geo.Offset(base, north, east)
}

func siteByName(name string) (Site, bool) {
	for _, s := range sites {
		if s.Name == name {
			return s, true
		}
	}
	return Site{}, false
}

// Device is a phone walking around a site.
type Device struct {
	Base     models.Location
	Position models.Location
	// StepMeters is the largest move per tick.
	StepMeters float64
	// RadiusMeters bounds how far the device strays from Base.
	RadiusMeters float64
	// DenyRate is the chance a tick reports a permission denial instead of a fix.
	DenyRate float64
}

// step moves the device; a move that would leave the radius goes back to a
// point near the base instead.
func (d *Device) step() {
	next := jitterLocation(d.Position, d.StepMeters)
	if geo.DistanceMeters(d.Base, next) > d.RadiusMeters {
		next = jitterLocation(d.Base, d.StepMeters)
	}
	d.Position = next
}

func (d *Device) report() location.Report {
	if d.DenyRate > 0 && rand.Float64() < d.DenyRate {
		return location.Report{Error: "User denied Geolocation"}
	}
	lat, lon := d.Position.Latitude, d.Position.Longitude
	return location.Report{Latitude: &lat, Longitude: &lon}
}

// Publisher delivers reports to the service.
type Publisher interface {
	Publish(r location.Report) error
}

var authToken string

func authorizedPost(url string, contentType string, body *bytes.Buffer) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	return client.Do(req)
}

// HTTPPublisher posts reports to /api/location.
type HTTPPublisher struct {
	APIURL string
}

func (p HTTPPublisher) Publish(r location.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	resp, err := authorizedPost(p.APIURL+"/location", "application/json", bytes.NewBuffer(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}

// MQTTPublisher publishes reports on the location topic.
type MQTTPublisher struct {
	Client mqtt.Client
	Topic  string
}

func (p MQTTPublisher) Publish(r location.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	token := p.Client.Publish(p.Topic, 1, false, data)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("mqtt publish to %s timed out", p.Topic)
	}
	return token.Error()
}

// simulate reports the device position every interval until ctx is done.
// It returns the number of reports delivered.
func simulate(ctx context.Context, pub Publisher, d *Device, interval time.Duration) int {
	tick := time.NewTicker(interval)
	defer tick.Stop()

	sent := 0
	for {
		select {
		case <-ctx.Done():
			return sent
		case <-tick.C:
		}

		d.step()
		r := d.report()
		if err := pub.Publish(r); err != nil {
			log.WithError(err).Error("Failed to send location report")
			continue
		}
		sent++
		fields := log.Fields{"denied": r.Error != ""}
		if r.Latitude != nil {
			fields["lat"], fields["lon"] = *r.Latitude, *r.Longitude
			fields["from_base_m"] = geo.DistanceMeters(d.Base, d.Position)
		}
		log.WithFields(fields).Debug("Sent location report")
	}
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.WithField(key, v).Warn("Ignoring malformed value")
	}
	return def
}

func main() {
	authToken = os.Getenv("SIM_AUTH_TOKEN")

	apiURL := os.Getenv("API_BASE_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080/api"
	}

	interval := 2 * time.Second
	if v := os.Getenv("SIM_TICK_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			interval = time.Duration(n) * time.Second
		}
	}

	site := sites[rand.Intn(len(sites))]
	if name := os.Getenv("SIM_SITE"); name != "" {
		s, ok := siteByName(name)
		if !ok {
			log.WithField("site", name).Fatal("Unknown site")
		}
		site = s
	}
	if os.Getenv("SIM_BASE_LAT") != "" && os.Getenv("SIM_BASE_LON") != "" {
		site = Site{Name: "custom", Location: models.Location{
			Latitude:  envFloat("SIM_BASE_LAT", 0),
			Longitude: envFloat("SIM_BASE_LON", 0),
		}}
	}

	device := &Device{
		Base:         site.Location,
		Position:     site.Location,
		StepMeters:   envFloat("SIM_STEP_METERS", 5),
		RadiusMeters: envFloat("SIM_RADIUS_METERS", 40),
		DenyRate:     envFloat("SIM_DENY_RATE", 0),
	}

	var pub Publisher = HTTPPublisher{APIURL: apiURL}
	if broker := os.Getenv("SIM_MQTT_BROKER"); broker != "" {
		client, err := location.ConnectMQTT(broker, fmt.Sprintf("qr-attendance-sim-%d", rand.Intn(100000)))
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to MQTT broker")
		}
		defer client.Disconnect(250)
		topic := os.Getenv("SIM_MQTT_TOPIC")
		if topic == "" {
			topic = "attendance/location"
		}
		pub = MQTTPublisher{Client: client, Topic: topic}
	}

	log.WithFields(log.Fields{
		"site":     site.Name,
		"api_url":  apiURL,
		"interval": interval,
		"radius_m": device.RadiusMeters,
	}).Info("Starting device simulation")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	sent := simulate(ctx, pub, device, interval)
	log.WithField("reports", sent).Info("Device simulation stopped")
}
