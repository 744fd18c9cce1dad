package location

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/qr-attendance/internal/models"
)

// Report is a fix (or a denial) as sent by a device.
type Report struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Error     string   `json:"error,omitempty"`
}

// Apply hands the report to the feed.
func (r Report) Apply(f *Feed) error {
	if r.Error != "" {
		f.Deny(r.Error)
		return nil
	}
	if r.Latitude == nil || r.Longitude == nil {
		return fmt.Errorf("report needs latitude and longitude")
	}
	return f.Report(models.Location{Latitude: *r.Latitude, Longitude: *r.Longitude})
}

// ConnectMQTT connects to an MQTT broker.
func ConnectMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect error: %w", err)
	}
	return client, nil
}

// SubscribeMQTT feeds every report published on topic into f.
func SubscribeMQTT(client mqtt.Client, topic string, f *Feed) error {
	token := client.Subscribe(topic, 1, MessageHandler(f))
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", topic, err)
	}
	log.WithField("topic", topic).Info("Subscribed to location reports")
	return nil
}

// MessageHandler decodes MQTT messages into feed reports.
func MessageHandler(f *Feed) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		var r Report
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			log.WithError(err).WithField("topic", msg.Topic()).Warn("Discarding malformed location report")
			return
		}
		if err := r.Apply(f); err != nil {
			log.WithError(err).WithField("topic", msg.Topic()).Warn("Discarding location report")
		}
	}
}
