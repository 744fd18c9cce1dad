package checkin

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/qr-attendance/internal/geocode"
	"github.com/ukydev/qr-attendance/internal/location"
	"github.com/ukydev/qr-attendance/internal/models"
	"github.com/ukydev/qr-attendance/internal/payload"
)

// Emission is a generated attendance QR code.
type Emission struct {
	Location    models.Location  `json:"location"`
	Payload     models.QRPayload `json:"payload"`
	Text        string           `json:"text"`
	PNG         []byte           `json:"png"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// Emitter generates location QR codes.
type Emitter struct {
	locator  location.Provider
	geocoder geocode.Geocoder
	codec    *payload.Codec
	qrSize   int
	now      func() time.Time
}

// NewEmitter creates an emitter. geocoder may be nil, in which case no
// location name is embedded.
func NewEmitter(locator location.Provider, geocoder geocode.Geocoder, codec *payload.Codec, qrSize int) *Emitter {
	return &Emitter{
		locator:  locator,
		geocoder: geocoder,
		codec:    codec,
		qrSize:   qrSize,
		now:      time.Now,
	}
}

// Generate acquires a fresh location and encodes it. Every call starts over,
// so it doubles as "refresh location".
func (e *Emitter) Generate(ctx context.Context) (*Emission, error) {
	loc, err := e.locator.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	var name string
	if e.codec.IncludeLocationName && e.geocoder != nil {
		name = geocode.DisplayName(ctx, e.geocoder, loc.Latitude, loc.Longitude)
	}

	text, err := e.codec.Encode(loc, name)
	if err != nil {
		return nil, err
	}
	png, err := payload.RenderPNG(text, e.qrSize)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"lat":           loc.Latitude,
		"lon":           loc.Longitude,
		"location_name": name,
	}).Info("Generated attendance QR code")

	return &Emission{
		Location:    loc,
		Payload:     models.QRPayload{Lat: loc.Latitude, Lon: loc.Longitude, LocationName: name},
		Text:        text,
		PNG:         png,
		GeneratedAt: e.now(),
	}, nil
}
