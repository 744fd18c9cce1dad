package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/skip2/go-qrcode"
	"github.com/ukydev/qr-attendance/internal/models"
)

var ErrInvalidPayload = errors.New("invalid payload")

// Codec encodes and decodes the QR payload text.
type Codec struct {
	IncludeLocationName bool
}

// NewCodec creates a codec. Location names are embedded when includeName is true.
func NewCodec(includeName bool) *Codec {
	return &Codec{IncludeLocationName: includeName}
}

// Encode produces the canonical payload text for a point.
func (c *Codec) Encode(point models.Location, name string) (string, error) {
	if !point.Valid() {
		return "", fmt.Errorf("%w: coordinates out of range", ErrInvalidPayload)
	}
	p := models.QRPayload{Lat: point.Latitude, Lon: point.Longitude}
	if c.IncludeLocationName {
		p.LocationName = name
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}
	return string(data), nil
}

// Decode parses scanned text into a payload. Latitude and longitude keys are
// matched case-insensitively and may hold numbers or numeric strings. Unknown
// fields are ignored.
func (c *Codec) Decode(text string) (*models.QRPayload, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: not an object", ErrInvalidPayload)
	}

	lat, err := coordinate(fields, "Lat")
	if err != nil {
		return nil, err
	}
	lon, err := coordinate(fields, "Lon")
	if err != nil {
		return nil, err
	}
	if !models.ValidCoordinates(lat, lon) {
		return nil, fmt.Errorf("%w: coordinates out of range", ErrInvalidPayload)
	}

	p := &models.QRPayload{Lat: lat, Lon: lon}
	if raw, ok := lookup(fields, "LocationName"); ok {
		var name string
		if json.Unmarshal(raw, &name) == nil {
			p.LocationName = strings.TrimSpace(name)
		}
	}
	return p, nil
}

func lookup(fields map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	if raw, ok := fields[key]; ok {
		return raw, true
	}
	if raw, ok := fields[strings.ToLower(key)]; ok {
		return raw, true
	}
	for k, raw := range fields {
		if strings.EqualFold(k, key) {
			return raw, true
		}
	}
	return nil, false
}

func coordinate(fields map[string]json.RawMessage, key string) (float64, error) {
	raw, ok := lookup(fields, key)
	if !ok {
		return 0, fmt.Errorf("%w: missing %s", ErrInvalidPayload, key)
	}

	var v interface{}
	d := json.NewDecoder(bytes.NewReader(raw))
	d.UseNumber()
	if err := d.Decode(&v); err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, key, err)
	}

	var s string
	switch t := v.(type) {
	case json.Number:
		s = t.String()
	case string:
		s = strings.TrimSpace(t)
	default:
		return 0, fmt.Errorf("%w: %s is not numeric", ErrInvalidPayload, key)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s is not numeric", ErrInvalidPayload, key)
	}
	return f, nil
}

// RenderPNG renders payload text as a QR code image.
func RenderPNG(text string, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(text, qrcode.High, size)
	if err != nil {
		return nil, fmt.Errorf("failed to render qr code: %w", err)
	}
	return png, nil
}
