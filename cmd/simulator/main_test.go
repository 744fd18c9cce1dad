package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ukydev/qr-attendance/internal/geo"
	"github.com/ukydev/qr-attendance/internal/location"
	"github.com/ukydev/qr-attendance/internal/models"
)

func TestJitterLocation(t *testing.T) {
	base := models.Location{Latitude: 51.5074, Longitude: -0.1278}
	for i := 0; i < 100; i++ {
		loc := jitterLocation(base, 10)
		// corner of the 10 m box is ~14.2 m away
		if d := geo.DistanceMeters(base, loc); d > 14.5 {
			t.Fatalf("jittered point %v is %.1f m from base", loc, d)
		}
	}
}

func TestSiteByName(t *testing.T) {
	s, ok := siteByName("New Delhi")
	if !ok {
		t.Fatal("expected New Delhi to be a known site")
	}
	if s.Location.Latitude != 28.7041 {
		t.Errorf("unexpected latitude %f", s.Location.Latitude)
	}
	if _, ok := siteByName("Atlantis"); ok {
		t.Error("unexpected site Atlantis")
	}
}

func TestDeviceStep_StaysWithinRadius(t *testing.T) {
	base := sites[0].Location
	d := &Device{Base: base, Position: base, StepMeters: 8, RadiusMeters: 20}
	for i := 0; i < 500; i++ {
		d.step()
		if dist := geo.DistanceMeters(base, d.Position); dist > d.RadiusMeters {
			t.Fatalf("step %d: device %.1f m from base, radius %.0f", i, dist, d.RadiusMeters)
		}
	}
}

func TestDeviceReport(t *testing.T) {
	d := &Device{Position: models.Location{Latitude: 1, Longitude: 2}}
	r := d.report()
	if r.Error != "" || r.Latitude == nil || *r.Latitude != 1 || *r.Longitude != 2 {
		t.Errorf("unexpected report %+v", r)
	}

	d.DenyRate = 1
	r = d.report()
	if r.Error == "" || r.Latitude != nil {
		t.Errorf("expected a denial, got %+v", r)
	}
}

func TestHTTPPublisher_Success(t *testing.T) {
	var got location.Report
	var auth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/location" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("bad body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	authToken = "sim-token"
	defer func() { authToken = "" }()

	lat, lon := 28.7041, 77.1025
	if err := (HTTPPublisher{APIURL: ts.URL + "/api"}).Publish(location.Report{Latitude: &lat, Longitude: &lon}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Latitude == nil || *got.Latitude != lat {
		t.Errorf("latitude not delivered: %+v", got)
	}
	if auth != "Bearer sim-token" {
		t.Errorf("expected bearer token, got %q", auth)
	}
}

func TestHTTPPublisher_ServerResponseCodes(t *testing.T) {
	codes := []int{http.StatusBadRequest, http.StatusConflict, http.StatusInternalServerError}
	for _, code := range codes {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", code)
		}))
		err := (HTTPPublisher{APIURL: ts.URL}).Publish(location.Report{Error: "denied"})
		ts.Close()
		if err == nil {
			t.Errorf("expected error for status %d", code)
		}
	}
}

func TestHTTPPublisher_NetworkError(t *testing.T) {
	err := (HTTPPublisher{APIURL: "http://127.0.0.1:1"}).Publish(location.Report{Error: "denied"})
	if err == nil {
		t.Error("expected network error")
	}
}

type recordingPublisher struct {
	mu      sync.Mutex
	reports []location.Report
	fail    bool
}

func (p *recordingPublisher) Publish(r location.Report) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("offline")
	}
	p.reports = append(p.reports, r)
	return nil
}

func TestSimulate_WithTimeout(t *testing.T) {
	pub := &recordingPublisher{}
	base := sites[2].Location
	d := &Device{Base: base, Position: base, StepMeters: 5, RadiusMeters: 40}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	sent := simulate(ctx, pub, d, 10*time.Millisecond)

	if sent == 0 {
		t.Fatal("expected some reports to be sent")
	}
	if sent != len(pub.reports) {
		t.Errorf("sent %d but publisher saw %d", sent, len(pub.reports))
	}
	for _, r := range pub.reports {
		p := models.Location{Latitude: *r.Latitude, Longitude: *r.Longitude}
		if geo.DistanceMeters(base, p) > d.RadiusMeters {
			t.Errorf("report %v outside radius", p)
		}
	}
}

func TestSimulate_PublishErrors(t *testing.T) {
	pub := &recordingPublisher{fail: true}
	d := &Device{Base: sites[0].Location, Position: sites[0].Location, StepMeters: 5, RadiusMeters: 40}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if sent := simulate(ctx, pub, d, 5*time.Millisecond); sent != 0 {
		t.Errorf("expected no delivered reports, got %d", sent)
	}
}

func TestEnvFloat(t *testing.T) {
	t.Setenv("SIM_TEST_FLOAT", "12.5")
	if v := envFloat("SIM_TEST_FLOAT", 1); v != 12.5 {
		t.Errorf("expected 12.5, got %f", v)
	}
	t.Setenv("SIM_TEST_FLOAT", "abc")
	if v := envFloat("SIM_TEST_FLOAT", 1); v != 1 {
		t.Errorf("expected default, got %f", v)
	}
	if v := envFloat("SIM_TEST_UNSET", 3); v != 3 {
		t.Errorf("expected default, got %f", v)
	}
}
