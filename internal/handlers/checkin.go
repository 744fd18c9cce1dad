package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/qr-attendance/internal/checkin"
	"github.com/ukydev/qr-attendance/internal/location"
)

// Verifier is the check-in state machine exposed over HTTP.
type Verifier interface {
	Open() checkin.Snapshot
	Scan(ctx context.Context, text string) (checkin.Snapshot, error)
	Reset() checkin.Snapshot
	Snapshot() checkin.Snapshot
	Subscribe() (<-chan checkin.Snapshot, func())
}

// Generator produces attendance QR codes.
type Generator interface {
	Generate(ctx context.Context) (*checkin.Emission, error)
}

// ScanRequest carries the decoded text of a scanned QR code.
type ScanRequest struct {
	Data string `json:"data"`
}

type scanConflict struct {
	Error    string           `json:"error"`
	Snapshot checkin.Snapshot `json:"snapshot"`
}

// CheckinHandler serves the emitter and verifier roles.
type CheckinHandler struct {
	verifier Verifier
	emitter  Generator
	feed     *location.Feed
}

// NewCheckinHandler creates the handler. feed is nil when the device position
// is configured statically.
func NewCheckinHandler(verifier Verifier, emitter Generator, feed *location.Feed) *CheckinHandler {
	return &CheckinHandler{
		verifier: verifier,
		emitter:  emitter,
		feed:     feed,
	}
}

// Generate acquires the current location and returns a fresh QR code.
func (h *CheckinHandler) Generate(w http.ResponseWriter, r *http.Request) {
	emission, err := h.emitter.Generate(r.Context())
	if err != nil {
		h.generateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, emission)
}

// QRImage is Generate rendered as a bare PNG.
func (h *CheckinHandler) QRImage(w http.ResponseWriter, r *http.Request) {
	emission, err := h.emitter.Generate(r.Context())
	if err != nil {
		h.generateError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(emission.PNG)
}

func (h *CheckinHandler) generateError(w http.ResponseWriter, err error) {
	kind := checkin.Classify(err)
	log.WithError(err).WithField("error_kind", kind).Warn("Failed to generate QR code")
	if kind == checkin.KindLocationUnavailable {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	http.Error(w, "Failed to generate QR code", http.StatusInternalServerError)
}

// Open starts a new check-in cycle.
func (h *CheckinHandler) Open(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.verifier.Open())
}

// Scan evaluates scanned QR text. Outcomes, including rejected payloads and
// missing identity, are reported in the returned snapshot.
func (h *CheckinHandler) Scan(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var req ScanRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Data) == "" {
		http.Error(w, "data is required", http.StatusBadRequest)
		return
	}

	snap, err := h.verifier.Scan(r.Context(), req.Data)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, snap)
	case errors.Is(err, checkin.ErrNotScanning), errors.Is(err, checkin.ErrCycleSuperseded):
		writeJSON(w, http.StatusConflict, scanConflict{Error: err.Error(), Snapshot: snap})
	default:
		log.WithError(err).Warn("Scan abandoned")
		http.Error(w, "Scan abandoned", http.StatusRequestTimeout)
	}
}

// State returns the current snapshot.
func (h *CheckinHandler) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.verifier.Snapshot())
}

// Reset stops the scanner and clears the cycle.
func (h *CheckinHandler) Reset(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.verifier.Reset())
}

// ReportLocation accepts a fix (or a permission denial) from the device.
func (h *CheckinHandler) ReportLocation(w http.ResponseWriter, r *http.Request) {
	if h.feed == nil {
		http.Error(w, "Location is configured statically", http.StatusConflict)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var report location.Report
	if err := json.Unmarshal(body, &report); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if err := report.Apply(h.feed); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
