package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/qr-attendance/internal/models"
)

var ErrSubmissionFailed = errors.New("attendance submission failed")

// Client posts attendance records to the attendance endpoint. It makes one
// attempt per call and never retries.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

// NewClient creates an attendance endpoint client. token is optional and sent
// as a bearer token when set.
func NewClient(endpoint, token string, timeout time.Duration) *Client {
	return &Client{
		endpoint:   endpoint,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Submit posts the record and returns the endpoint's acknowledgement.
func (c *Client) Submit(ctx context.Context, record models.AttendanceRecord) (*models.AttendanceResponse, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal attendance record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrSubmissionFailed, err)
	}

	var ack models.AttendanceResponse
	decodeErr := json.Unmarshal(body, &ack)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if decodeErr == nil && ack.Message != "" {
			return &ack, fmt.Errorf("%w: status %d: %s", ErrSubmissionFailed, resp.StatusCode, ack.Message)
		}
		return nil, fmt.Errorf("%w: status %d", ErrSubmissionFailed, resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: invalid response: %v", ErrSubmissionFailed, decodeErr)
	}

	log.WithFields(log.Fields{
		"user_id": record.UserID,
		"status":  resp.Status,
		"success": ack.Success,
	}).Info("Submitted attendance")

	return &ack, nil
}
