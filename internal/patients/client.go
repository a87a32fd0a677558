package patients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Patient holds the display attributes of one medical record
type Patient struct {
	MRN   string `json:"mrn"`
	Name  string `json:"name"`
	DOB   string `json:"dob"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// Visit is one entry of a patient's visit history
type Visit struct {
	Date  string `json:"date"`
	Type  string `json:"type"`
	Notes string `json:"notes"`
}

// RecordSource provides read-through patient and visit lookups keyed by the
// medical-record identifier. Lookups are read-only and idempotent.
type RecordSource interface {
	GetPatient(ctx context.Context, lookup string) (*Patient, error)
	GetVisits(ctx context.Context, mrn string) ([]Visit, error)
}

// Client is the HTTP implementation of RecordSource
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Config contains patient client configuration
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// NewClient creates a new patient lookup client
func NewClient(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

// GetPatient fetches display attributes for a record
func (c *Client) GetPatient(ctx context.Context, lookup string) (*Patient, error) {
	var patient Patient
	if err := c.get(ctx, "/patient/"+url.PathEscape(lookup), &patient); err != nil {
		return nil, err
	}
	return &patient, nil
}

// GetVisits fetches the ordered visit history for a record
func (c *Client) GetVisits(ctx context.Context, mrn string) ([]Visit, error) {
	var visits []Visit
	if err := c.get(ctx, "/visits/"+url.PathEscape(mrn), &visits); err != nil {
		return nil, err
	}
	return visits, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response JSON: %w", err)
	}

	return nil
}
