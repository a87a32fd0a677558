package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Client performs single round-trip exchanges with the assistant backend.
// Nothing here retries; every failure is terminal for its turn and the
// caller decides how to surface it.
type Client struct {
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

// Config contains exchange client configuration
type Config struct {
	// BaseURL is the backend base address, resolved once at startup
	BaseURL string

	// Timeout bounds each round trip. Continuous-session audio can take
	// the backend a while to diarize, so this defaults generously.
	Timeout time.Duration

	// Now defaults to time.Now; tests pin it
	Now func() time.Time
}

// NewClient creates a new exchange client
func NewClient(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	if config.Timeout <= 0 {
		config.Timeout = 120 * time.Second
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		now: config.Now,
	}, nil
}

// SendAudio submits one finalized audio payload. isSessionRecording is
// forwarded verbatim so the backend can pick its segmentation strategy for
// continuous vs push-to-talk captures; the client does not interpret it.
func (c *Client) SendAudio(ctx context.Context, wav []byte, sessionID string, isSessionRecording bool) (*TurnResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("audio", "recorded.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to build audio part: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return nil, fmt.Errorf("failed to write audio payload: %w", err)
	}

	if err := c.writeCommonFields(writer, sessionID, isSessionRecording); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	return c.post(ctx, "/generate", writer.FormDataContentType(), body)
}

// SendText submits typed text under the same contract as SendAudio
func (c *Client) SendText(ctx context.Context, text string, sessionID string, isSessionRecording bool) (*TurnResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("text", text); err != nil {
		return nil, fmt.Errorf("failed to write text field: %w", err)
	}
	if err := c.writeCommonFields(writer, sessionID, isSessionRecording); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	return c.post(ctx, "/text", writer.FormDataContentType(), body)
}

// Resume continues a prior turn's reasoning once the clinician has
// disambiguated one of several candidate patients. It must reuse the session
// id of the turn that exposed the candidates.
func (c *Client) Resume(ctx context.Context, sessionID string, selectedMRN string) (*TurnResult, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("resume requires a session id")
	}

	payload, err := json.Marshal(map[string]string{
		"session_id":   sessionID,
		"selected_mrn": selectedMRN,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode resume payload: %w", err)
	}

	return c.post(ctx, "/resume-session", "application/json", bytes.NewReader(payload))
}

// FetchArtifact retrieves an audio artifact referenced by a Turn Result's
// url field, resolving relative references against the base address
func (c *Client) FetchArtifact(ctx context.Context, artifactURL string) ([]byte, error) {
	target := artifactURL
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = c.baseURL + "/" + strings.TrimLeft(artifactURL, "/")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create artifact request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("artifact request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("artifact HTTP error %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// writeCommonFields adds the fields every submission carries: a
// client-generated timestamp, the session-recording flag, and the optional
// correlation id
func (c *Client) writeCommonFields(writer *multipart.Writer, sessionID string, isSessionRecording bool) error {
	timestamp := strconv.FormatInt(c.now().UnixMilli(), 10)
	if err := writer.WriteField("timestamp", timestamp); err != nil {
		return fmt.Errorf("failed to write timestamp field: %w", err)
	}
	if err := writer.WriteField("is_session_recording", strconv.FormatBool(isSessionRecording)); err != nil {
		return fmt.Errorf("failed to write session flag: %w", err)
	}
	if sessionID != "" {
		if err := writer.WriteField("session_id", sessionID); err != nil {
			return fmt.Errorf("failed to write session id: %w", err)
		}
	}
	return nil
}

// post performs a single request and decodes the Turn Result
func (c *Client) post(ctx context.Context, path string, contentType string, body io.Reader) (*TurnResult, error) {
	requestID := uuid.NewString()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	start := c.now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(respBody))
	}

	var result TurnResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response JSON: %w", err)
	}

	log.Debug().
		Str("request_id", requestID).
		Str("path", path).
		Str("session_id", result.SessionID).
		Dur("elapsed", c.now().Sub(start)).
		Msg("exchange completed")

	return &result, nil
}
