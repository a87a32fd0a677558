package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow() time.Time {
	return time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
}

func TestSendAudioMultipartContract(t *testing.T) {
	var gotPath string
	var gotAudio []byte
	var gotFilename, gotTimestamp, gotSessionFlag, gotSessionID string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, r.ParseMultipartForm(10<<20))

		file, header, err := r.FormFile("audio")
		require.NoError(t, err)
		defer file.Close()
		gotFilename = header.Filename
		gotAudio, _ = io.ReadAll(file)

		gotTimestamp = r.FormValue("timestamp")
		gotSessionFlag = r.FormValue("is_session_recording")
		gotSessionID = r.FormValue("session_id")

		json.NewEncoder(w).Encode(TurnResult{Text: "hello", SessionID: "s1"})
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL, Now: fixedNow})
	require.NoError(t, err)

	result, err := client.SendAudio(context.Background(), []byte("RIFFdata"), "s1", true)
	require.NoError(t, err)

	assert.Equal(t, "/generate", gotPath)
	assert.Equal(t, "recorded.wav", gotFilename)
	assert.Equal(t, []byte("RIFFdata"), gotAudio)
	assert.Equal(t, "true", gotSessionFlag)
	assert.Equal(t, "s1", gotSessionID)
	assert.Equal(t, "1748768400000", gotTimestamp) // fixedNow in ms
	assert.Equal(t, "hello", result.Text)
	assert.Equal(t, "s1", result.SessionID)
}

func TestSendAudioOmitsEmptySessionID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(10<<20))
		_, hasSession := r.MultipartForm.Value["session_id"]
		assert.False(t, hasSession, "session_id must be omitted when empty")
		json.NewEncoder(w).Encode(TurnResult{Text: "ok"})
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.SendAudio(context.Background(), []byte("x"), "", false)
	require.NoError(t, err)
}

func TestSendTextContract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/text", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(10<<20))
		assert.Equal(t, "show me patient history", r.FormValue("text"))
		assert.Equal(t, "false", r.FormValue("is_session_recording"))
		json.NewEncoder(w).Encode(TurnResult{
			Text:        "found",
			Query:       "SELECT * FROM patients",
			SelectedMRN: "MRN123",
			SessionID:   "s1",
		})
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	result, err := client.SendText(context.Background(), "show me patient history", "", false)
	require.NoError(t, err)
	assert.Equal(t, "MRN123", result.SelectedMRN)
	assert.Equal(t, "SELECT * FROM patients", result.Query)
}

func TestResumeContract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/resume-session", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "s1", payload["session_id"])
		assert.Equal(t, "MRN123", payload["selected_mrn"])

		json.NewEncoder(w).Encode(TurnResult{Text: "resumed", SessionID: "s1"})
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	result, err := client.Resume(context.Background(), "s1", "MRN123")
	require.NoError(t, err)
	assert.Equal(t, "resumed", result.Text)
}

func TestResumeRequiresSessionID(t *testing.T) {
	client, err := NewClient(Config{BaseURL: "http://localhost:1"})
	require.NoError(t, err)

	_, err = client.Resume(context.Background(), "", "MRN123")
	assert.Error(t, err)
}

func TestPostHTTPErrorIsTerminal(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "backend down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.SendText(context.Background(), "hi", "", false)
	assert.Error(t, err)
	assert.Equal(t, 1, calls, "failure must not be retried")
}

func TestFetchArtifactResolvesRelativeURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/turn-1.wav", r.URL.Path)
		w.Write([]byte("wav-bytes"))
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	data, err := client.FetchArtifact(context.Background(), "audio/turn-1.wav")
	require.NoError(t, err)
	assert.Equal(t, []byte("wav-bytes"), data)
}

func TestLatencyLogUsesInjectedClock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(TurnResult{Text: "ok"})
	}))
	defer srv.Close()

	// With a pinned clock the round trip takes zero logical time; a wall
	// clock creeping into the measurement would log a nonzero duration
	client, err := NewClient(Config{BaseURL: srv.URL, Now: fixedNow})
	require.NoError(t, err)

	var buf bytes.Buffer
	prevLogger := log.Logger
	prevLevel := zerolog.GlobalLevel()
	log.Logger = zerolog.New(&buf)
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	defer func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	}()

	_, err = client.SendText(context.Background(), "hi", "", false)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), `"elapsed":0`)
}

func TestCandidatesDecodesArray(t *testing.T) {
	r := TurnResult{Detailed: json.RawMessage(`[{"mrn":"M1","name":"John Doe","dob":"1970-01-01"}]`)}

	candidates := r.Candidates()
	require.Len(t, candidates, 1)
	assert.Equal(t, "M1", candidates[0].MRN)
	assert.Equal(t, "John Doe", candidates[0].Name)
}

func TestCandidatesDecodesStringWrappedArray(t *testing.T) {
	wrapped, _ := json.Marshal(`[{"mrn":"M2","name":"Jane Doe","dob":"1980-02-02"}]`)
	r := TurnResult{Detailed: json.RawMessage(wrapped)}

	candidates := r.Candidates()
	require.Len(t, candidates, 1)
	assert.Equal(t, "M2", candidates[0].MRN)
}

func TestCandidatesMalformedDegradesToNone(t *testing.T) {
	raw := json.RawMessage(`"not valid json"`)
	r := TurnResult{Detailed: raw}

	assert.Nil(t, r.Candidates())
	// Raw payload is left exactly as received
	assert.Equal(t, raw, r.Detailed)
}

func TestCandidatesEmpty(t *testing.T) {
	r := TurnResult{}
	assert.Nil(t, r.Candidates())
}
