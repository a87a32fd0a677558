package patients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtcare/consult/internal/exchange"
)

func TestGetPatient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/patient/MRN123", r.URL.Path)
		json.NewEncoder(w).Encode(Patient{MRN: "MRN123", Name: "John Doe", DOB: "1970-01-01"})
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	patient, err := client.GetPatient(context.Background(), "MRN123")
	require.NoError(t, err)
	assert.Equal(t, "John Doe", patient.Name)
}

func TestGetVisitsOrdered(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/visits/MRN123", r.URL.Path)
		json.NewEncoder(w).Encode([]Visit{
			{Date: "2025-01-05", Type: "checkup", Notes: "routine"},
			{Date: "2025-03-12", Type: "followup", Notes: "bloodwork"},
		})
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	visits, err := client.GetVisits(context.Background(), "MRN123")
	require.NoError(t, err)
	require.Len(t, visits, 2)
	assert.Equal(t, "2025-01-05", visits[0].Date)
}

func TestGetPatientHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.GetPatient(context.Background(), "nope")
	assert.Error(t, err)
}

// fakeResume scripts the exchange resume call
type fakeResume struct {
	result *exchange.TurnResult
	err    error

	gotSessionID string
	gotMRN       string
}

func (f *fakeResume) Resume(ctx context.Context, sessionID string, selectedMRN string) (*exchange.TurnResult, error) {
	f.gotSessionID = sessionID
	f.gotMRN = selectedMRN
	return f.result, f.err
}

func TestResolveDelegatesAndTagsSession(t *testing.T) {
	fake := &fakeResume{result: &exchange.TurnResult{Text: "continued"}}

	var notified string
	r := NewResolver(fake, func(mrn string) { notified = mrn })

	result := r.Resolve(context.Background(), "s1", "MRN123")

	assert.Equal(t, "s1", fake.gotSessionID, "resume must reuse the origin session id")
	assert.Equal(t, "MRN123", fake.gotMRN)
	assert.Equal(t, "MRN123", notified)
	assert.Equal(t, "s1", result.SessionID, "follow-up must carry the origin session id")
	assert.Equal(t, "continued", result.Text)
}

func TestResolveFailureSurfacesErrorTurn(t *testing.T) {
	fake := &fakeResume{err: fmt.Errorf("backend unreachable")}
	r := NewResolver(fake, nil)

	result := r.Resolve(context.Background(), "s1", "MRN123")

	assert.Contains(t, result.Text, "backend unreachable")
	assert.Equal(t, "s1", result.SessionID, "error turn must be tagged with the origin session id")
}

// blockingSource lets the test decide when each record's fetch completes
type blockingSource struct {
	mu      sync.Mutex
	release map[string]chan struct{}
}

func newBlockingSource() *blockingSource {
	return &blockingSource{release: make(map[string]chan struct{})}
}

func (b *blockingSource) gate(mrn string) chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.release[mrn]; !ok {
		b.release[mrn] = make(chan struct{})
	}
	return b.release[mrn]
}

func (b *blockingSource) GetPatient(ctx context.Context, lookup string) (*Patient, error) {
	<-b.gate(lookup)
	return &Patient{MRN: lookup, Name: "patient-" + lookup}, nil
}

func (b *blockingSource) GetVisits(ctx context.Context, mrn string) ([]Visit, error) {
	return []Visit{{Date: "2025-01-01", Type: "checkup"}}, nil
}

func TestStaleDetailResponseIsDropped(t *testing.T) {
	source := newBlockingSource()

	var mu sync.Mutex
	loaded := []string{}
	done := make(chan string, 4)

	f := NewDetailFetcher(source, func(mrn string, d Details) {
		mu.Lock()
		loaded = append(loaded, mrn)
		mu.Unlock()
		done <- mrn
	}, nil)

	ctx := context.Background()

	// A requested first, B supersedes it before A's fetch resolves
	f.SetActive(ctx, "A")
	f.SetActive(ctx, "B")

	close(source.gate("B"))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for B")
	}

	close(source.gate("A")) // A resolves after B became active

	// Give the dropped fetch time to (incorrectly) deliver
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"B"}, loaded, "A's late response must not overwrite B")
}

func TestClearingContextInvalidatesInFlightFetch(t *testing.T) {
	source := newBlockingSource()

	loaded := make(chan string, 1)
	f := NewDetailFetcher(source, func(mrn string, d Details) { loaded <- mrn }, nil)

	ctx := context.Background()
	f.SetActive(ctx, "A")
	f.SetActive(ctx, "")

	close(source.gate("A"))
	select {
	case mrn := <-loaded:
		t.Fatalf("fetch for %s should have been dropped", mrn)
	case <-time.After(50 * time.Millisecond):
	}
}
