package patients

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Details is the loaded display state for one record
type Details struct {
	Patient *Patient
	Visits  []Visit
}

// DetailFetcher issues read-through patient and visit-history fetches
// whenever the active medical-record identifier changes. Responses are
// matched against the identifier that is active when they land: a fetch
// for a record that has since been superseded is dropped, so the displayed
// details always belong to the newest identifier regardless of response
// arrival order.
type DetailFetcher struct {
	source RecordSource

	mu      sync.Mutex
	current string

	onLoaded func(mrn string, details Details)
	onError  func(mrn string, err error)
}

// NewDetailFetcher creates a DetailFetcher. onLoaded fires with the fetched
// details; onError with a failed fetch. Either may be nil.
func NewDetailFetcher(source RecordSource, onLoaded func(string, Details), onError func(string, error)) *DetailFetcher {
	return &DetailFetcher{
		source:   source,
		onLoaded: onLoaded,
		onError:  onError,
	}
}

// SetActive records the new active identifier and, when non-empty, kicks
// off the detail fetch. An empty identifier only invalidates in-flight
// fetches; a cleared Patient Context has nothing to display.
func (f *DetailFetcher) SetActive(ctx context.Context, mrn string) {
	f.mu.Lock()
	f.current = mrn
	f.mu.Unlock()

	if mrn == "" {
		return
	}

	go f.fetch(ctx, mrn)
}

func (f *DetailFetcher) fetch(ctx context.Context, mrn string) {
	patient, err := f.source.GetPatient(ctx, mrn)

	var visits []Visit
	if err == nil {
		visits, err = f.source.GetVisits(ctx, mrn)
	}

	f.mu.Lock()
	stale := f.current != mrn
	f.mu.Unlock()

	if stale {
		log.Debug().Str("mrn", mrn).Msg("dropping stale detail response")
		return
	}

	if err != nil {
		log.Warn().Err(err).Str("mrn", mrn).Msg("detail fetch failed")
		if f.onError != nil {
			f.onError(mrn, err)
		}
		return
	}

	if f.onLoaded != nil {
		f.onLoaded(mrn, Details{Patient: patient, Visits: visits})
	}
}
