package patients

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dtcare/consult/internal/exchange"
)

// ResumeClient is the slice of the exchange client the resolver needs
type ResumeClient interface {
	Resume(ctx context.Context, sessionID string, selectedMRN string) (*exchange.TurnResult, error)
}

// Resolver turns a clinician's pick among candidate patients into a
// continuation of the originating session. It does not own the active
// Patient Context; the follow-up Turn Result flows through the normal
// routing path and updates the context there.
type Resolver struct {
	client     ResumeClient
	onSelected func(mrn string)
}

// NewResolver creates a Resolver. onSelected is a one-way notification to
// the orchestrator that a record was chosen; it may be nil.
func NewResolver(client ResumeClient, onSelected func(mrn string)) *Resolver {
	return &Resolver{
		client:     client,
		onSelected: onSelected,
	}
}

// Resolve notifies the orchestrator of the chosen record and resumes the
// originating session with it. The returned Turn Result always carries the
// origin session id, so a failed resolution still shows up in context in
// the feed.
func (r *Resolver) Resolve(ctx context.Context, originSessionID string, mrn string) exchange.TurnResult {
	if r.onSelected != nil {
		r.onSelected(mrn)
	}

	result, err := r.client.Resume(ctx, originSessionID, mrn)
	if err != nil {
		log.Warn().Err(err).Str("session_id", originSessionID).Str("mrn", mrn).Msg("resume failed")
		return exchange.ErrorTurn(err, originSessionID)
	}

	followup := *result
	followup.SessionID = originSessionID
	return followup
}
