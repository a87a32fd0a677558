package feed

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dtcare/consult/internal/exchange"
)

// Classification is the derived routing category of a Turn Result. It
// decides what downstream state the turn transitions into.
type Classification string

const (
	// ClassSQLLookup means a structured patient lookup identified a record
	ClassSQLLookup Classification = "sql-lookup"

	// ClassRAGAnswer means a free-text knowledge answer came back
	ClassRAGAnswer Classification = "rag-answer"

	// ClassReport means a diarized multi-speaker session report came back
	ClassReport Classification = "report"

	// ClassPlain is an unclassified transcription turn with no routing
	// side effect
	ClassPlain Classification = "plain"
)

// Entry is one Turn Result as it sits in the feed, with derived state
type Entry struct {
	exchange.TurnResult

	// Index is the entry's position in the feed, assigned at append
	Index int

	// Classification is the routing category assigned at append
	Classification Classification

	// Candidates is the decoded candidate-patient list, empty when the
	// detailed payload was absent or malformed
	Candidates []exchange.Candidate

	// ReceivedAt is when the entry was appended
	ReceivedAt time.Time
}

// Interrupter receives the heads-up that a new entry is about to land so
// current playback can be stopped and autoplay armed. Implemented by
// playback.Coordinator.
type Interrupter interface {
	Interrupt(incomingIndex int)
}

// Store is the append-only log of Turn Results. It is the single writer of
// the active Patient Context; everything else reads. Entries are appended
// in exchange-completion order and never reordered or deleted.
type Store struct {
	mu          sync.RWMutex
	entries     []Entry
	activeMRN   string
	sessionID   string
	interrupter Interrupter
	now         func() time.Time

	onContextChange func(mrn string)
}

// NewStore creates a Store. interrupter may be nil in tests that don't
// exercise playback.
func NewStore(interrupter Interrupter) *Store {
	return &Store{
		interrupter: interrupter,
		now:         time.Now,
	}
}

// OnContextChange registers the single observer notified when the active
// MRN changes. By the time it fires, both the new context and the entry
// that caused it are visible.
func (s *Store) OnContextChange(fn func(mrn string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onContextChange = fn
}

// Classify derives the routing category of a Turn Result. Precedence
// encodes that structured identification beats free-text answers, and both
// beat unclassified chatter; first match wins.
func Classify(r exchange.TurnResult) Classification {
	if r.SessionID != "" {
		if strings.TrimSpace(r.Query) != "" && r.SelectedMRN != "" {
			return ClassSQLLookup
		}
		if r.RAGAnswer != "" {
			return ClassRAGAnswer
		}
		if r.ResponseType == "report" {
			return ClassReport
		}
	}
	return ClassPlain
}

// Append classifies the Turn Result, applies its Patient Context side
// effect, interrupts playback, and inserts the entry, in that order.
// Context mutation and insertion happen under one lock so no reader can
// observe the new context without the corresponding entry.
func (s *Store) Append(r exchange.TurnResult) Entry {
	classification := Classify(r)

	s.mu.Lock()
	index := len(s.entries)
	s.mu.Unlock()

	// Playback interruption before insertion; the coordinator arms
	// autoplay for the incoming index based on the active surface
	if s.interrupter != nil {
		s.interrupter.Interrupt(index)
	}

	s.mu.Lock()

	if r.SessionID != "" {
		s.sessionID = r.SessionID
	}

	previousMRN := s.activeMRN
	switch classification {
	case ClassSQLLookup:
		s.activeMRN = r.SelectedMRN
	case ClassRAGAnswer, ClassReport:
		s.activeMRN = ""
	case ClassPlain:
		// No routing side effect
	}
	contextChanged := s.activeMRN != previousMRN
	newMRN := s.activeMRN

	entry := Entry{
		TurnResult:     r,
		Index:          index,
		Classification: classification,
		Candidates:     r.Candidates(),
		ReceivedAt:     s.now(),
	}
	s.entries = append(s.entries, entry)
	notify := s.onContextChange

	s.mu.Unlock()

	log.Debug().
		Int("index", index).
		Str("classification", string(classification)).
		Str("active_mrn", newMRN).
		Msg("turn appended")

	if contextChanged && notify != nil {
		notify(newMRN)
	}

	return entry
}

// Entries returns a snapshot of the feed in arrival order
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of feed entries
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// ActiveMRN returns the active Patient Context identifier, empty when no
// patient is in context
func (s *Store) ActiveMRN() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeMRN
}

// SessionID returns the most recent backend correlation id seen in the
// feed, empty before the first correlated turn
func (s *Store) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}
