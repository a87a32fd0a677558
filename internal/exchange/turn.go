package exchange

import "encoding/json"

// TurnResult is the outcome of one request/response exchange with the
// assistant backend. Field names follow the backend's wire contract.
type TurnResult struct {
	// Text is the transcription or answer body. Always present; error
	// turns carry the failure message here.
	Text string `json:"text"`

	// URL optionally references a playable audio artifact, relative to
	// the backend base address
	URL string `json:"url,omitempty"`

	// TranscribeTime is the backend-reported transcription latency
	TranscribeTime float64 `json:"transcribe_time,omitempty"`

	// Question is the label shown for the clinician's side of the turn
	Question string `json:"question,omitempty"`

	// Detailed optionally carries candidate-patient descriptors. The
	// backend sometimes serializes it as a JSON-encoded string, so it is
	// kept raw here; see Candidates.
	Detailed json.RawMessage `json:"detailed,omitempty"`

	// ResponseType is "report" for multi-speaker session reports,
	// "error" for locally surfaced failures, "default" or unset otherwise
	ResponseType string `json:"response_type,omitempty"`

	// SpeakerSegments is the diarized breakdown of a session report
	SpeakerSegments []SpeakerSegment `json:"speaker_segments,omitempty"`

	// SessionID correlates turns belonging to one backend reasoning
	// continuation
	SessionID string `json:"session_id,omitempty"`

	// Query, when present and non-empty, signals a structured SQL-style
	// patient lookup occurred
	Query string `json:"query,omitempty"`

	// RAGAnswer, when present, signals a free-text knowledge answer
	RAGAnswer string `json:"rag_answer,omitempty"`

	// SelectedMRN is the record the backend believes is now active
	SelectedMRN string `json:"selected_mrn,omitempty"`
}

// Candidate describes one patient option offered for disambiguation
type Candidate struct {
	MRN  string `json:"mrn"`
	Name string `json:"name"`
	DOB  string `json:"dob"`
}

// SpeakerSegment is one diarized span of a session recording
type SpeakerSegment struct {
	Speaker   string  `json:"speaker"`
	StartTime string  `json:"start_time"`
	EndTime   string  `json:"end_time"`
	Duration  float64 `json:"duration"`
	Text      string  `json:"text"`
}

// Candidates decodes the raw detailed payload into candidate descriptors.
// The payload may be a JSON array or a JSON-encoded string wrapping one.
// A malformed payload yields no candidates and no error; the raw bytes in
// Detailed are never modified.
func (r *TurnResult) Candidates() []Candidate {
	if len(r.Detailed) == 0 {
		return nil
	}

	var candidates []Candidate
	if err := json.Unmarshal(r.Detailed, &candidates); err == nil {
		return candidates
	}

	// Second chance: the array arrives string-encoded
	var wrapped string
	if err := json.Unmarshal(r.Detailed, &wrapped); err == nil {
		if err := json.Unmarshal([]byte(wrapped), &candidates); err == nil {
			return candidates
		}
	}

	return nil
}

// ErrorTurn builds the Turn Result used to surface a failed operation in
// the feed. The origin session id is kept so the failure shows up in
// context.
func ErrorTurn(err error, sessionID string) TurnResult {
	return TurnResult{
		Text:         err.Error(),
		ResponseType: "error",
		SessionID:    sessionID,
	}
}
