package models

import "time"

// Message is one turn of rolling chat history.
type Message struct {
	Role      string    `json:"role"` // "user" or "bot"
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the per-session conversational state SessionStore owns
// exclusively (spec §3). MessageWindow is bounded to 2*k entries by the
// store, never by callers.
type Session struct {
	SessionID         string           `json:"session_id"`
	CreatedAt         time.Time        `json:"created_at"`
	LastActivity      time.Time        `json:"last_activity"`
	PrimaryCategory   Category         `json:"primary_category"`
	MessageWindow     []Message        `json:"message_window"`
	InteractionCount  int              `json:"interaction_count"`
	PerCategoryCounts map[Category]int `json:"per_category_counts"`
	TotalProcessingMs int64            `json:"total_processing_time_ms"`
}

// Stats projects a Session into the SessionStats shape returned by the
// session admin API and embedded in TurnResult.
func (s Session) Stats() SessionStats {
	counts := make(map[Category]int, len(s.PerCategoryCounts))
	for k, v := range s.PerCategoryCounts {
		counts[k] = v
	}
	return SessionStats{
		SessionID:         s.SessionID,
		CreatedAt:         s.CreatedAt,
		LastActivity:      s.LastActivity,
		PrimaryCategory:   s.PrimaryCategory,
		InteractionCount:  s.InteractionCount,
		PerCategoryCounts: counts,
		TotalProcessingMs: s.TotalProcessingMs,
	}
}

// SessionStats is the counters and metadata exposed by the session admin API.
type SessionStats struct {
	SessionID         string           `json:"session_id"`
	CreatedAt         time.Time        `json:"created_at"`
	LastActivity      time.Time        `json:"last_activity"`
	PrimaryCategory   Category         `json:"primary_category"`
	InteractionCount  int              `json:"interaction_count"`
	PerCategoryCounts map[Category]int `json:"per_category_counts"`
	TotalProcessingMs int64            `json:"total_processing_time_ms"`
}

// Turn is the per-request record decomposed into two MessageStore entries;
// it is not persisted as its own entity.
type Turn struct {
	SessionID          string    `json:"session_id"`
	Query              string    `json:"query"`
	ClassifiedCategory Category  `json:"classified_category"`
	RetrievedContext   string    `json:"retrieved_context,omitempty"`
	Response           string    `json:"response"`
	Timings            Timings   `json:"timings"`
	Flags              []string  `json:"flags,omitempty"`
}

// Timings breaks down per-stage latency for a turn.
type Timings struct {
	ClassifyMs   int64 `json:"classify_ms"`
	RetrieveMs   int64 `json:"retrieve_ms"`
	SynthesizeMs int64 `json:"synthesize_ms"`
}

// TurnResult is the orchestrator's response to handle_turn.
type TurnResult struct {
	Category          Category     `json:"category"`
	Response          string       `json:"response"`
	ContextUsed       bool         `json:"context_used"`
	ProcessingTimeMs  int64        `json:"processing_time_ms"`
	Breakdown         Timings      `json:"breakdown"`
	SessionStats      SessionStats `json:"session_stats"`
	Error             bool         `json:"error,omitempty"`
}
