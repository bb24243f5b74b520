package db

import (
	"database/sql"
	"os"

	"github.com/rs/zerolog"
)

// StartMeta describes an analysis request. It never carries conversation
// text or image bytes.
type StartMeta struct {
	RequestID  string
	Surface    string
	HasImage   bool
	ImageBytes int
	HistoryLen int
}

// Outcome describes how an analysis ended. An empty ErrorKind means success.
type Outcome struct {
	RequestID    string
	ErrorKind    string
	LatencyMS    int64
	InputTokens  int
	OutputTokens int
	HistoryLen   int
}

// Journal records analysis lifecycle events under one process.started
// root. A nil *Journal is valid and records nothing. Write failures are
// logged and never returned.
type Journal struct {
	db     *sql.DB
	root   int64
	logger zerolog.Logger
}

// OpenJournal logs process.started for role and returns a journal rooted at it.
func OpenJournal(database *sql.DB, role string, payload map[string]any, logger zerolog.Logger) (*Journal, error) {
	p := map[string]any{"role": role, "pid": os.Getpid()}
	for k, v := range payload {
		p[k] = v
	}
	root, err := LogEvent(database, nil, EventProcessStarted, p)
	if err != nil {
		return nil, err
	}
	return &Journal{db: database, root: root, logger: logger}, nil
}

// Root returns the id of the process.started event.
func (j *Journal) Root() int64 {
	if j == nil {
		return 0
	}
	return j.root
}

// Start records analysis.started and returns its id, or 0 when nothing was written.
func (j *Journal) Start(meta StartMeta) int64 {
	if j == nil {
		return 0
	}
	id, err := LogEvent(j.db, &j.root, EventAnalysisStarted, map[string]any{
		"request_id":  meta.RequestID,
		"surface":     meta.Surface,
		"has_image":   meta.HasImage,
		"image_bytes": meta.ImageBytes,
		"history_len": meta.HistoryLen,
	})
	if err != nil {
		j.logger.Warn().Err(err).Str("request_id", meta.RequestID).Msg("failed to log analysis.started")
		return 0
	}
	return id
}

// Finish records analysis.completed or analysis.failed under the start
// event, or under the root when startID is 0.
func (j *Journal) Finish(startID int64, out Outcome) {
	if j == nil {
		return
	}
	parent := startID
	if parent == 0 {
		parent = j.root
	}

	eventType := EventAnalysisCompleted
	payload := map[string]any{
		"request_id": out.RequestID,
		"latency_ms": out.LatencyMS,
	}
	if out.ErrorKind != "" {
		eventType = EventAnalysisFailed
		payload["error_kind"] = out.ErrorKind
	} else {
		payload["input_tokens"] = out.InputTokens
		payload["output_tokens"] = out.OutputTokens
		payload["history_len"] = out.HistoryLen
	}

	if _, err := LogEvent(j.db, &parent, eventType, payload); err != nil {
		j.logger.Warn().Err(err).Str("request_id", out.RequestID).Msgf("failed to log %s", eventType)
	}
}
