package analysis

import (
	"context"
	"time"

	"github.com/stupiduntilnot/meditalk/internal/db"
)

// Analyzer runs one conversational turn. *Service implements it.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (Result, error)
}

// Journaled runs req through a, recording analysis.started before the call
// and its outcome after. journal may be nil. Only metadata is recorded.
func Journaled(ctx context.Context, a Analyzer, journal *db.Journal, requestID, surface string, req Request) (Result, error) {
	imageBytes := 0
	if req.Image != nil {
		imageBytes = len(req.Image.Data)
	}
	startID := journal.Start(db.StartMeta{
		RequestID:  requestID,
		Surface:    surface,
		HasImage:   imageBytes > 0,
		ImageBytes: imageBytes,
		HistoryLen: len(req.History),
	})

	start := time.Now()
	result, err := a.Analyze(ctx, req)
	out := db.Outcome{RequestID: requestID, LatencyMS: time.Since(start).Milliseconds()}
	if err != nil {
		kind := KindOf(err)
		if kind == "" {
			kind = KindBackend
		}
		out.ErrorKind = string(kind)
	} else {
		out.InputTokens = result.Usage.InputTokens
		out.OutputTokens = result.Usage.OutputTokens
		out.HistoryLen = len(result.History)
	}
	journal.Finish(startID, out)
	return result, err
}
