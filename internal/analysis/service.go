package analysis

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	ctxpkg "github.com/stupiduntilnot/meditalk/internal/context"
	"github.com/stupiduntilnot/meditalk/internal/model"
)

// Request is one conversational turn submitted by a caller.
type Request struct {
	Text    string
	Image   *ctxpkg.Image
	History []ctxpkg.Turn
}

// Usage is the token accounting reported by the backend, zero when unknown.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Result of a successful Analyze call. History is a new slice; the
// request's History is never modified.
type Result struct {
	Reply   string
	History []ctxpkg.Turn
	Usage   Usage
}

// Service is the session orchestrator. It holds no per-conversation state
// and is safe for concurrent use.
type Service struct {
	backend   model.Completer
	assembler *ctxpkg.Assembler
	logger    zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithAssembler replaces the default medical assembler. A nil assembler is
// ignored.
func WithAssembler(a *ctxpkg.Assembler) Option {
	return func(s *Service) {
		if a != nil {
			s.assembler = a
		}
	}
}

// WithLogger sets the logger used when the request context carries none.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService returns a Service that sends turns to backend.
func NewService(backend model.Completer, opts ...Option) *Service {
	s := &Service{
		backend:   backend,
		assembler: ctxpkg.DefaultAssembler(),
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Analyze sends one turn to the backend and returns the reply with the
// history advanced by exactly two turns. On error the history is not
// advanced and the returned error is always an *Error.
func (s *Service) Analyze(ctx context.Context, req Request) (Result, error) {
	logger := s.loggerFor(ctx)

	if checker, ok := s.backend.(model.CredentialChecker); ok {
		if err := checker.CheckCredential(); err != nil {
			e := classify(err)
			logger.Warn().Str("kind", string(e.Kind)).Msg("analysis rejected")
			return Result{}, e
		}
	}
	if strings.TrimSpace(req.Text) == "" {
		return Result{}, validationError(MsgEmptyPrompt, nil)
	}
	if err := ctxpkg.ValidateHistory(req.History); err != nil {
		return Result{}, validationError(err.Error(), err)
	}

	turn := ctxpkg.EncodeTurn(req.Text, req.Image)
	messages := s.assembler.Assemble(req.History, turn)
	logger.Debug().
		Int("messages", len(messages)).
		Int("history", len(req.History)).
		Bool("image", turn.HasImage()).
		Msg("analysis request assembled")

	start := time.Now()
	completion, err := s.backend.Complete(ctx, messages)
	latency := time.Since(start)
	if err != nil {
		e := classify(err)
		logger.Warn().
			Str("kind", string(e.Kind)).
			Err(err).
			Dur("latency", latency).
			Msg("analysis failed")
		return Result{}, e
	}

	reply := completion.Content
	if strings.TrimSpace(reply) == "" {
		reply = model.FallbackReply
	}

	logger.Info().
		Int("reply_chars", len([]rune(reply))).
		Int("input_tokens", completion.InputTokens).
		Int("output_tokens", completion.OutputTokens).
		Dur("latency", latency).
		Msg("analysis completed")

	return Result{
		Reply:   reply,
		History: ctxpkg.AppendExchange(req.History, req.Text, reply),
		Usage: Usage{
			InputTokens:  completion.InputTokens,
			OutputTokens: completion.OutputTokens,
		},
	}, nil
}

func (s *Service) loggerFor(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &s.logger
}
