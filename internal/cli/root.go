// Package cli implements the meditalk command tree using Cobra.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/stupiduntilnot/meditalk/internal/analysis"
	"github.com/stupiduntilnot/meditalk/internal/config"
	"github.com/stupiduntilnot/meditalk/internal/db"
	"github.com/stupiduntilnot/meditalk/internal/dummy"
	"github.com/stupiduntilnot/meditalk/internal/logging"
	"github.com/stupiduntilnot/meditalk/internal/model"
	"github.com/stupiduntilnot/meditalk/internal/openai"
)

// Exit codes
const (
	ExitSuccess    = 0
	ExitValidation = 1
	ExitBackend    = 2
)

// DefaultImagePrompt is sent with an image when the user gives no prompt.
const DefaultImagePrompt = "Please analyze this medical image. Identify what it shows (medicine, prescription, " +
	"report, etc.), explain what it contains, its general use, and any basic precautions. " +
	"Keep the explanation simple and easy to understand."

type app struct {
	cfg     config.Config
	logger  zerolog.Logger
	verbose bool
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}

// NewRootCommand builds the full command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "meditalk",
		Short: "MediTalk - medical image and prescription assistant",
		Long: `MediTalk explains photos of medicines, prescriptions and medical reports
and answers follow-up questions about them.

The backend credential is read from GROQ_API_KEY on every request.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&a.verbose, "verbose", false, "enable debug logging")

	root.AddCommand(
		newServeCommand(a),
		newAnalyzeCommand(a),
		newChatCommand(a),
		newEventsCommand(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return exitWithCode(ExitValidation, err)
	}
	level := cfg.LogLevel
	if a.verbose {
		level = "debug"
	}
	logger, err := logging.New(cmd.ErrOrStderr(), level, cfg.LogFormat)
	if err != nil {
		return exitWithCode(ExitValidation, err)
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

func (a *app) newBackend() (model.Completer, error) {
	switch a.cfg.Backend {
	case config.BackendDummy:
		return dummy.NewProvider(a.cfg.DummyScript)
	default:
		return openai.NewClient(openai.Options{
			BaseURL: a.cfg.BaseURL,
			APIKey:  config.APIKey,
			Timeout: a.cfg.BackendTimeout(),
		}), nil
	}
}

func (a *app) newService() (*analysis.Service, error) {
	backend, err := a.newBackend()
	if err != nil {
		return nil, exitWithCode(ExitValidation, fmt.Errorf("failed to init backend: %w", err))
	}
	return analysis.NewService(backend, analysis.WithLogger(a.logger)), nil
}

// openJournal returns a journal rooted at a new process.started event, or a
// nil journal when journaling is disabled or the database cannot be opened.
func (a *app) openJournal(role string) (*db.Journal, func()) {
	noop := func() {}
	if !a.cfg.Journal {
		return nil, noop
	}
	database, err := db.OpenDB(a.cfg.DBPath)
	if err != nil {
		a.logger.Warn().Err(err).Msg("event journal disabled")
		return nil, noop
	}
	closeDB := func() { database.Close() }
	if err := db.InitSchema(database); err != nil {
		a.logger.Warn().Err(err).Msg("event journal disabled: failed to init schema")
		closeDB()
		return nil, noop
	}
	journal, err := db.OpenJournal(database, role, map[string]any{"backend": a.cfg.Backend}, a.logger)
	if err != nil {
		a.logger.Warn().Err(err).Msg("event journal disabled: failed to log process.started")
		closeDB()
		return nil, noop
	}
	return journal, closeDB
}

// analyze runs one request with a request-scoped logger and journal entries.
func (a *app) analyze(ctx context.Context, svc *analysis.Service, journal *db.Journal, surface string, req analysis.Request) (analysis.Result, error) {
	requestID := uuid.NewString()
	ctx = a.logger.With().Str("request_id", requestID).Logger().WithContext(ctx)
	return analysis.Journaled(ctx, svc, journal, requestID, surface, req)
}

// exitError wraps an error with an exit code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func (e *exitError) ExitCode() int {
	return e.code
}

func exitWithCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	switch analysis.KindOf(err) {
	case analysis.KindAuthentication, analysis.KindBackend:
		return ExitBackend
	default:
		return ExitValidation
	}
}
