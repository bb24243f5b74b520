package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sourcegraph/conc/iter"
	"github.com/spf13/cobra"

	"github.com/stupiduntilnot/meditalk/internal/analysis"
	ctxpkg "github.com/stupiduntilnot/meditalk/internal/context"
	"github.com/stupiduntilnot/meditalk/internal/media"
)

type analyzeOptions struct {
	prompt      string
	historyPath string
	savePath    string
	jsonOut     bool
	concurrency int
}

type analyzeOutput struct {
	Image   string        `json:"image,omitempty"`
	Text    string        `json:"text,omitempty"`
	History []ctxpkg.Turn `json:"history,omitempty"`
	Error   string        `json:"error,omitempty"`
}

type imageOutcome struct {
	path   string
	result analysis.Result
	err    error
}

func newAnalyzeCommand(a *app) *cobra.Command {
	opts := analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze [IMAGE...]",
		Short: "Analyze images or ask a single question",
		Long: `Send one turn to the backend and print the reply.

With no image the prompt is required. With several images each one is analyzed
as an independent conversation starting from the same history.

Examples:
  meditalk analyze label.jpg
  meditalk analyze --prompt "Is this safe with ibuprofen?" --history chat.json
  meditalk analyze --json a.jpg b.png c.webp`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAnalyze(cmd, opts, args)
		},
	}
	cmd.Flags().StringVar(&opts.prompt, "prompt", "", "question to ask (default for images: a general analysis request)")
	cmd.Flags().StringVar(&opts.historyPath, "history", "", "JSON file holding prior conversation turns")
	cmd.Flags().StringVar(&opts.savePath, "save-history", "", "write the updated history to this JSON file")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "emit JSON output")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 4, "maximum parallel analyses for several images")
	return cmd
}

func (a *app) runAnalyze(cmd *cobra.Command, opts analyzeOptions, images []string) error {
	if opts.savePath != "" && len(images) > 1 {
		return exitWithCode(ExitValidation, errors.New("--save-history requires at most one image"))
	}
	if opts.concurrency < 1 {
		return exitWithCode(ExitValidation, errors.New("--concurrency must be >= 1"))
	}

	history, err := loadHistory(opts.historyPath)
	if err != nil {
		return exitWithCode(ExitValidation, err)
	}
	prompt := opts.prompt
	if strings.TrimSpace(prompt) == "" && len(images) > 0 {
		prompt = DefaultImagePrompt
	}

	svc, err := a.newService()
	if err != nil {
		return err
	}
	journal, closeJournal := a.openJournal("analyze")
	defer closeJournal()

	ctx := cmd.Context()
	run := func(path string) imageOutcome {
		req := analysis.Request{Text: prompt, History: ctxpkg.CloneTurns(history)}
		if path != "" {
			img, err := media.LoadFile(path, a.cfg.MaxUploadBytes)
			if err != nil {
				return imageOutcome{path: path, err: exitWithCode(ExitValidation, err)}
			}
			req.Image = &img
		}
		result, err := a.analyze(ctx, svc, journal, "cli", req)
		return imageOutcome{path: path, result: result, err: err}
	}

	var outcomes []imageOutcome
	switch len(images) {
	case 0:
		outcomes = []imageOutcome{run("")}
	case 1:
		outcomes = []imageOutcome{run(images[0])}
	default:
		mapper := iter.Mapper[string, imageOutcome]{MaxGoroutines: opts.concurrency}
		outcomes = mapper.Map(images, func(path *string) imageOutcome {
			return run(*path)
		})
	}

	if len(outcomes) == 1 {
		return printSingle(cmd, opts, outcomes[0])
	}
	return printMany(cmd.OutOrStdout(), cmd.ErrOrStderr(), opts.jsonOut, outcomes)
}

func printSingle(cmd *cobra.Command, opts analyzeOptions, o imageOutcome) error {
	out := cmd.OutOrStdout()
	if o.err != nil {
		if opts.jsonOut {
			writeJSON(out, analyzeOutput{Image: o.path, Error: o.err.Error()})
		}
		return o.err
	}
	if opts.savePath != "" {
		if err := saveHistory(opts.savePath, o.result.History); err != nil {
			return exitWithCode(ExitValidation, err)
		}
	}
	if opts.jsonOut {
		return writeJSON(out, analyzeOutput{Image: o.path, Text: o.result.Reply, History: o.result.History})
	}
	_, err := fmt.Fprintln(out, o.result.Reply)
	return err
}

func printMany(out, errOut io.Writer, jsonOut bool, outcomes []imageOutcome) error {
	var firstErr error
	records := make([]analyzeOutput, 0, len(outcomes))
	for _, o := range outcomes {
		rec := analyzeOutput{Image: o.path}
		if o.err != nil {
			rec.Error = o.err.Error()
			if firstErr == nil {
				firstErr = o.err
			}
			if !jsonOut {
				fmt.Fprintf(errOut, "Error: %s: %v\n", o.path, o.err)
			}
		} else {
			rec.Text = o.result.Reply
			rec.History = o.result.History
			if !jsonOut {
				fmt.Fprintf(out, "== %s ==\n%s\n\n", o.path, o.result.Reply)
			}
		}
		records = append(records, rec)
	}
	if jsonOut {
		if err := writeJSON(out, records); err != nil {
			return err
		}
	}
	return firstErr
}

func loadHistory(path string) ([]ctxpkg.Turn, error) {
	if path == "" {
		return []ctxpkg.Turn{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return ctxpkg.DecodeHistory(string(data))
}

func saveHistory(path string, history []ctxpkg.Turn) error {
	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
