package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/stupiduntilnot/meditalk/internal/analysis"
	ctxpkg "github.com/stupiduntilnot/meditalk/internal/context"
	"github.com/stupiduntilnot/meditalk/internal/media"
)

const maxLineBytes = 1 << 20

func newChatCommand(a *app) *cobra.Command {
	var prompt string
	cmd := &cobra.Command{
		Use:   "chat [IMAGE]",
		Short: "Interactive conversation about an image",
		Long: `Start an interactive conversation. When an image is given it is analyzed
first; every following line is sent as a follow-up question.

Commands: /reset clears the conversation, /quit exits.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image := ""
			if len(args) == 1 {
				image = args[0]
			}
			return a.runChat(cmd, image, prompt)
		},
	}
	cmd.Flags().StringVar(&prompt, "prompt", "", "first question about the image (default: a general analysis request)")
	return cmd
}

func (a *app) runChat(cmd *cobra.Command, imagePath, prompt string) error {
	in := cmd.InOrStdin()
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	interactive := isTerminal(in)

	svc, err := a.newService()
	if err != nil {
		return err
	}
	journal, closeJournal := a.openJournal("chat")
	defer closeJournal()

	ctx := cmd.Context()
	history := []ctxpkg.Turn{}

	send := func(req analysis.Request) {
		result, err := a.analyze(ctx, svc, journal, "chat", req)
		if err != nil {
			fmt.Fprintf(errOut, "Error: %v\n", err)
			return
		}
		history = result.History
		fmt.Fprintf(out, "%s\n\n", result.Reply)
	}

	if imagePath != "" {
		img, err := media.LoadFile(imagePath, a.cfg.MaxUploadBytes)
		if err != nil {
			return exitWithCode(ExitValidation, err)
		}
		if strings.TrimSpace(prompt) == "" {
			prompt = DefaultImagePrompt
		}
		send(analysis.Request{Text: prompt, Image: &img, History: history})
	} else if interactive {
		fmt.Fprintln(out, "Ask a question about a medicine, prescription or report. /quit to exit.")
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for {
		if interactive {
			fmt.Fprint(out, "> ")
		}
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			history = []ctxpkg.Turn{}
			fmt.Fprintln(out, "Conversation cleared.")
			continue
		}
		send(analysis.Request{Text: line, History: history})
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	return nil
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
