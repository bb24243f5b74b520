package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/stupiduntilnot/meditalk/internal/db"
)

type eventsOptions struct {
	dbPath    string
	eventID   int64
	maxDepth  int
	jsonOut   bool
	yamlOut   bool
	noPayload bool
}

func newEventsCommand(a *app) *cobra.Command {
	opts := eventsOptions{}
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show the event journal as a tree",
		Long: `Render the event journal. By default the subtree of the most recent
process.started event is shown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.jsonOut && opts.yamlOut {
				return exitWithCode(ExitValidation, errors.New("--json and --yaml are mutually exclusive"))
			}
			if opts.dbPath == "" {
				opts.dbPath = a.cfg.DBPath
			}
			return runEvents(cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "SQLite database path (default from MEDITALK_DB_PATH)")
	cmd.Flags().Int64Var(&opts.eventID, "id", 0, "show subtree of a specific event ID")
	cmd.Flags().IntVarP(&opts.maxDepth, "depth", "L", 0, "limit display depth (0 = unlimited)")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "output JSON format")
	cmd.Flags().BoolVar(&opts.yamlOut, "yaml", false, "output YAML format")
	cmd.Flags().BoolVar(&opts.noPayload, "no-payload", false, "hide payload details")
	return cmd
}

func runEvents(out io.Writer, opts eventsOptions) error {
	database, err := db.OpenReadOnly(opts.dbPath)
	if err != nil {
		return exitWithCode(ExitValidation, err)
	}
	defer database.Close()

	rootID := opts.eventID
	if rootID == 0 {
		rootID, err = db.LatestProcessRoot(database, "")
		if err != nil {
			return exitWithCode(ExitValidation, fmt.Errorf("find process root: %w", err))
		}
	}

	events, err := db.QuerySubtree(database, rootID)
	if err != nil {
		return fmt.Errorf("query subtree: %w", err)
	}
	root := db.BuildTree(events, rootID)
	if root == nil {
		return exitWithCode(ExitValidation, fmt.Errorf("event %d not found", rootID))
	}

	switch {
	case opts.jsonOut:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(toTreeEvent(root, 1, opts.maxDepth, opts.noPayload))
	case opts.yamlOut:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(toTreeEvent(root, 1, opts.maxDepth, opts.noPayload)); err != nil {
			return err
		}
		return enc.Close()
	default:
		printTree(out, root, "", true, 1, opts.maxDepth, opts.noPayload)
		return nil
	}
}

// printTree renders the event tree using box-drawing characters.
func printTree(out io.Writer, ev *db.Event, prefix string, isLast bool, depth, maxDepth int, noPayload bool) {
	connector := "├── "
	if isLast {
		connector = "└── "
	}
	line := formatEvent(ev, noPayload)
	if depth == 1 {
		fmt.Fprintln(out, line)
	} else {
		fmt.Fprintln(out, prefix+connector+line)
	}

	childPrefix := prefix
	if depth > 1 {
		if isLast {
			childPrefix += "    "
		} else {
			childPrefix += "│   "
		}
	}

	if maxDepth > 0 && depth >= maxDepth {
		if len(ev.Children) > 0 {
			fmt.Fprintln(out, childPrefix+"└── [...]")
		}
		return
	}

	for i, child := range ev.Children {
		printTree(out, child, childPrefix, i == len(ev.Children)-1, depth+1, maxDepth, noPayload)
	}
}

// formatEvent formats a single event line: [id] timestamp  event_type  key=value ...
func formatEvent(ev *db.Event, noPayload bool) string {
	ts := time.Unix(ev.Timestamp, 0).UTC().Format("2006-01-02 15:04:05")
	line := fmt.Sprintf("[%d] %s  %s", ev.ID, ts, ev.EventType)

	if noPayload {
		return line
	}
	m := payloadMap(ev)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		line += fmt.Sprintf("  %s=%s", k, formatValue(m[k]))
	}
	return line
}

// formatValue converts a payload value to a display string, truncating long text.
func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		if len(val) > 80 {
			return fmt.Sprintf("%q", val[:80]+"...")
		}
		return val
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func payloadMap(ev *db.Event) map[string]any {
	if !ev.Payload.Valid || ev.Payload.String == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(ev.Payload.String), &m); err != nil {
		return nil
	}
	return m
}

type treeEvent struct {
	ID        int64          `json:"id" yaml:"id"`
	Timestamp int64          `json:"timestamp" yaml:"timestamp"`
	EventType string         `json:"event_type" yaml:"event_type"`
	Payload   map[string]any `json:"payload,omitempty" yaml:"payload,omitempty"`
	Children  []treeEvent    `json:"children,omitempty" yaml:"children,omitempty"`
}

func toTreeEvent(ev *db.Event, depth, maxDepth int, noPayload bool) treeEvent {
	te := treeEvent{
		ID:        ev.ID,
		Timestamp: ev.Timestamp,
		EventType: ev.EventType,
	}
	if !noPayload {
		te.Payload = payloadMap(ev)
	}
	if maxDepth > 0 && depth >= maxDepth {
		return te
	}
	for _, child := range ev.Children {
		te.Children = append(te.Children, toTreeEvent(child, depth+1, maxDepth, noPayload))
	}
	return te
}
