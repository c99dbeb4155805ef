package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/fieldnet/internal/store"
	"github.com/roach88/fieldnet/internal/trace"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database  string
	SessionID string
	Element   int64 // optional - filter to one element (0 = all)
}

// SessionSummary is one journaled session in the listing.
type SessionSummary struct {
	ID         string   `json:"id"`
	Scenario   string   `json:"scenario"`
	Phases     []string `json:"phases"`
	EventCount int64    `json:"event_count"`
	TraceHash  string   `json:"trace_hash,omitempty"`
	Finished   bool     `json:"finished"`
}

// TraceResult holds the trace of one session.
type TraceResult struct {
	Session SessionSummary `json:"session"`
	Events  []TraceEvent   `json:"events"`
	Stats   TraceStats     `json:"stats"`
}

// TraceEvent is a single event in the timeline.
type TraceEvent struct {
	Seq       int64             `json:"seq"`
	Kind      string            `json:"kind"`
	Element   int64             `json:"element"`
	Label     string            `json:"label,omitempty"`
	Step      string            `json:"step,omitempty"`
	Phase     string            `json:"phase,omitempty"`
	Round     int               `json:"round"`
	Timestamp int64             `json:"timestamp"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents   int `json:"total_events"`
	StepsAdded    int `json:"steps_added"`
	StepsExecuted int `json:"steps_executed"`
	Elements      int `json:"elements"`
	Rounds        int `json:"rounds"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect journaled sessions",
		Long: `List journaled sessions, or show the event timeline of one session.

Without --session, every session in the database is listed. With --session,
its events are printed in sequence order; --element narrows them to one
graph element.

Examples:
  fieldnet trace --db ./fieldnet.db
  fieldnet trace --db ./fieldnet.db --session 0190...
  fieldnet trace --db ./fieldnet.db --session 0190... --element 3 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "session to show")
	cmd.Flags().Int64Var(&opts.Element, "element", 0, "only events of this element")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := context.Background()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.SessionID == "" {
		sessions, err := st.ListSessions(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list sessions", err)
		}
		summaries := make([]SessionSummary, len(sessions))
		for i, rec := range sessions {
			summaries[i] = summarize(rec)
		}
		if formatter.IsJSON() {
			return formatter.Success(summaries)
		}
		return outputSessionsText(cmd.OutOrStdout(), summaries)
	}

	rec, err := st.ReadSession(ctx, opts.SessionID)
	if errors.Is(err, store.ErrSessionNotFound) {
		_ = formatter.Error(ErrCodeSessionNotFound, fmt.Sprintf("session %s not found", opts.SessionID), nil)
		return WrapExitError(ExitCommandError, "session not found", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read session", err)
	}

	var events []trace.Event
	if opts.Element != 0 {
		events, err = st.ReadElementEvents(ctx, opts.SessionID, opts.Element)
	} else {
		var tr trace.Trace
		tr, err = st.ReadTrace(ctx, opts.SessionID)
		events = tr.Events
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}

	result := TraceResult{
		Session: summarize(rec),
		Events:  buildTimeline(events),
		Stats:   computeStats(events),
	}
	if formatter.IsJSON() {
		return formatter.Success(result)
	}
	return outputTraceText(cmd.OutOrStdout(), result, opts.Verbose)
}

func summarize(rec store.SessionRecord) SessionSummary {
	return SessionSummary{
		ID:         rec.ID,
		Scenario:   rec.Scenario,
		Phases:     rec.Phases,
		EventCount: rec.EventCount,
		TraceHash:  rec.TraceHash,
		Finished:   rec.Finished,
	}
}

// buildTimeline converts journal events into their CLI form.
func buildTimeline(events []trace.Event) []TraceEvent {
	timeline := make([]TraceEvent, 0, len(events))
	for _, e := range events {
		te := TraceEvent{
			Seq:       e.Seq,
			Kind:      string(e.Kind),
			Element:   e.Element,
			Label:     e.Label,
			Step:      e.Step,
			Phase:     e.Phase,
			Round:     e.Round,
			Timestamp: e.Timestamp,
		}
		if len(e.Fields) > 0 {
			te.Fields = make(map[string]string, len(e.Fields))
			for _, f := range e.Fields {
				te.Fields[f.Label] = trace.FormatFloat(f.Value)
			}
		}
		timeline = append(timeline, te)
	}
	return timeline
}

func computeStats(events []trace.Event) TraceStats {
	stats := TraceStats{TotalEvents: len(events)}
	elements := make(map[int64]bool)
	maxRound := -1
	for _, e := range events {
		switch e.Kind {
		case trace.KindStepAdded:
			stats.StepsAdded++
		case trace.KindStepExecuted:
			stats.StepsExecuted++
		}
		elements[e.Element] = true
		maxRound = max(maxRound, e.Round)
	}
	stats.Elements = len(elements)
	stats.Rounds = maxRound + 1
	return stats
}

func outputSessionsText(w io.Writer, sessions []SessionSummary) error {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions found in database.")
		return nil
	}
	for _, s := range sessions {
		fmt.Fprintf(w, "%s  %-24s %6d events  %s\n", s.ID, s.Scenario, s.EventCount, finishedStatus(s.Finished))
	}
	return nil
}

func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {
	s := result.Session
	fmt.Fprintf(w, "Session: %s\n", s.ID)
	fmt.Fprintf(w, "Scenario: %s\n", s.Scenario)
	fmt.Fprintf(w, "Phases: %s\n", strings.Join(s.Phases, " < "))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Timeline:")
	for _, e := range result.Events {
		formatTimelineEvent(w, e, verbose)
	}
	fmt.Fprintln(w)

	st := result.Stats
	fmt.Fprintf(w, "Stats: %d events, %d steps added, %d executed, %d elements, %d rounds (%s)\n",
		st.TotalEvents, st.StepsAdded, st.StepsExecuted, st.Elements, st.Rounds, finishedStatus(s.Finished))
	return nil
}

func formatTimelineEvent(w io.Writer, e TraceEvent, verbose bool) {
	head := fmt.Sprintf("  [%d] r%d t%d %-15s", e.Seq, e.Round, e.Timestamp, e.Kind)
	switch {
	case e.Step != "":
		fmt.Fprintf(w, "%s %s #%d (%s)\n", head, e.Step, e.Element, e.Phase)
	default:
		fmt.Fprintf(w, "%s %s#%d\n", head, e.Label, e.Element)
	}
	if verbose && len(e.Fields) > 0 {
		fmt.Fprintf(w, "      %s\n", formatFields(e.Fields))
	}
}

// formatFields renders fields sorted by label.
func formatFields(fields map[string]string) string {
	labels := sortedLabels(fields)
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = l + "=" + fields[l]
	}
	return strings.Join(parts, " ")
}

func sortedLabels(fields map[string]string) []string {
	labels := make([]string, 0, len(fields))
	for l := range fields {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

func finishedStatus(finished bool) string {
	if finished {
		return "finished"
	}
	return "incomplete"
}
