package repl

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"

	"github.com/Saberlve/LLM-Kit-sub000/internal/events"
	"github.com/Saberlve/LLM-Kit-sub000/internal/types"
)

const (
	defaultListLimit = 10
	previewRunes     = 60
)

// cmdSummary shows the pass overview
func (r *REPL) cmdSummary(args []string) error {
	if err := r.load(); err != nil {
		return err
	}
	p := r.pass

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	status := green(string(p.Status))
	switch p.Status {
	case types.PassProcessing:
		status = yellow(string(p.Status))
	case types.PassFailed:
		status = red(string(p.Status))
	}

	dups := 0
	for _, g := range r.groups {
		dups += len(g.Duplicates)
	}

	fmt.Fprintf(r.out, "\n%s\n\n", cyan("Pass "+p.ID))
	fmt.Fprintf(r.out, "  Status:      %s (%d%%)\n", status, p.Progress)
	fmt.Fprintf(r.out, "  Created:     %s\n", p.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(r.out, "  Mode:        %s\n", p.Mode)
	fmt.Fprintf(r.out, "  Threshold:   %.2f (%d permutations)\n", p.Threshold, p.NumPerm)
	if p.Mode == types.ModeByAnswer {
		fmt.Fprintf(r.out, "  Min answer:  %d characters\n", p.MinAnswerLength)
	}
	fmt.Fprintf(r.out, "  Inputs:      %s\n", strings.Join(p.InputFiles, ", "))
	fmt.Fprintln(r.out)
	fmt.Fprintf(r.out, "  %s  %d records\n", "Original", p.OriginalCount)
	fmt.Fprintf(r.out, "  %s  %d records\n", green("Kept    "), p.KeptCount)
	fmt.Fprintf(r.out, "  %s  %d records\n", yellow("Removed "), p.RemovedCount())
	if p.Mode.TracksDeletedGroups() {
		fmt.Fprintf(r.out, "  %s  %d (%d duplicates)\n", "Groups  ", len(r.groups), dups)
	}
	if p.ErrorMessage != "" {
		fmt.Fprintf(r.out, "\n  %s %s\n", red("Error:"), p.ErrorMessage)
	}
	fmt.Fprintln(r.out)
	return nil
}

// cmdKept lists kept records
func (r *REPL) cmdKept(args []string) error {
	limit, err := parseLimit(args)
	if err != nil {
		return err
	}
	if err := r.load(); err != nil {
		return err
	}

	if len(r.kept) == 0 {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Fprintf(r.out, "\n%s No kept records stored for this pass.\n\n", yellow("ℹ"))
		return nil
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Fprintf(r.out, "\n%s\n\n", cyan(fmt.Sprintf("Kept Records (%d)", len(r.kept))))
	for i, rec := range r.kept {
		if i >= limit {
			fmt.Fprintf(r.out, "\n... and %d more\n", len(r.kept)-limit)
			break
		}
		r.printRecord(i+1, rec)
	}
	fmt.Fprintln(r.out)
	return nil
}

// cmdGroups lists deleted groups
func (r *REPL) cmdGroups(args []string) error {
	limit, err := parseLimit(args)
	if err != nil {
		return err
	}
	if err := r.load(); err != nil {
		return err
	}

	if len(r.groups) == 0 {
		green := color.New(color.FgGreen).SprintFunc()
		msg := "No deleted groups."
		if !r.pass.Mode.TracksDeletedGroups() {
			msg = "by_answer passes do not track deleted groups."
		}
		fmt.Fprintf(r.out, "\n%s %s\n\n", green("✓"), msg)
		return nil
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(r.out, "\n%s\n\n", cyan(fmt.Sprintf("Deleted Groups (%d)", len(r.groups))))
	for i, g := range r.groups {
		if i >= limit {
			fmt.Fprintf(r.out, "\n... and %d more\n", len(r.groups)-limit)
			break
		}
		fmt.Fprintf(r.out, "%3d. kept %s, %d duplicates: %s\n",
			i, green(g.Kept.ID), len(g.Duplicates), preview(g.Kept.Question))
	}
	fmt.Fprintln(r.out)
	return nil
}

// cmdGroup shows one deleted group in full
func (r *REPL) cmdGroup(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: group <index>")
	}
	idx, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid group index %q", args[0])
	}
	if err := r.load(); err != nil {
		return err
	}
	if idx < 0 || idx >= len(r.groups) {
		return fmt.Errorf("group index %d out of range (0-%d)", idx, len(r.groups)-1)
	}

	g := r.groups[idx]
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	fmt.Fprintf(r.out, "\n%s\n\n", cyan(fmt.Sprintf("Group %d (%d records)", idx, g.Size())))
	fmt.Fprintf(r.out, "  %s %s [%s]\n", green("kept"), g.Kept.ID, g.Kept.SourceLabel)
	r.printFields(g.Kept)
	for _, d := range g.Duplicates {
		fmt.Fprintf(r.out, "  %s %s [%s]\n", red("dup "), d.ID, d.SourceLabel)
		r.printFields(d)
	}
	fmt.Fprintln(r.out)
	return nil
}

// cmdEvents lists the events of the pass
func (r *REPL) cmdEvents(args []string) error {
	filter := events.EventFilter{}
	if len(args) > 0 {
		t := events.EventType(args[0])
		if !t.IsValid() {
			return fmt.Errorf("unknown event type %q", args[0])
		}
		filter.Type = t
	}

	evts, err := r.store.GetEvents(r.ctx, r.pass.ID, filter)
	if err != nil {
		return fmt.Errorf("failed to get events: %w", err)
	}
	if len(evts) == 0 {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Fprintf(r.out, "\n%s No events recorded.\n\n", yellow("ℹ"))
		return nil
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()
	fmt.Fprintf(r.out, "\n%s\n\n", cyan(fmt.Sprintf("Events (%d)", len(evts))))
	for _, e := range evts {
		fmt.Fprintf(r.out, "  %s %s %-16s %s\n",
			gray(e.Timestamp.Local().Format("15:04:05.000")),
			severityMark(e.Severity),
			e.Type,
			e.Message,
		)
	}
	fmt.Fprintln(r.out)
	return nil
}

// cmdPasses lists stored passes
func (r *REPL) cmdPasses(args []string) error {
	passes, err := r.store.ListPasses(r.ctx, defaultListLimit)
	if err != nil {
		return fmt.Errorf("failed to list passes: %w", err)
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(r.out, "\n%s\n\n", cyan("Recent Passes"))
	for _, p := range passes {
		marker := " "
		if p.ID == r.pass.ID {
			marker = green("*")
		}
		fmt.Fprintf(r.out, "%s %s  %-11s %-10s %d -> %d\n",
			marker, p.ID, p.Mode, p.Status, p.OriginalCount, p.KeptCount)
	}
	fmt.Fprintln(r.out)
	return nil
}

// cmdUse switches the inspected pass
func (r *REPL) cmdUse(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: use <pass-id>")
	}
	if err := r.selectPass(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Now inspecting pass %s\n", r.pass.ID)
	return nil
}

func (r *REPL) printRecord(n int, rec types.QARecord) {
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(r.out, "%3d. %s: %s\n", n, green(rec.ID), preview(rec.Question))
}

func (r *REPL) printFields(rec types.QARecord) {
	gray := color.New(color.FgHiBlack).SprintFunc()
	fmt.Fprintf(r.out, "       %s %s\n", gray("Q:"), preview(rec.Question))
	fmt.Fprintf(r.out, "       %s %s\n", gray("A:"), preview(rec.Answer))
}

func severityMark(s events.EventSeverity) string {
	switch s {
	case events.SeverityError:
		return color.New(color.FgRed).Sprint("✗")
	case events.SeverityWarning:
		return color.New(color.FgYellow).Sprint("⚠")
	default:
		return color.New(color.FgGreen).Sprint("•")
	}
}

func parseLimit(args []string) (int, error) {
	if len(args) == 0 {
		return defaultListLimit, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid count %q", args[0])
	}
	return n, nil
}

// preview flattens text to one line and truncates it by runes
func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= previewRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:previewRunes]) + "…"
}
