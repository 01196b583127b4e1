package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"mcpscout/internal/app/capability"
	"mcpscout/internal/app/discovery"
	"mcpscout/internal/domain"
)

func writeJSON(w io.Writer, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func stateColor(state domain.RunState) *color.Color {
	switch state {
	case domain.RunSuccess:
		return color.New(color.FgGreen)
	case domain.RunDegraded:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed, color.Bold)
	}
}

func printPrepareResult(w io.Writer, result discovery.Result, jsonOutput bool) error {
	if jsonOutput {
		payload := map[string]any{
			"state":        result.State,
			"report":       result.Report,
			"capabilities": result.Capabilities,
		}
		if result.Reason != "" {
			payload["reason"] = result.Reason
		}
		if result.PersistErr != nil {
			payload["persistError"] = result.PersistErr.Error()
		}
		return writeJSON(w, payload)
	}

	gray := color.New(color.FgHiBlack)
	state := stateColor(result.State).Sprint(string(result.State))
	if result.Reason != "" {
		state += gray.Sprintf(" (%s)", result.Reason)
	}
	fmt.Fprintf(w, "%s run=%s passes=%d duration=%s\n", state, result.Report.ID, result.Report.Passes, result.Report.Duration().Round(time.Millisecond))
	for _, attempt := range result.Report.Attempts {
		printAttempt(w, attempt)
	}
	if len(result.Selection.Unknown) > 0 {
		fmt.Fprintf(w, "%s %s\n", color.YellowString("unknown:"), strings.Join(result.Selection.Unknown, ", "))
	}
	if result.PersistErr != nil {
		fmt.Fprintf(w, "%s %v\n", color.RedString("cache not written:"), result.PersistErr)
	}
	fmt.Fprintf(w, "tools=%d providers=%d\n", len(result.Capabilities.Tools), result.Report.Providers)
	return nil
}

func printAttempt(w io.Writer, attempt domain.AttemptOutcome) {
	marker := color.GreenString("ok  ")
	detail := fmt.Sprintf("tools=%d", attempt.ToolCount)
	if attempt.State != domain.AttemptConnected {
		marker = color.RedString("fail")
		detail = string(attempt.FailureKind)
		if attempt.Error != "" {
			detail += ": " + attempt.Error
		}
	}
	fmt.Fprintf(w, "  %s pass=%d %-20s %s %s\n",
		marker,
		attempt.Pass,
		attempt.Provider,
		color.HiBlackString(attempt.Duration.Round(time.Millisecond).String()),
		detail,
	)
}

func printCapabilities(w io.Writer, set capability.Set, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(w, set)
	}
	cyan := color.New(color.FgCyan)
	if set.Degraded {
		fmt.Fprintln(w, color.YellowString("no discovered tools; using built-in set"))
	}
	for _, tool := range set.Tools {
		fmt.Fprintf(w, "%s\t%s\n", cyan.Sprint(tool.Name), tool.Description)
	}
	for _, collision := range set.Collisions {
		fmt.Fprintf(w, "%s %s from %s shadows %s\n",
			color.YellowString("collision:"),
			collision.Tool,
			collision.Winner,
			strings.Join(collision.Shadowed, ", "),
		)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, set.Summary)
	return nil
}

func printSelection(w io.Writer, selection discovery.Selection, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(w, selection)
	}
	if selection.SafeDefaults {
		fmt.Fprintln(w, color.YellowString("no requested provider is safe; using safe defaults"))
	}
	for i, placement := range selection.Plan {
		fmt.Fprintf(w, "%2d. %-24s %-8s %-12s priority=%d\n",
			i+1,
			placement.Name,
			placement.Tier,
			placement.Category,
			placement.Priority,
		)
	}
	if len(selection.Unknown) > 0 {
		fmt.Fprintf(w, "%s %s\n", color.YellowString("unknown:"), strings.Join(selection.Unknown, ", "))
	}
	return nil
}

func printRuns(w io.Writer, runs []domain.RunReport, jsonOutput bool) error {
	if jsonOutput {
		if runs == nil {
			runs = []domain.RunReport{}
		}
		return writeJSON(w, runs)
	}
	for _, run := range runs {
		state := stateColor(run.State).Sprint(string(run.State))
		if run.DegradedReason != "" {
			state += color.HiBlackString(" (%s)", run.DegradedReason)
		}
		fmt.Fprintf(w, "%s  %s  %s  tools=%d providers=%d passes=%d\n",
			run.StartedAt.Local().Format(time.RFC3339),
			run.ID,
			state,
			run.ToolCount,
			run.Providers,
			run.Passes,
		)
	}
	return nil
}
