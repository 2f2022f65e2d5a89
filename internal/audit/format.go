package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"
)

const rule = "────────────────────────────────────────────────────────────"

// FormatTimeline renders result as an aligned text timeline: one row per
// entry, then the outcome counts.
func FormatTimeline(result *ReplayResult) string {
	if len(result.Entries) == 0 {
		return fmt.Sprintf("Incident: %s | No entries found.\n", result.Incident)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Incident: %s | %s to %s UTC\n", result.Incident,
		clock(result.Summary.FirstTimestamp, "2006-01-02 15:04:05"),
		clock(result.Summary.LastTimestamp, "15:04:05"))
	b.WriteString(rule + "\n")

	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	for _, e := range result.Entries {
		fmt.Fprintf(tw, "%s\t%s\t%s.%s\t%s\n",
			clock(e.Timestamp, "15:04:05"), strings.ToUpper(e.Outcome), e.Component, e.Operation, describe(e))
	}
	_ = tw.Flush()

	b.WriteString(rule + "\n")
	b.WriteString(summaryLine(result.Summary))
	return b.String()
}

// FormatJSON renders result as indented JSON.
func FormatJSON(result *ReplayResult) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal replay result: %w", err)
	}
	return string(data), nil
}

// describe summarizes what an entry was about: transition, phase, service,
// actor and violation kind, whichever are set.
func describe(e Entry) string {
	var parts []string
	s := e.Subject
	if s.To != "" {
		from := s.From
		if from == "" {
			from = "NEW"
		}
		parts = append(parts, from+"->"+s.To)
	}
	if s.Phase != "" {
		parts = append(parts, "phase="+s.Phase)
	}
	if s.Service != "" {
		parts = append(parts, "service="+s.Service)
	}
	if e.Actor.Name != "" {
		parts = append(parts, "by "+e.Actor.Name)
	} else if e.Actor.Role != "" {
		parts = append(parts, "as "+e.Actor.Role)
	}
	if e.Kind != "" {
		parts = append(parts, e.Kind)
	}
	return strings.Join(parts, " ")
}

// clock reformats an entry timestamp, or returns it unchanged when it does
// not parse.
func clock(ts, layout string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format(layout)
}

func summaryLine(s ReplaySummary) string {
	counts := []struct {
		n     int
		label string
	}{
		{s.AllowedCount, "allowed"},
		{s.DeniedCount, "denied"},
		{s.RecordedCount, "recorded"},
		{s.ErrorCount, "error"},
	}
	var parts []string
	for _, c := range counts {
		if c.n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", c.n, c.label))
		}
	}
	return fmt.Sprintf("Summary: %s | Warnings: %d\n", strings.Join(parts, ", "), s.WarningCount)
}
