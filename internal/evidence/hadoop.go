// Package evidence converts raw service logs into the evidence contract
// consumed by the investigation pipeline: normalized UTC timestamps, generic
// event types, INFO/WARN/ERROR severities and count-aggregated signals.
package evidence

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"
)

// SourceHadoop names the Hadoop adapter in the contract output.
const SourceHadoop = "hadoop"

// TimestampLayout is the contract timestamp format.
const TimestampLayout = "2006-01-02T15:04:05Z"

const hadoopLayout = "2006-01-02 15:04:05"

// ErrNoEvents is returned when a log yields nothing classifiable.
var ErrNoEvents = errors.New("no classifiable events found in log")

// Severity is a contract severity level.
type Severity string

const (
	SeverityInfo  Severity = "INFO"
	SeverityWarn  Severity = "WARN"
	SeverityError Severity = "ERROR"
)

// Event is one classified log line.
type Event struct {
	Timestamp  string   `json:"timestamp"`
	Severity   Severity `json:"severity"`
	EventType  string   `json:"event_type"`
	Component  string   `json:"component"`
	RawMessage string   `json:"raw_message"`
}

// Hadoop log line: "YYYY-MM-DD HH:MM:SS,mmm LEVEL logger.Class: message".
var hadoopLine = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2},\d{3})\s+(INFO|WARN|ERROR|DEBUG|TRACE|FATAL)\s+([\w.]+):\s+(.*)`)

// eventPatterns map Hadoop wording to generic event types. First match wins.
var eventPatterns = []struct {
	re        *regexp.Regexp
	eventType string
}{
	{regexp.MustCompile(`(?i)STARTUP_MSG.*Starting`), "startup"},
	{regexp.MustCompile(`(?i)SHUTDOWN_MSG.*Shutting down`), "shutdown"},
	{regexp.MustCompile(`(?i)service.*starting`), "service_start"},
	{regexp.MustCompile(`(?i)failed to allocate.*block`), "resource_allocation_failure"},
	{regexp.MustCompile(`(?i)Could not get block`), "io_error"},
	{regexp.MustCompile(`(?i)Slow.*write.*took`), "performance_degradation"},
	{regexp.MustCompile(`(?i)OutOfMemoryError|SIGTERM|Exception in`), "process_crash"},
	{regexp.MustCompile(`(?i)RECEIVED SIGNAL`), "signal_received"},
	{regexp.MustCompile(`(?i)Successfully sent block report`), "operational_success"},
	{regexp.MustCompile(`(?i)Registered.*via JMX`), "registration"},
}

// ClassifyEvent maps a message to a generic event type, or "" when nothing
// matches.
func ClassifyEvent(message string) string {
	for _, p := range eventPatterns {
		if p.re.MatchString(message) {
			return p.eventType
		}
	}
	return ""
}

// Component maps a Hadoop logger name to a logical component.
func Component(logger string) string {
	l := strings.ToLower(logger)
	switch {
	case strings.Contains(l, "datanode"):
		return "storage_service"
	case strings.Contains(l, "namenode"):
		return "metadata_service"
	case strings.Contains(l, "resourcemanager"):
		return "resource_manager"
	default:
		return "unknown_service"
	}
}

// normalizeTimestamp drops the millisecond part and reformats as UTC.
func normalizeTimestamp(raw string) (string, error) {
	head, _, _ := strings.Cut(raw, ",")
	t, err := time.Parse(hadoopLayout, head)
	if err != nil {
		return "", err
	}
	return t.UTC().Format(TimestampLayout), nil
}

// ParseHadoop reads a Hadoop log and returns its classified events.
// DEBUG, TRACE and FATAL lines are outside the contract and skipped with a
// warning. Continuation lines and unclassifiable messages are skipped
// silently. An unparseable timestamp fails the whole log.
func ParseHadoop(r io.Reader, logger *slog.Logger) ([]Event, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var events []Event
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "/***") {
			continue
		}
		m := hadoopLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		rawTS, level, loggerName, message := m[1], m[2], m[3], m[4]

		switch level {
		case "DEBUG", "TRACE", "FATAL":
			logger.Warn("skipping forbidden severity", "line", lineNo, "severity", level)
			continue
		}

		ts, err := normalizeTimestamp(rawTS)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid timestamp %q: %w", lineNo, rawTS, err)
		}

		eventType := ClassifyEvent(message)
		if eventType == "" {
			continue
		}

		if len(message) > 100 {
			message = message[:100]
		}
		events = append(events, Event{
			Timestamp:  ts,
			Severity:   Severity(level),
			EventType:  eventType,
			Component:  Component(loggerName),
			RawMessage: message,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	return events, nil
}
