package evidence

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

const sampleLog = `/************************************************************
2015-03-16 23:17:40,001 INFO org.apache.hadoop.hdfs.server.datanode.DataNode: STARTUP_MSG: Starting DataNode
2015-03-16 23:17:42,123 WARN org.apache.hadoop.hdfs.server.datanode.DataNode: Slow BlockReceiver write data to disk cost took 612ms
2015-03-16 23:18:42,456 WARN org.apache.hadoop.hdfs.server.datanode.DataNode: Slow BlockReceiver write packet to mirror took 901ms
2015-03-16 23:19:00,000 DEBUG org.apache.hadoop.hdfs.server.datanode.DataNode: Slow write took 1ms
2015-03-16 23:19:10,000 ERROR org.apache.hadoop.hdfs.server.namenode.NameNode: Could not get block locations
	at org.apache.hadoop.hdfs.DFSClient.open(DFSClient.java:123)
2015-03-16 23:19:20,000 INFO org.apache.hadoop.hdfs.server.namenode.NameNode: heartbeat ok
`

func TestClassifyEvent(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{"STARTUP_MSG: Starting NameNode", "startup"},
		{"SHUTDOWN_MSG: Shutting down DataNode at host", "shutdown"},
		{"Service ResourceManager is starting", "service_start"},
		{"Failed to allocate new block for /tmp/x", "resource_allocation_failure"},
		{"could not get block locations", "io_error"},
		{"Slow flushOrSync write took 300ms", "performance_degradation"},
		{"java.lang.OutOfMemoryError: Java heap space", "process_crash"},
		{"RECEIVED SIGNAL 15: SIGTERM", "process_crash"},
		{"received signal 1", "signal_received"},
		{"Successfully sent block report 0x1", "operational_success"},
		{"Registered FSDatasetState MBean via JMX", "registration"},
		{"heartbeat ok", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyEvent(tt.message), tt.message)
	}
}

func TestComponent(t *testing.T) {
	assert.Equal(t, "storage_service", Component("org.apache.hadoop.hdfs.server.datanode.DataNode"))
	assert.Equal(t, "metadata_service", Component("org.apache.hadoop.hdfs.server.namenode.FSNamesystem"))
	assert.Equal(t, "resource_manager", Component("org.apache.hadoop.yarn.server.resourcemanager.RM"))
	assert.Equal(t, "unknown_service", Component("org.apache.zookeeper.ClientCnxn"))
}

func TestParseHadoop(t *testing.T) {
	events, err := ParseHadoop(strings.NewReader(sampleLog), discard)
	require.NoError(t, err)
	require.Len(t, events, 4)

	assert.Equal(t, "2015-03-16T23:17:40Z", events[0].Timestamp)
	assert.Equal(t, "startup", events[0].EventType)
	assert.Equal(t, SeverityInfo, events[0].Severity)
	assert.Equal(t, "metadata_service", events[3].Component)
	assert.Equal(t, SeverityError, events[3].Severity)
}

func TestParseHadoopTruncatesMessage(t *testing.T) {
	line := "2015-03-16 23:17:40,001 ERROR a.b.DataNode: Exception in thread " + strings.Repeat("x", 200)
	events, err := ParseHadoop(strings.NewReader(line), discard)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Len(t, events[0].RawMessage, 100)
}

func TestParseHadoopInvalidTimestamp(t *testing.T) {
	line := "2015-13-45 23:17:40,001 ERROR a.b.DataNode: Exception in thread main"
	_, err := ParseHadoop(strings.NewReader(line), discard)
	assert.ErrorContains(t, err, "invalid timestamp")
}

func TestAggregate(t *testing.T) {
	events := []Event{
		{Timestamp: "2015-03-16T23:18:00Z", Severity: SeverityWarn, EventType: "performance_degradation", Component: "storage_service"},
		{Timestamp: "2015-03-16T23:17:00Z", Severity: SeverityInfo, EventType: "startup", Component: "storage_service"},
		{Timestamp: "2015-03-16T23:19:00Z", Severity: SeverityWarn, EventType: "performance_degradation", Component: "storage_service"},
		{Timestamp: "2015-03-16T23:20:00Z", Severity: SeverityError, EventType: "performance_degradation", Component: "storage_service"},
	}
	signals := Aggregate(events)
	require.Len(t, signals, 3)

	assert.Equal(t, "startup", signals[0].Event)
	assert.Equal(t, 1, signals[0].Count)
	assert.Empty(t, signals[0].LastSeen)

	assert.Equal(t, SeverityWarn, signals[1].Severity)
	assert.Equal(t, 2, signals[1].Count)
	assert.Equal(t, "2015-03-16T23:18:00Z", signals[1].FirstSeen)
	assert.Equal(t, "2015-03-16T23:19:00Z", signals[1].LastSeen)

	assert.Equal(t, SeverityError, signals[2].Severity)
}

func TestAssess(t *testing.T) {
	tests := []struct {
		name    string
		signals []Signal
		want    Quality
	}{
		{
			name: "complete",
			signals: []Signal{
				{Event: "startup", Severity: SeverityInfo},
				{Event: "io_error", Severity: SeverityError},
			},
			want: Quality{Completeness: CompletenessComplete, Notes: []string{"Evidence appears complete"}},
		},
		{
			name:    "no lifecycle",
			signals: []Signal{{Event: "io_error", Severity: SeverityWarn}},
			want:    Quality{Completeness: CompletenessPartial, ConfidencePenalty: 10, Notes: []string{"No lifecycle events detected"}},
		},
		{
			name:    "crash without shutdown",
			signals: []Signal{{Event: "process_crash", Severity: SeverityError}},
			want: Quality{
				Completeness:      CompletenessPartial,
				ConfidencePenalty: 15,
				Notes:             []string{"No lifecycle events detected", "Crash detected without clean shutdown"},
			},
		},
		{
			name:    "info only",
			signals: []Signal{{Event: "shutdown", Severity: SeverityInfo}},
			want:    Quality{Completeness: CompletenessLowSignal, ConfidencePenalty: 20, Notes: []string{"No ERROR or WARN events detected"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Assess(tt.signals))
		})
	}
}

func TestHadoop(t *testing.T) {
	c, n, err := Hadoop(strings.NewReader(sampleLog), discard)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, SourceHadoop, c.Source)
	assert.Len(t, c.Signals, 3)
	assert.Equal(t, CompletenessComplete, c.Quality.Completeness)
}

func TestHadoopNoEvents(t *testing.T) {
	_, _, err := Hadoop(strings.NewReader("2015-03-16 23:17:40,001 INFO a.b.C: nothing here\n"), discard)
	assert.True(t, errors.Is(err, ErrNoEvents))
}
