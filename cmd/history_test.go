package cmd

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chalkan3/mcserver/pkg/operations"
)

func testHistory() *operations.OperationsHistory {
	h := operations.NewOperationsHistory()
	ts := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	h.AddDeploy(operations.DeployEntry{ID: "d1", Timestamp: ts, Operation: "up", InstanceSize: "t3.medium", XMX: "3072", XMS: "3072", PublicIP: "54.1.2.3", Status: operations.StatusSuccess})
	h.AddDeploy(operations.DeployEntry{ID: "d2", Timestamp: ts.Add(time.Hour), Operation: "preview", InstanceSize: "t3.large", XMX: "6144", XMS: "4096", Status: operations.StatusFailed, Error: "boom"})
	h.AddHealth(operations.HealthEntry{ID: "h1", Timestamp: ts, Host: "54.1.2.3", OverallStatus: "healthy", ChecksRun: 2, ChecksPassed: 2})
	h.AddPreflight(operations.PreflightEntry{ID: "p1", Timestamp: ts, Region: "us-east-1", Account: "123456789012", OverallStatus: "passed"})
	return h
}

func TestPrintHistory_All(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printHistory(&buf, testHistory(), "", 10))

	out := buf.String()
	assert.Contains(t, out, "Deploys:    2 records")
	assert.Contains(t, out, "Destroys:   0 records")
	assert.Contains(t, out, "Deploy Operations (2)")
	assert.Contains(t, out, "Health Check History (1)")
	assert.Contains(t, out, "Preflight History (1)")
	assert.NotContains(t, out, "Failed Destroys")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("preview")), bytes.Index(buf.Bytes(), []byte("54.1.2.3")), "most recent first")
}

func TestPrintHistory_Filtered(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printHistory(&buf, testHistory(), "health", 10))

	out := buf.String()
	assert.Contains(t, out, "Health Check History")
	assert.NotContains(t, out, "Deploy Operations")
	assert.NotContains(t, out, "Summary")
}

func TestPrintHistory_Limit(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printHistory(&buf, testHistory(), "deploys", 1))

	out := buf.String()
	assert.Contains(t, out, "Deploy Operations (1)")
	assert.Contains(t, out, "preview")
	assert.NotContains(t, out, "t3.medium")
}

func TestPrintHistory_UnknownType(t *testing.T) {
	var buf bytes.Buffer
	err := printHistory(&buf, testHistory(), "backups", 10)
	assert.ErrorContains(t, err, "unknown operation type: backups")
	assert.Empty(t, buf.String())
}

func TestPrintHistoryJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printHistoryJSON(&buf, testHistory(), "deploys"))

	var entries []operations.DeployEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "d1", entries[0].ID)

	buf.Reset()
	require.NoError(t, printHistoryJSON(&buf, testHistory(), ""))
	assert.Contains(t, buf.String(), `"preflightHistory"`)
}

func TestLimitSlice(t *testing.T) {
	s := []int{1, 2, 3, 4}
	assert.Equal(t, []int{3, 4}, limitSlice(s, 2))
	assert.Equal(t, s, limitSlice(s, 10))
	assert.Equal(t, s, limitSlice(s, 0))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "abcdefg...", truncateString("abcdefghijklmnop", 10))
}
