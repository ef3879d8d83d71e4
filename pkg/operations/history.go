// Package operations records the CLI operations run against a stack in the
// stack's own outputs, so the history lives wherever the Pulumi state lives.
package operations

import (
	"sync"
	"time"
)

const (
	// DefaultMaxEntries is the default maximum number of entries per operation type
	DefaultMaxEntries = 50
)

// Entry statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// OperationsHistory holds the history of all CLI operations
type OperationsHistory struct {
	DeployHistory    []DeployEntry    `json:"deployHistory"`
	DestroyHistory   []DestroyEntry   `json:"destroyHistory"`
	HealthHistory    []HealthEntry    `json:"healthHistory"`
	PreflightHistory []PreflightEntry `json:"preflightHistory"`
	MaxEntries       int              `json:"maxEntries"`
	LastUpdated      time.Time        `json:"lastUpdated"`
	mu               sync.Mutex       `json:"-"`
}

// DeployEntry represents a single up or preview run
type DeployEntry struct {
	ID              string         `json:"id"`
	Timestamp       time.Time      `json:"timestamp"`
	Operation       string         `json:"operation"` // up, preview
	InstanceSize    string         `json:"instanceSize"`
	XMX             string         `json:"xmx"`
	XMS             string         `json:"xms"`
	PublicIP        string         `json:"publicIp,omitempty"`
	Status          string         `json:"status"`
	ResourceChanges map[string]int `json:"resourceChanges,omitempty"`
	Duration        string         `json:"duration,omitempty"`
	Error           string         `json:"error,omitempty"`
}

// DestroyEntry represents a destroy run that failed and left the stack in place
type DestroyEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
	Duration  string    `json:"duration,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// HealthEntry represents a single health check record
type HealthEntry struct {
	ID            string       `json:"id"`
	Timestamp     time.Time    `json:"timestamp"`
	Host          string       `json:"host"`
	OverallStatus string       `json:"overallStatus"` // healthy, warning, critical
	ChecksRun     int          `json:"checksRun"`
	ChecksPassed  int          `json:"checksPassed"`
	ChecksWarning int          `json:"checksWarning"`
	ChecksFailed  int          `json:"checksFailed"`
	Duration      string       `json:"duration,omitempty"`
	CheckResults  []CheckEntry `json:"checkResults,omitempty"`
}

// PreflightEntry represents a single preflight run
type PreflightEntry struct {
	ID            string       `json:"id"`
	Timestamp     time.Time    `json:"timestamp"`
	Region        string       `json:"region,omitempty"`
	Account       string       `json:"account,omitempty"`
	ImageID       string       `json:"imageId,omitempty"`
	OverallStatus string       `json:"overallStatus"` // passed, failed
	CheckResults  []CheckEntry `json:"checkResults,omitempty"`
}

// CheckEntry represents one check within a health or preflight run
type CheckEntry struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// NewOperationsHistory creates a new OperationsHistory with default settings
func NewOperationsHistory() *OperationsHistory {
	return &OperationsHistory{
		DeployHistory:    make([]DeployEntry, 0),
		DestroyHistory:   make([]DestroyEntry, 0),
		HealthHistory:    make([]HealthEntry, 0),
		PreflightHistory: make([]PreflightEntry, 0),
		MaxEntries:       DefaultMaxEntries,
		LastUpdated:      time.Now().UTC(),
	}
}

// appendBounded appends e and drops the oldest entries beyond max.
func appendBounded[T any](entries []T, e T, max int) []T {
	entries = append(entries, e)
	if max > 0 && len(entries) > max {
		entries = entries[len(entries)-max:]
	}
	return entries
}

// AddDeploy adds a deploy entry to the history with FIFO pruning
func (h *OperationsHistory) AddDeploy(entry DeployEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.DeployHistory = appendBounded(h.DeployHistory, entry, h.MaxEntries)
	h.LastUpdated = time.Now().UTC()
}

// AddDestroy adds a destroy entry to the history with FIFO pruning
func (h *OperationsHistory) AddDestroy(entry DestroyEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.DestroyHistory = appendBounded(h.DestroyHistory, entry, h.MaxEntries)
	h.LastUpdated = time.Now().UTC()
}

// AddHealth adds a health entry to the history with FIFO pruning
func (h *OperationsHistory) AddHealth(entry HealthEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.HealthHistory = appendBounded(h.HealthHistory, entry, h.MaxEntries)
	h.LastUpdated = time.Now().UTC()
}

// AddPreflight adds a preflight entry to the history with FIFO pruning
func (h *OperationsHistory) AddPreflight(entry PreflightEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.PreflightHistory = appendBounded(h.PreflightHistory, entry, h.MaxEntries)
	h.LastUpdated = time.Now().UTC()
}

// GetLatestDeploy returns the most recent deploy entry or nil
func (h *OperationsHistory) GetLatestDeploy() *DeployEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.DeployHistory) == 0 {
		return nil
	}
	return &h.DeployHistory[len(h.DeployHistory)-1]
}

// GetLatestHealth returns the most recent health entry or nil
func (h *OperationsHistory) GetLatestHealth() *HealthEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.HealthHistory) == 0 {
		return nil
	}
	return &h.HealthHistory[len(h.HealthHistory)-1]
}

// GetDeploysByStatus returns all deploy entries with the given status
func (h *OperationsHistory) GetDeploysByStatus(status string) []DeployEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	var result []DeployEntry
	for _, entry := range h.DeployHistory {
		if entry.Status == status {
			result = append(result, entry)
		}
	}
	return result
}

// TotalOperations returns the total number of operations recorded
func (h *OperationsHistory) TotalOperations() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.DeployHistory) + len(h.DestroyHistory) + len(h.HealthHistory) + len(h.PreflightHistory)
}

// Clear removes all entries from the history
func (h *OperationsHistory) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.DeployHistory = make([]DeployEntry, 0)
	h.DestroyHistory = make([]DestroyEntry, 0)
	h.HealthHistory = make([]HealthEntry, 0)
	h.PreflightHistory = make([]PreflightEntry, 0)
	h.LastUpdated = time.Now().UTC()
}
