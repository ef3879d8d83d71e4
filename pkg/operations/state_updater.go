package operations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pulumi/pulumi/sdk/v3/go/auto"
	"github.com/pulumi/pulumi/sdk/v3/go/common/apitype"

	"github.com/chalkan3/mcserver/internal/common"
)

// HistoryOutput is the stack output holding the serialized history.
const HistoryOutput = "operationsHistory"

const stackResourceType = "pulumi:pulumi:Stack"

// ErrNoStackResource is returned when the stack has no deployment to attach
// history to, for example before the first up or after a destroy.
var ErrNoStackResource = errors.New("stack resource not found in deployment")

// StackState is the part of auto.Stack the store reads and rewrites.
type StackState interface {
	Outputs(ctx context.Context) (auto.OutputMap, error)
	Export(ctx context.Context) (apitype.UntypedDeployment, error)
	Import(ctx context.Context, state apitype.UntypedDeployment) error
}

// Store reads and writes the operations history of one stack
type Store struct {
	state StackState
	mu    sync.Mutex
	now   func() time.Time
}

// NewStore creates a store over state.
func NewStore(state StackState) *Store {
	return &Store{state: state, now: func() time.Time { return time.Now().UTC() }}
}

// ForStack creates a store for an existing stack.
func ForStack(ctx context.Context, stackName string) (*Store, error) {
	if stackName == "" {
		return nil, fmt.Errorf("stack name is required")
	}
	stack, err := common.SelectStack(ctx, stackName)
	if err != nil {
		return nil, err
	}
	return NewStore(&stack), nil
}

// Load returns the stored history, or an empty history when none is stored
// or the stored value cannot be parsed.
func (s *Store) Load(ctx context.Context) (*OperationsHistory, error) {
	outputs, err := s.state.Outputs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get stack outputs: %w", err)
	}
	return historyFromOutputs(outputs), nil
}

// Save writes history into the stack resource outputs of the current deployment.
func (s *Store) Save(ctx context.Context, history *OperationsHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deployment, err := s.state.Export(ctx)
	if err != nil {
		return fmt.Errorf("failed to export stack: %w", err)
	}

	history.mu.Lock()
	history.LastUpdated = s.now()
	historyJSON, err := json.Marshal(history)
	history.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	modified, err := setHistoryOutput(deployment.Deployment, string(historyJSON))
	if err != nil {
		return err
	}
	deployment.Deployment = modified

	if err := s.state.Import(ctx, deployment); err != nil {
		return fmt.Errorf("failed to import modified state: %w", err)
	}
	return nil
}

// AddDeploy records a deploy entry.
func (s *Store) AddDeploy(ctx context.Context, history *OperationsHistory, entry DeployEntry) error {
	entry.ID, entry.Timestamp = s.stamp(entry.ID, entry.Timestamp)
	history.AddDeploy(entry)
	return s.Save(ctx, history)
}

// AddDestroy records a destroy entry.
func (s *Store) AddDestroy(ctx context.Context, history *OperationsHistory, entry DestroyEntry) error {
	entry.ID, entry.Timestamp = s.stamp(entry.ID, entry.Timestamp)
	history.AddDestroy(entry)
	return s.Save(ctx, history)
}

// AddHealth records a health entry.
func (s *Store) AddHealth(ctx context.Context, history *OperationsHistory, entry HealthEntry) error {
	entry.ID, entry.Timestamp = s.stamp(entry.ID, entry.Timestamp)
	history.AddHealth(entry)
	return s.Save(ctx, history)
}

// AddPreflight records a preflight entry.
func (s *Store) AddPreflight(ctx context.Context, history *OperationsHistory, entry PreflightEntry) error {
	entry.ID, entry.Timestamp = s.stamp(entry.ID, entry.Timestamp)
	history.AddPreflight(entry)
	return s.Save(ctx, history)
}

func (s *Store) stamp(id string, ts time.Time) (string, time.Time) {
	if id == "" {
		id = uuid.New().String()
	}
	if ts.IsZero() {
		ts = s.now()
	}
	return id, ts
}

func historyFromOutputs(outputs auto.OutputMap) *OperationsHistory {
	out, ok := outputs[HistoryOutput]
	if !ok {
		return NewOperationsHistory()
	}

	historyStr, ok := out.Value.(string)
	if !ok {
		raw, err := json.Marshal(out.Value)
		if err != nil {
			return NewOperationsHistory()
		}
		historyStr = string(raw)
	}
	if historyStr == "" || historyStr == "{}" {
		return NewOperationsHistory()
	}

	history := NewOperationsHistory()
	if err := json.Unmarshal([]byte(historyStr), history); err != nil {
		return NewOperationsHistory()
	}
	if history.MaxEntries <= 0 {
		history.MaxEntries = DefaultMaxEntries
	}
	return history
}

// setHistoryOutput sets the history output on the stack resource of a
// serialized deployment.
func setHistoryOutput(deployment json.RawMessage, historyJSON string) (json.RawMessage, error) {
	var data map[string]interface{}
	if err := json.Unmarshal(deployment, &data); err != nil {
		return nil, fmt.Errorf("failed to parse deployment: %w", err)
	}

	resources, ok := data["resources"].([]interface{})
	if !ok {
		return nil, ErrNoStackResource
	}

	found := false
	for i, res := range resources {
		r, ok := res.(map[string]interface{})
		if !ok {
			continue
		}
		if t, _ := r["type"].(string); t != stackResourceType {
			continue
		}

		outputs, ok := r["outputs"].(map[string]interface{})
		if !ok {
			outputs = make(map[string]interface{})
		}
		outputs[HistoryOutput] = historyJSON
		r["outputs"] = outputs
		resources[i] = r
		found = true
		break
	}
	if !found {
		return nil, ErrNoStackResource
	}

	data["resources"] = resources
	modified, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal deployment: %w", err)
	}
	return modified, nil
}
