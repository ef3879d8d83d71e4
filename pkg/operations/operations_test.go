package operations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/pulumi/pulumi/sdk/v3/go/auto"
	"github.com/pulumi/pulumi/sdk/v3/go/common/apitype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeState struct {
	deployment json.RawMessage
	imported   int
	exportErr  error
}

func newFakeState(t *testing.T, outputs map[string]interface{}) *fakeState {
	t.Helper()
	data := map[string]interface{}{
		"manifest": map[string]interface{}{"time": "2026-10-01T10:00:00Z"},
		"resources": []interface{}{
			map[string]interface{}{
				"urn":     "urn:pulumi:prod::mcserver::pulumi:pulumi:Stack::mcserver-prod",
				"type":    "pulumi:pulumi:Stack",
				"outputs": outputs,
			},
			map[string]interface{}{
				"urn":  "urn:pulumi:prod::mcserver::aws:ec2/instance:Instance::mcserver-instance",
				"type": "aws:ec2/instance:Instance",
			},
		},
	}
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return &fakeState{deployment: raw}
}

func (f *fakeState) Outputs(ctx context.Context) (auto.OutputMap, error) {
	var data struct {
		Resources []struct {
			Type    string                 `json:"type"`
			Outputs map[string]interface{} `json:"outputs"`
		} `json:"resources"`
	}
	if err := json.Unmarshal(f.deployment, &data); err != nil {
		return nil, err
	}
	out := auto.OutputMap{}
	for _, r := range data.Resources {
		if r.Type != "pulumi:pulumi:Stack" {
			continue
		}
		for k, v := range r.Outputs {
			out[k] = auto.OutputValue{Value: v}
		}
	}
	return out, nil
}

func (f *fakeState) Export(ctx context.Context) (apitype.UntypedDeployment, error) {
	if f.exportErr != nil {
		return apitype.UntypedDeployment{}, f.exportErr
	}
	return apitype.UntypedDeployment{Version: 3, Deployment: f.deployment}, nil
}

func (f *fakeState) Import(ctx context.Context, state apitype.UntypedDeployment) error {
	f.imported++
	f.deployment = state.Deployment
	return nil
}

func TestOperationsHistory_FIFOPruning(t *testing.T) {
	h := NewOperationsHistory()
	h.MaxEntries = 3

	for i := 0; i < 5; i++ {
		h.AddDeploy(DeployEntry{ID: fmt.Sprintf("d%d", i), Status: StatusSuccess})
	}

	require.Len(t, h.DeployHistory, 3)
	assert.Equal(t, "d2", h.DeployHistory[0].ID)
	assert.Equal(t, "d4", h.GetLatestDeploy().ID)
}

func TestOperationsHistory_Queries(t *testing.T) {
	h := NewOperationsHistory()
	assert.Nil(t, h.GetLatestDeploy())
	assert.Nil(t, h.GetLatestHealth())

	h.AddDeploy(DeployEntry{ID: "a", Status: StatusSuccess})
	h.AddDeploy(DeployEntry{ID: "b", Status: StatusFailed})
	h.AddDestroy(DestroyEntry{ID: "c", Status: StatusFailed})
	h.AddHealth(HealthEntry{ID: "d", OverallStatus: "healthy"})
	h.AddPreflight(PreflightEntry{ID: "e", OverallStatus: "passed"})

	assert.Equal(t, 5, h.TotalOperations())
	failed := h.GetDeploysByStatus(StatusFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, "b", failed[0].ID)
	assert.Equal(t, "d", h.GetLatestHealth().ID)

	h.Clear()
	assert.Zero(t, h.TotalOperations())
}

func TestStore_LoadEmpty(t *testing.T) {
	store := NewStore(newFakeState(t, map[string]interface{}{"publicIp": "3.120.7.14"}))

	h, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Zero(t, h.TotalOperations())
	assert.Equal(t, DefaultMaxEntries, h.MaxEntries)
}

func TestStore_LoadCorrupt(t *testing.T) {
	store := NewStore(newFakeState(t, map[string]interface{}{HistoryOutput: "{not json"}))

	h, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Zero(t, h.TotalOperations())
}

func TestStore_AddDeployRoundTrip(t *testing.T) {
	state := newFakeState(t, map[string]interface{}{"publicIp": "3.120.7.14"})
	store := NewStore(state)
	fixed := time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }
	ctx := context.Background()

	h, err := store.Load(ctx)
	require.NoError(t, err)

	err = store.AddDeploy(ctx, h, DeployEntry{
		Operation:       "up",
		InstanceSize:    "t3.medium",
		XMX:             "3072",
		XMS:             "3072",
		PublicIP:        "3.120.7.14",
		Status:          StatusSuccess,
		ResourceChanges: map[string]int{"create": 7},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, state.imported)

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	entry := loaded.GetLatestDeploy()
	require.NotNil(t, entry)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, fixed, entry.Timestamp)
	assert.Equal(t, "t3.medium", entry.InstanceSize)
	assert.Equal(t, 7, entry.ResourceChanges["create"])

	outputs, err := state.Outputs(ctx)
	require.NoError(t, err)
	assert.Equal(t, "3.120.7.14", outputs["publicIp"].Value, "other outputs are preserved")
}

func TestStore_SaveWithoutStackResource(t *testing.T) {
	state := &fakeState{deployment: json.RawMessage(`{"resources": []}`)}

	err := NewStore(state).AddHealth(context.Background(), NewOperationsHistory(), HealthEntry{OverallStatus: "healthy"})
	assert.ErrorIs(t, err, ErrNoStackResource)
	assert.Zero(t, state.imported)
}

func TestStore_SaveExportError(t *testing.T) {
	state := newFakeState(t, nil)
	state.exportErr = errors.New("backend unreachable")

	err := NewStore(state).Save(context.Background(), NewOperationsHistory())
	assert.ErrorContains(t, err, "backend unreachable")
}

func TestSetHistoryOutput_KeepsOtherResources(t *testing.T) {
	state := newFakeState(t, nil)

	modified, err := setHistoryOutput(state.deployment, `{"maxEntries":50}`)
	require.NoError(t, err)

	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(modified, &data))
	resources := data["resources"].([]interface{})
	require.Len(t, resources, 2)
	stack := resources[0].(map[string]interface{})
	assert.Equal(t, `{"maxEntries":50}`, stack["outputs"].(map[string]interface{})[HistoryOutput])
	assert.NotNil(t, data["manifest"])
}

func TestForStack_RequiresName(t *testing.T) {
	_, err := ForStack(context.Background(), "")
	assert.Error(t, err)
}
