package fleet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"

	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

func TestSimulatedFleet_ScaleUpAndDown(t *testing.T) {
	ctx := context.Background()
	f := NewSimulatedFleet(SimulatedConfig{FleetID: "web", InitialInstances: 3})

	n, err := f.CurrentInstanceCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, f.SetDesiredInstanceCount(ctx, 6))
	state := f.State()
	assert.Equal(t, 6, state.ActiveServers)
	assert.True(t, state.Converged())

	require.NoError(t, f.SetDesiredInstanceCount(ctx, 2))
	n, _ = f.CurrentInstanceCount(ctx)
	assert.Equal(t, 2, n)

	// the three original instances are released last
	var terminated int
	for _, inst := range f.Instances() {
		if inst.State == models.InstanceTerminated {
			terminated++
			assert.NotNil(t, inst.TerminatedAt)
		}
	}
	assert.Equal(t, 4, terminated)
	assert.Equal(t, 4, f.Cleanup())
	assert.Len(t, f.Instances(), 2)
}

func TestSimulatedFleet_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := NewSimulatedFleet(SimulatedConfig{InitialInstances: 4})

	require.NoError(t, f.SetDesiredInstanceCount(ctx, 4))
	require.NoError(t, f.SetDesiredInstanceCount(ctx, 4))
	assert.Equal(t, 0, f.Mutations())
	assert.Len(t, f.Instances(), 4)
}

func TestSimulatedFleet_InvalidAndInjectedFailure(t *testing.T) {
	ctx := context.Background()
	f := NewSimulatedFleet(SimulatedConfig{InitialInstances: 2})

	assert.ErrorIs(t, f.SetDesiredInstanceCount(ctx, -1), ErrInvalidTarget)

	f.FailNext(errors.New("quota exceeded"))
	assert.ErrorIs(t, f.SetDesiredInstanceCount(ctx, 5), ErrScalingFailed)
	n, _ := f.CurrentInstanceCount(ctx)
	assert.Equal(t, 2, n, "failed request leaves the fleet unchanged")

	require.NoError(t, f.SetDesiredInstanceCount(ctx, 5))
	n, _ = f.CurrentInstanceCount(ctx)
	assert.Equal(t, 5, n)
}

func TestSimulatedFleet_AsyncTransitions(t *testing.T) {
	ctx := context.Background()
	var changes atomic.Int32
	f := NewSimulatedFleet(SimulatedConfig{
		InitialInstances: 1,
		ProvisionTime:    20 * time.Millisecond,
		DrainTime:        20 * time.Millisecond,
		Callbacks: StateCallbacks{
			OnStateChanged: func(models.Instance, models.InstanceState, models.InstanceState) { changes.Add(1) },
		},
	})

	require.NoError(t, f.SetDesiredInstanceCount(ctx, 3))
	state := f.State()
	assert.Equal(t, 2, state.ProvisioningCnt)
	assert.Equal(t, 3, state.Running())

	assert.Eventually(t, func() bool { return f.State().ActiveServers == 3 }, time.Second, 5*time.Millisecond)

	require.NoError(t, f.SetDesiredInstanceCount(ctx, 1))
	assert.Equal(t, 2, f.State().DrainingCount)
	assert.Eventually(t, func() bool { return f.State().TotalServers == 1 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return changes.Load() >= 7 }, time.Second, 5*time.Millisecond)
}

func TestHTTPFleet(t *testing.T) {
	var desired atomic.Int32
	var refreshed atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /fleet/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "web", r.PathValue("id"))
		var req DesiredRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		desired.Store(int32(req.Desired))
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /fleet/{id}", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(models.FleetState{FleetID: "web", ActiveServers: 3, ProvisioningCnt: 2, DrainingCount: 1})
	})
	mux.HandleFunc("POST /lb/{id}/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshed.Add(1)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := HTTPConfig{Endpoint: server.URL, FleetID: "web"}
	f := NewHTTPFleet(cfg)
	ctx := context.Background()

	require.NoError(t, f.SetDesiredInstanceCount(ctx, 7))
	assert.Equal(t, int32(7), desired.Load())

	n, err := f.CurrentInstanceCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	require.NoError(t, NewHTTPLoadBalancer(cfg).RefreshMembers(ctx))
	assert.Equal(t, int32(1), refreshed.Load())
}

func TestHTTPFleet_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "capacity exhausted", http.StatusConflict)
	}))
	defer server.Close()

	f := NewHTTPFleet(HTTPConfig{Endpoint: server.URL, FleetID: "web"})
	err := f.SetDesiredInstanceCount(context.Background(), 3)
	assert.ErrorIs(t, err, ErrScalingFailed)
	assert.Contains(t, err.Error(), "capacity exhausted")

	unreachable := NewHTTPFleet(HTTPConfig{Endpoint: "http://127.0.0.1:1", FleetID: "web", Timeout: 100 * time.Millisecond})
	_, err = unreachable.CurrentInstanceCount(context.Background())
	assert.ErrorIs(t, err, ErrFleetUnavailable)

	assert.NoError(t, NoopLoadBalancer{}.RefreshMembers(context.Background()))
}

func deployment(replicas int32) *appsv1.Deployment {
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: "web", Namespace: "prod"},
		Spec:       appsv1.DeploymentSpec{Replicas: &replicas},
	}
}

func countVerb(client *fake.Clientset, verb string) int {
	n := 0
	for _, a := range client.Actions() {
		if a.GetVerb() == verb {
			n++
		}
	}
	return n
}

func TestKubernetesFleet_Scales(t *testing.T) {
	ctx := context.Background()
	client := fake.NewSimpleClientset(deployment(3))
	f := NewKubernetesFleet(client, KubernetesConfig{Namespace: "prod", Deployment: "web"})

	n, err := f.CurrentInstanceCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, f.SetDesiredInstanceCount(ctx, 6))
	n, err = f.CurrentInstanceCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, 1, countVerb(client, "update"))
}

func TestKubernetesFleet_IdempotentAtTarget(t *testing.T) {
	ctx := context.Background()
	client := fake.NewSimpleClientset(deployment(4))
	f := NewKubernetesFleet(client, KubernetesConfig{Namespace: "prod", Deployment: "web"})

	require.NoError(t, f.SetDesiredInstanceCount(ctx, 4))
	require.NoError(t, f.SetDesiredInstanceCount(ctx, 4))
	assert.Equal(t, 0, countVerb(client, "update"))
}

func TestKubernetesFleet_RetriesConflicts(t *testing.T) {
	ctx := context.Background()
	client := fake.NewSimpleClientset(deployment(2))
	var conflicts atomic.Int32
	client.PrependReactor("update", "deployments", func(k8stesting.Action) (bool, runtime.Object, error) {
		if conflicts.Add(1) == 1 {
			return true, nil, apierrors.NewConflict(schema.GroupResource{Group: "apps", Resource: "deployments"}, "web", errors.New("stale"))
		}
		return false, nil, nil
	})

	f := NewKubernetesFleet(client, KubernetesConfig{Namespace: "prod", Deployment: "web"})
	require.NoError(t, f.SetDesiredInstanceCount(ctx, 5))

	n, err := f.CurrentInstanceCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, int32(2), conflicts.Load())
}

func TestKubernetesFleet_MissingDeployment(t *testing.T) {
	f := NewKubernetesFleet(fake.NewSimpleClientset(), KubernetesConfig{Deployment: "web"})

	assert.ErrorIs(t, f.SetDesiredInstanceCount(context.Background(), 3), ErrScalingFailed)
	_, err := f.CurrentInstanceCount(context.Background())
	assert.ErrorIs(t, err, ErrFleetUnavailable)
}
