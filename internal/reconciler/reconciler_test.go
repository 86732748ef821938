package reconciler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canonical/hpc-mesos-bridge/internal/nodestate"
	"github.com/canonical/hpc-mesos-bridge/internal/nodetable"
	"github.com/canonical/hpc-mesos-bridge/internal/restclient"
	"github.com/canonical/hpc-mesos-bridge/internal/restclient/restclienttest"
)

func newTestReconciler(client *restclienttest.Fake) (*nodetable.Table, *Reconciler) {
	tbl := nodetable.New()
	r := New(tbl, client, "", 15*time.Minute, 3*time.Minute, 180*time.Second)
	return tbl, r
}

func TestTick_ConfiguringNodeBecomesRunningOnceRESTConfirms(t *testing.T) {
	client := restclienttest.New()
	tbl, r := newTestReconciler(client)
	now := time.Now()

	tbl.AddNode("h1.ex.com", "a1", "t1", 8.0, now)
	tbl.OnHeartbeat("h1", now)
	require.Equal(t, nodestate.Configuring, tbl.GetState("H1"))

	client.SetNodeStatus(restclient.NodeStatus{NodeName: "H1", NodeHealth: restclient.NodeHealthApproved, NodeState: restclient.NodeStateOnline, NodeGroup: []string{"Mesos"}})

	r.Tick(context.Background(), now)

	assert.Equal(t, nodestate.Running, tbl.GetState("H1"))
}

func TestTick_ProvisioningTimeoutDrainsThenCloses(t *testing.T) {
	client := restclienttest.New()
	tbl, r := newTestReconciler(client)
	t0 := time.Now()

	tbl.AddNode("h1.ex.com", "a1", "t1", 8.0, t0)
	require.Equal(t, nodestate.Provisioning, tbl.GetState("H1"))

	later := t0.Add(16 * time.Minute)
	client.SetNodeStatus(restclient.NodeStatus{NodeName: "H1", NodeHealth: restclient.NodeHealthApproved, NodeState: restclient.NodeStateOnline})

	r.Tick(context.Background(), later)
	assert.Equal(t, nodestate.Draining, tbl.GetState("H1"), "online node should be drained, not yet closed, in the tick it is first observed")

	var closed []string
	r.Subscribe(func(hostnames []string) { closed = hostnames })

	// TakeNodesOffline issued during the previous tick already flipped the
	// fake head node's status to offline, so this tick both drains and
	// closes the node.
	r.Tick(context.Background(), later.Add(time.Second))

	assert.Equal(t, nodestate.Closed, tbl.GetState("H1"))
	assert.Equal(t, []string{"H1"}, closed)
}

func TestTick_HeartbeatTimeoutDrainsRunningNode(t *testing.T) {
	client := restclienttest.New()
	tbl, r := newTestReconciler(client)
	t0 := time.Now()

	tbl.AddNode("h1.ex.com", "a1", "t1", 8.0, t0)
	tbl.OnHeartbeat("h1", t0)
	tbl.SetState([]string{"H1"}, nodestate.Running)

	client.SetNodeStatus(restclient.NodeStatus{NodeName: "H1", NodeHealth: restclient.NodeHealthApproved, NodeState: restclient.NodeStateOffline})

	r.Tick(context.Background(), t0.Add(3*time.Minute))

	assert.Equal(t, nodestate.Closed, tbl.GetState("H1"), "heartbeat loss drains the node; it was already offline so a single tick drains, closes and removes it")
}

func TestTick_IdleRunningNodeEventuallyDrains(t *testing.T) {
	client := restclienttest.New()
	tbl := nodetable.New()
	// A heartbeat timeout longer than the idle window, so the idle clock is
	// what trips here rather than heartbeat loss.
	r := New(tbl, client, "", 15*time.Minute, 10*time.Minute, 180*time.Second)
	t0 := time.Now()

	tbl.AddNode("h1.ex.com", "a1", "t1", 8.0, t0)
	tbl.OnHeartbeat("h1", t0)
	tbl.SetState([]string{"H1"}, nodestate.Running)
	client.SetNodeStatus(restclient.NodeStatus{NodeName: "H1", NodeHealth: restclient.NodeHealthApproved, NodeState: restclient.NodeStateOnline})
	client.SetIdle("H1", true)

	r.Tick(context.Background(), t0.Add(time.Minute))
	assert.Equal(t, nodestate.Running, tbl.GetState("H1"), "idle window not yet exceeded")

	r.Tick(context.Background(), t0.Add(time.Minute+181*time.Second))
	assert.Equal(t, nodestate.Draining, tbl.GetState("H1"))
}

func TestTick_ReDrainsNodeThatCameBackOnlineDuringClose(t *testing.T) {
	client := restclienttest.New()
	tbl, r := newTestReconciler(client)
	t0 := time.Now()

	tbl.AddNode("h1.ex.com", "a1", "t1", 8.0, t0)
	tbl.SetState([]string{"H1"}, nodestate.Closing)

	client.SetNodeStatus(restclient.NodeStatus{NodeName: "H1", NodeHealth: restclient.NodeHealthApproved, NodeState: restclient.NodeStateOnline})

	r.Tick(context.Background(), t0)

	assert.Equal(t, nodestate.Draining, tbl.GetState("H1"), "node drifted back online during close, so it must be re-drained rather than closed")
}

func TestTick_CallbackPanicDoesNotSuppressOtherCallbacks(t *testing.T) {
	client := restclienttest.New()
	tbl, r := newTestReconciler(client)
	t0 := time.Now()

	tbl.AddNode("h1.ex.com", "a1", "t1", 8.0, t0)
	tbl.SetState([]string{"H1"}, nodestate.Closing)

	var secondCalled []string
	r.Subscribe(func(hostnames []string) { panic("boom") })
	r.Subscribe(func(hostnames []string) { secondCalled = hostnames })

	r.Tick(context.Background(), t0)

	assert.Equal(t, []string{"H1"}, secondCalled)
}
