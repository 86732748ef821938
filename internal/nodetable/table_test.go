package nodetable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canonical/hpc-mesos-bridge/internal/nodestate"
)

func TestAddNode_SetsProvisioningState(t *testing.T) {
	tbl := New()
	now := time.Now()

	tbl.AddNode("h1.ex.com", "a1", "t1", 8.0, now)

	assert.Equal(t, nodestate.Provisioning, tbl.GetState("H1"))
	assert.Equal(t, 8.0, tbl.CoresInProvisioning())
}

func TestAddNode_HostnameIsUppercasePrefixOfFQDN(t *testing.T) {
	tbl := New()
	tbl.AddNode("h1.ex.com", "a1", "t1", 8.0, time.Now())

	snap := tbl.Snapshot()
	require.Contains(t, snap, "H1")
	assert.Equal(t, "H1", snap["H1"].Hostname)
	assert.Equal(t, "H1.EX.COM", snap["H1"].FQDN)
}

func TestAddNode_RejectsFQDNCollision(t *testing.T) {
	tbl := New()
	now := time.Now()
	tbl.AddNode("h6.ex.com", "a1", "t1", 4.0, now)
	tbl.OnHeartbeat("h6", now)
	require.Equal(t, nodestate.Configuring, tbl.GetState("H6"))

	tbl.AddNode("h6.other.com", "a2", "t2", 4.0, now)

	assert.Equal(t, nodestate.Configuring, tbl.GetState("H6"), "state must be unchanged after rejected add")
	assert.True(t, tbl.CheckFQDNCollision("h6.other.com"))
	assert.False(t, tbl.CheckFQDNCollision("h6.ex.com"))
}

func TestAddNode_ReadmitsClosedHostname(t *testing.T) {
	tbl := New()
	now := time.Now()
	tbl.AddNode("h1.ex.com", "a1", "t1", 8.0, now)
	tbl.SetState([]string{"H1"}, nodestate.Closed)

	tbl.AddNode("h1.ex.com", "a2", "t2", 8.0, now.Add(time.Hour))

	assert.Equal(t, nodestate.Provisioning, tbl.GetState("H1"))
	taskID, agentID := tbl.GetTaskInfo("H1")
	assert.Equal(t, "t2", taskID)
	assert.Equal(t, "a2", agentID)
}

func TestOnHeartbeat_ProvisioningToConfiguringOnce(t *testing.T) {
	tbl := New()
	now := time.Now()
	tbl.AddNode("h1.ex.com", "a1", "t1", 8.0, now)

	tbl.OnHeartbeat("h1", now.Add(time.Minute))
	assert.Equal(t, nodestate.Configuring, tbl.GetState("H1"))

	// A second heartbeat must not regress or otherwise touch the state.
	tbl.OnHeartbeat("h1", now.Add(2*time.Minute))
	assert.Equal(t, nodestate.Configuring, tbl.GetState("H1"))
}

func TestOnHeartbeat_DoesNotResurrectDrainingNodes(t *testing.T) {
	tbl := New()
	now := time.Now()
	tbl.AddNode("h1.ex.com", "a1", "t1", 8.0, now)
	tbl.SetState([]string{"H1"}, nodestate.Draining)

	tbl.OnHeartbeat("h1", now.Add(time.Minute))

	assert.Equal(t, nodestate.Draining, tbl.GetState("H1"))
}

func TestOnHeartbeat_UnknownHostIsDropped(t *testing.T) {
	tbl := New()
	tbl.OnHeartbeat("ghost", time.Now())
	assert.Equal(t, nodestate.Unknown, tbl.GetState("GHOST"))
}

func TestGetTaskInfo_UnknownHostReturnsEmpty(t *testing.T) {
	tbl := New()
	taskID, agentID := tbl.GetTaskInfo("ghost")
	assert.Empty(t, taskID)
	assert.Empty(t, agentID)
}

func TestCoresInProvisioning_SumsBothStates(t *testing.T) {
	tbl := New()
	now := time.Now()
	tbl.AddNode("h1.ex.com", "a1", "t1", 8.0, now)
	tbl.AddNode("h2.ex.com", "a2", "t2", 4.0, now)
	tbl.OnHeartbeat("h2", now)
	tbl.AddNode("h3.ex.com", "a3", "t3", 2.0, now)
	tbl.SetState([]string{"H3"}, nodestate.Running)

	assert.Equal(t, 12.0, tbl.CoresInProvisioning())
}

func TestSetState_SkipsUnknownAndNoopTransitions(t *testing.T) {
	tbl := New()
	now := time.Now()
	tbl.AddNode("h1.ex.com", "a1", "t1", 8.0, now)

	changed := tbl.SetState([]string{"H1", "GHOST"}, nodestate.Draining)
	assert.Equal(t, []string{"H1"}, changed)

	changed = tbl.SetState([]string{"H1"}, nodestate.Draining)
	assert.Empty(t, changed, "re-applying the same state should not count as a change")
}

func TestHostnamesInState_FiltersByState(t *testing.T) {
	tbl := New()
	now := time.Now()
	tbl.AddNode("h1.ex.com", "a1", "t1", 8.0, now)
	tbl.AddNode("h2.ex.com", "a2", "t2", 4.0, now)
	tbl.OnHeartbeat("h2", now)

	assert.ElementsMatch(t, []string{"H1"}, tbl.HostnamesInState(nodestate.Provisioning))
	assert.ElementsMatch(t, []string{"H2"}, tbl.HostnamesInState(nodestate.Configuring))
	assert.Empty(t, tbl.HostnamesInState(nodestate.Running))
}
