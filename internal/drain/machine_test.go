package drain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/canonical/hpc-mesos-bridge/internal/restclient"
	"github.com/canonical/hpc-mesos-bridge/internal/restclient/restclienttest"
)

func TestDrainStep_OnlineTakenOffline_OfflineDrained(t *testing.T) {
	client := restclienttest.New()
	m := New(client)
	ctx := context.Background()

	client.SetNodeStatus(restclient.NodeStatus{NodeName: "H1", NodeState: restclient.NodeStateOnline})
	client.SetNodeStatus(restclient.NodeStatus{NodeName: "H2", NodeState: restclient.NodeStateOffline})

	drained := m.DrainStep(ctx, []string{"H1", "H2"})

	assert.Equal(t, []string{"H2"}, drained)
	assert.Contains(t, client.Calls, "TakeNodesOffline:[H1]")
}

func TestDrainStep_DrainedReturnedDespiteTakeOfflineFailure(t *testing.T) {
	client := restclienttest.New()
	client.Err = errors.New("boom")
	client.ErrOnPrefix = "TakeNodesOffline"
	m := New(client)
	ctx := context.Background()

	client.SetNodeStatus(restclient.NodeStatus{NodeName: "H1", NodeState: restclient.NodeStateOnline})
	client.SetNodeStatus(restclient.NodeStatus{NodeName: "H2", NodeState: restclient.NodeStateOffline})

	drained := m.DrainStep(ctx, []string{"H1", "H2"})

	assert.Equal(t, []string{"H2"}, drained)
}

func TestCloseStep_RemovesOfflineNodes(t *testing.T) {
	client := restclienttest.New()
	m := New(client)
	ctx := context.Background()

	client.SetNodeStatus(restclient.NodeStatus{NodeName: "H1", NodeState: restclient.NodeStateOffline})

	closed, reDrain := m.CloseStep(ctx, []string{"H1"})

	assert.Equal(t, []string{"H1"}, closed)
	assert.Empty(t, reDrain)
	assert.Contains(t, client.Calls, "RemoveNodes:[H1]")
}

func TestCloseStep_ReDrainsNodeThatDriftedBackOnline(t *testing.T) {
	client := restclienttest.New()
	m := New(client)
	ctx := context.Background()

	client.SetNodeStatus(restclient.NodeStatus{NodeName: "H5", NodeState: restclient.NodeStateOnline})

	closed, reDrain := m.CloseStep(ctx, []string{"H5"})

	assert.Empty(t, closed)
	assert.Equal(t, []string{"H5"}, reDrain)
}

func TestCloseStep_UnapprovedIsAlreadyGone(t *testing.T) {
	client := restclienttest.New()
	m := New(client)
	ctx := context.Background()

	client.SetNodeStatus(restclient.NodeStatus{NodeName: "H2", NodeHealth: restclient.NodeHealthUnapproved})

	closed, reDrain := m.CloseStep(ctx, []string{"H2"})

	assert.Equal(t, []string{"H2"}, closed)
	assert.Empty(t, reDrain)
}

func TestCloseStep_MissingFromStatusIsAlreadyRemoved(t *testing.T) {
	client := restclienttest.New()
	m := New(client)
	ctx := context.Background()

	// H1 was never registered with the fake head node at all.
	closed, reDrain := m.CloseStep(ctx, []string{"H1"})

	assert.Equal(t, []string{"H1"}, closed)
	assert.Empty(t, reDrain)
}

func TestCloseStep_ClosedReportedRegardlessOfRemoveOutcome(t *testing.T) {
	client := restclienttest.New()
	client.Err = errors.New("boom")
	client.ErrOnPrefix = "RemoveNodes"
	m := New(client)
	ctx := context.Background()

	client.SetNodeStatus(restclient.NodeStatus{NodeName: "H1", NodeState: restclient.NodeStateOffline})

	closed, _ := m.CloseStep(ctx, []string{"H1"})

	assert.Equal(t, []string{"H1"}, closed)
}
