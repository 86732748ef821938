// Package drain implements DrainCloseMachine (spec §4.4): driving Draining
// nodes to offline, then Closing nodes to fully removed.
package drain

import (
	"context"

	"github.com/canonical/hpc-mesos-bridge/internal/logger"
	"github.com/canonical/hpc-mesos-bridge/internal/restclient"
)

// Machine drives the drain/close state machines against a restclient.Client.
type Machine struct {
	client restclient.Client
}

// New returns a Machine bound to client.
func New(client restclient.Client) *Machine {
	return &Machine{client: client}
}

// DrainStep takes a batch of Draining hostnames and returns the subset
// observed offline (ready to advance to Closing).
func (m *Machine) DrainStep(ctx context.Context, hostnames []string) []string {
	if len(hostnames) == 0 {
		return nil
	}

	statuses, err := m.client.GetNodeStatusExact(ctx, hostnames)
	if err != nil {
		logger.Error("Failed fetching node status while draining, will retry next tick", logger.Ctx{"err": err})
		return nil
	}

	var takeOffline, drained []string
	for _, status := range statuses {
		switch status.NodeState {
		case restclient.NodeStateOnline:
			takeOffline = append(takeOffline, status.NodeName)
		case restclient.NodeStateOffline:
			drained = append(drained, status.NodeName)
		default:
			logger.Info("Node in invalid state while draining, will revisit next tick", logger.Ctx{
				"hostname": status.NodeName,
				"state":    status.NodeState,
			})
		}
	}

	if len(takeOffline) > 0 {
		err := m.client.TakeNodesOffline(ctx, takeOffline)
		if err != nil {
			logger.Error("Exception happened while draining compute nodes, swallowed", logger.Ctx{"err": err})
		}
	}

	return drained
}

// CloseStep takes a batch of Closing hostnames and returns the names that
// are now fully closed (removed, or already gone) and the names that
// turned out to still be online and must re-enter Draining.
func (m *Machine) CloseStep(ctx context.Context, hostnames []string) (closed, reDrain []string) {
	if len(hostnames) == 0 {
		return nil, nil
	}

	statuses, err := m.client.GetNodeStatusExact(ctx, hostnames)
	if err != nil {
		logger.Error("Failed fetching node status while closing, will retry next tick", logger.Ctx{"err": err})
		return nil, nil
	}

	seen := make(map[string]bool, len(statuses))
	var toRemove []string

	for _, status := range statuses {
		seen[status.NodeName] = true

		switch {
		case status.NodeHealth == restclient.NodeHealthUnapproved:
			closed = append(closed, status.NodeName)
		case status.NodeState != restclient.NodeStateOffline:
			reDrain = append(reDrain, status.NodeName)
		default:
			toRemove = append(toRemove, status.NodeName)
		}
	}

	// Hostnames absent from the head node's response entirely are treated
	// as already removed.
	for _, hostname := range hostnames {
		if !seen[hostname] {
			closed = append(closed, hostname)
		}
	}

	if len(toRemove) > 0 {
		err := m.client.RemoveNodes(ctx, toRemove)
		if err != nil {
			logger.Error("Exception happened while removing compute nodes, swallowed", logger.Ctx{"err": err})
		}

		// Names handed to remove_nodes are reported closed regardless of
		// the call's outcome; the next tick re-verifies via status.
		closed = append(closed, toRemove...)
	}

	return closed, reDrain
}
