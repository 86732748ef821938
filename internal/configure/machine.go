// Package configure implements ConfigureMachine (spec §4.3): given a batch
// of Configuring hostnames, issue the minimal set of REST actions to bring
// them online and report which ones are now fully configured.
package configure

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/canonical/hpc-mesos-bridge/internal/logger"
	"github.com/canonical/hpc-mesos-bridge/internal/restclient"
)

// MesosGroupName and MesosGroupDescription are the well-known node group
// spec §6.2 requires the controller to ensure exists.
const (
	MesosGroupName        = "Mesos"
	MesosGroupDescription = "The Mesos compute nodes in the cluster"
)

// Machine drives the configure state machine against a restclient.Client.
type Machine struct {
	client    restclient.Client
	nodeGroup string
}

// New returns a Machine that additionally enforces membership in
// nodeGroup, or just the Mesos group if nodeGroup is empty.
func New(client restclient.Client, nodeGroup string) *Machine {
	return &Machine{client: client, nodeGroup: nodeGroup}
}

func upper(s string) string { return strings.ToUpper(s) }

func inGroups(groups []string, name string) bool {
	u := upper(name)
	for _, g := range groups {
		if upper(g) == u {
			return true
		}
	}

	return false
}

// Run executes one configure tick against hostnames and returns the subset
// that is now fully configured (online, and in every required group).
func (m *Machine) Run(ctx context.Context, hostnames []string) []string {
	if len(hostnames) == 0 {
		return nil
	}

	err := m.ensureMesosGroup(ctx)
	if err != nil {
		logger.Error("Failed ensuring Mesos node group exists, skipping configure tick", logger.Ctx{"err": err})
		return nil
	}

	if m.nodeGroup != "" {
		ok, err := m.targetGroupExists(ctx)
		if err != nil {
			logger.Error("Failed checking target node group, skipping configure tick", logger.Ctx{"err": err, "group": m.nodeGroup})
			return nil
		}

		if !ok {
			logger.Error("Target node group is not created, skipping configure tick", logger.Ctx{"group": m.nodeGroup})
			return nil
		}
	}

	statuses, err := m.client.GetNodeStatusExact(ctx, hostnames)
	if err != nil {
		logger.Error("Failed fetching node status, skipping configure tick", logger.Ctx{"err": err})
		return nil
	}

	var (
		unapproved    []string
		takeOffline   []string
		changeGroup   []string
		bringOnline   []string
		configured    []string
	)

	for _, status := range statuses {
		switch {
		case status.NodeHealth == restclient.NodeHealthUnapproved:
			unapproved = append(unapproved, status.NodeName)
		case m.notInTargetGroups(status) && status.NodeState == restclient.NodeStateOnline:
			takeOffline = append(takeOffline, status.NodeName)
		case m.notInTargetGroups(status) && status.NodeState == restclient.NodeStateOffline:
			changeGroup = append(changeGroup, status.NodeName)
		case !m.notInTargetGroups(status) && status.NodeState == restclient.NodeStateOffline:
			bringOnline = append(bringOnline, status.NodeName)
		case !m.notInTargetGroups(status) && status.NodeState == restclient.NodeStateOnline:
			configured = append(configured, status.NodeName)
		default:
			logger.Info("Node in invalid state while configuring, will revisit next tick", logger.Ctx{
				"hostname": status.NodeName,
				"state":    status.NodeState,
			})
		}
	}

	m.issueActions(ctx, unapproved, takeOffline, changeGroup, bringOnline)

	return configured
}

// notInTargetGroups mirrors the original's oddly-named
// _check_node_in_mesos_group predicate (see DESIGN.md, internal/configure):
// it reports true when status is missing from the Mesos group, OR (if a
// target group is configured) missing from that group, and so still needs
// a group assignment action. The two checks are independent: a node
// already in Mesos but absent from the configured target group must still
// be re-grouped, matching heartbeat_table.py's
// `not_in_mesos or (node_group and not_in_specified)`.
func (m *Machine) notInTargetGroups(status restclient.NodeStatus) bool {
	notInMesos := !inGroups(status.NodeGroup, MesosGroupName)
	notInSpecified := m.nodeGroup != "" && !inGroups(status.NodeGroup, m.nodeGroup)

	return notInMesos || notInSpecified
}

func (m *Machine) ensureMesosGroup(ctx context.Context) error {
	groups, err := m.client.ListNodeGroups(ctx, MesosGroupName)
	if err != nil {
		return err
	}

	if inGroups(groups, MesosGroupName) {
		return nil
	}

	return m.client.AddNodeGroup(ctx, MesosGroupName, MesosGroupDescription)
}

func (m *Machine) targetGroupExists(ctx context.Context) (bool, error) {
	groups, err := m.client.ListNodeGroups(ctx, m.nodeGroup)
	if err != nil {
		return false, err
	}

	return inGroups(groups, m.nodeGroup), nil
}

// issueActions fires the per-bucket REST calls concurrently via errgroup,
// swallowing and logging every error: nodes already classified as
// configured above must still be returned regardless of whether the
// side-effect calls for other buckets succeed (spec §4.3 step 5).
func (m *Machine) issueActions(ctx context.Context, unapproved, takeOffline, changeGroup, bringOnline []string) {
	g, gctx := errgroup.WithContext(ctx)

	logErr := func(err error) error {
		if err != nil {
			logger.Error("Exception happened while configuring compute nodes, swallowed", logger.Ctx{"err": err})
		}

		return err
	}

	if len(unapproved) > 0 {
		g.Go(func() error {
			return logErr(m.client.AssignDefaultComputeNodeTemplate(gctx, unapproved))
		})
	}

	if len(takeOffline) > 0 {
		g.Go(func() error {
			return logErr(m.client.TakeNodesOffline(gctx, takeOffline))
		})
	}

	if len(bringOnline) > 0 {
		g.Go(func() error {
			return logErr(m.client.BringNodesOnline(gctx, bringOnline))
		})
	}

	if len(changeGroup) > 0 {
		g.Go(func() error {
			err := m.client.AddNodeToNodeGroup(gctx, MesosGroupName, changeGroup)
			if err != nil {
				return logErr(err)
			}

			if m.nodeGroup != "" {
				return logErr(m.client.AddNodeToNodeGroup(gctx, m.nodeGroup, changeGroup))
			}

			return nil
		})
	}

	// Each bucket has already logged its own failure above.
	_ = g.Wait()
}
