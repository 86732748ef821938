// Package restclient defines the outbound REST surface the controller
// depends on (spec §6.2) and a concrete HTTP implementation of it, modeled
// on the request/response plumbing of github.com/canonical/lxd's top-level
// client package (client/lxd.go, client/lxd_cluster.go).
package restclient

// Node health and state values reported by the head node, as seen in
// NodeStatus.NodeHealth / NodeStatus.NodeState.
const (
	NodeHealthUnapproved = "unapproved"
	NodeHealthApproved   = "approved"

	NodeStateOnline  = "online"
	NodeStateOffline = "offline"
)

// NodeStatus is the head-node-reported status of a single node, keyed by
// the well-known field names in spec §6.2.
type NodeStatus struct {
	NodeName   string
	NodeState  string
	NodeHealth string
	NodeGroup  []string
}

// IdleNode is a single entry in the check-nodes-idle response.
type IdleNode struct {
	NodeName string
}
