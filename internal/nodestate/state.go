// Package nodestate defines the lifecycle states a cluster node moves
// through, from first sighting to removal.
package nodestate

// State is a node's position in the lifecycle state machine.
type State int

const (
	// Unknown is returned for hostnames the table has never seen.
	Unknown State = iota
	// Provisioning is the initial state set by AddNode, before the first heartbeat.
	Provisioning
	// Configuring is entered on the first heartbeat; the node is not yet
	// online in the head node's node groups.
	Configuring
	// Running is the steady state once the configure state machine has
	// brought the node fully online.
	Running
	// Draining means the node has been asked to stop accepting work.
	Draining
	// Closing means the node has been observed offline and is being removed
	// from the head node.
	Closing
	// Closed is terminal: the node has been removed from the head node.
	Closed
)

var names = [...]string{
	"Unknown",
	"Provisioning",
	"Configuring",
	"Running",
	"Draining",
	"Closing",
	"Closed",
}

// String renders the state the way log call sites expect it, rather than
// printing the bare ordinal.
func (s State) String() string {
	if s < 0 || int(s) >= len(names) {
		return "Unknown"
	}

	return names[s]
}
