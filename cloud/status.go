package cloud

import "strings"

// A NodeState is the provider-neutral state a node can be in. Valid values
// are the NodeState… constants defined in this package.
type NodeState string

const (
	// NodeStatePending is the state of a node that has been accepted but has
	// not started provisioning machines yet.
	NodeStatePending NodeState = "pending"

	// NodeStateRebooting is the state of a node whose machines are being
	// (re)provisioned or rebooted.
	NodeStateRebooting NodeState = "rebooting"

	// NodeStateRunning is the state of a node whose machines are up.
	NodeStateRunning NodeState = "running"

	// NodeStateStopped is the state of a node whose machines are powered
	// off but not removed.
	NodeStateStopped NodeState = "stopped"

	// NodeStateTerminated is the state of a node that is done, cancelled or
	// removed.
	NodeStateTerminated NodeState = "terminated"

	// NodeStateError is the state of a node that aborted or failed.
	NodeStateError NodeState = "error"

	// NodeStatePaused is the state of a node whose machines are paused or
	// suspended.
	NodeStatePaused NodeState = "paused"

	// NodeStateUnknown is reported for any upstream status this package
	// doesn't recognize.
	NodeStateUnknown NodeState = "unknown"
)

// nodeStateMap maps lowercase upstream status strings to neutral states. The
// first group covers deployment statuses, the second the statuses reported
// for individual virtual machines.
var nodeStateMap = map[string]NodeState{
	"initializing":   NodeStatePending,
	"provisioning":   NodeStateRebooting,
	"executing":      NodeStateRunning,
	"sendingreports": NodeStateRunning,
	"ready":          NodeStateRunning,
	"finalizing":     NodeStateRunning,
	"done":           NodeStateTerminated,
	"aborted":        NodeStateError,
	"cancelled":      NodeStateTerminated,

	"rebooting":  NodeStateRebooting,
	"poweroff":   NodeStateStopped,
	"running":    NodeStateRunning,
	"stopped":    NodeStateStopped,
	"deleted":    NodeStateTerminated,
	"terminated": NodeStateTerminated,
	"error":      NodeStateError,
	"stopping":   NodeStateRunning,
	"failed":     NodeStateError,
	"pending":    NodeStatePending,
	"paused":     NodeStatePaused,
	"suspended":  NodeStatePaused,
}

// NodeStateFromStatus maps an upstream status string to a NodeState. The
// mapping is total: unrecognized statuses map to NodeStateUnknown.
func NodeStateFromStatus(status string) NodeState {
	if state, ok := nodeStateMap[strings.ToLower(status)]; ok {
		return state
	}
	return NodeStateUnknown
}
