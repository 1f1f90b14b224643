package automation

import "context"

// Node is a snapshot of one element of the target app's accessibility tree.
type Node struct {
	ID                 string `json:"id"`
	ClassName          string `json:"className"`
	ContentDescription string `json:"contentDescription"`
	ViewID             string `json:"viewId"`
	Clickable          bool   `json:"clickable"`
	Enabled            bool   `json:"enabled"`
	Children           []Node `json:"children,omitempty"`
}

// Walk visits n and its descendants depth-first, in document order.
func (n *Node) Walk(visit func(*Node)) {
	if n == nil {
		return
	}
	visit(n)
	for i := range n.Children {
		n.Children[i].Walk(visit)
	}
}

// Host is the platform side of the driver: it exposes the active window and
// performs actions on it.
type Host interface {
	// ActiveRoot returns the root of the active window, or nil when none.
	ActiveRoot(ctx context.Context) (*Node, error)
	// Click performs a click on the node and reports whether it was performed.
	Click(ctx context.Context, nodeID string) (bool, error)
	GlobalHome(ctx context.Context) error
}

// UIEvent is a window change reported by the platform.
type UIEvent struct {
	Package string `json:"package"`
	Type    string `json:"eventType"`
}

// Event types the driver acts on.
const (
	EventWindowStateChanged   = "WINDOW_STATE_CHANGED"
	EventWindowContentChanged = "WINDOW_CONTENT_CHANGED"
)
