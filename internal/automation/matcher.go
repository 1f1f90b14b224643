package automation

import (
	"strings"
)

// Matcher finds send-button candidates in a window tree.
type Matcher interface {
	Name() string
	Match(root *Node) []*Node
}

// SendLabels are the send-button descriptions across supported locales.
var SendLabels = []string{
	"envoyer", // fr
	"send",    // en
	"enviar",  // es, pt
	"senden",  // de
	"invia",   // it
}

// DefaultSendViewID is the send button of WhatsApp Business.
const DefaultSendViewID = "com.whatsapp.w4b:id/send"

// DescriptionMatcher matches nodes whose content description contains one of
// Labels, case-insensitively.
type DescriptionMatcher struct {
	Labels []string
}

func (m DescriptionMatcher) Name() string { return "description" }

func (m DescriptionMatcher) Match(root *Node) []*Node {
	return collect(root, func(n *Node) bool {
		return containsAny(n.ContentDescription, m.Labels)
	})
}

// ViewIDMatcher matches nodes by resource id.
type ViewIDMatcher struct {
	ViewID string
}

func (m ViewIDMatcher) Name() string { return "view_id" }

func (m ViewIDMatcher) Match(root *Node) []*Node {
	return collect(root, func(n *Node) bool {
		return m.ViewID != "" && n.ViewID == m.ViewID
	})
}

// ImageButtonMatcher is the last-resort heuristic: image buttons and views
// with no description or a send-like one.
type ImageButtonMatcher struct {
	Labels []string
}

func (m ImageButtonMatcher) Name() string { return "image_button" }

func (m ImageButtonMatcher) Match(root *Node) []*Node {
	return collect(root, func(n *Node) bool {
		if !strings.Contains(n.ClassName, "ImageButton") && !strings.Contains(n.ClassName, "ImageView") {
			return false
		}
		desc := strings.TrimSpace(n.ContentDescription)
		return desc == "" || containsAny(desc, m.Labels)
	})
}

// DefaultMatchers returns the strategies in priority order.
func DefaultMatchers() []Matcher {
	return []Matcher{
		DescriptionMatcher{Labels: SendLabels},
		ViewIDMatcher{ViewID: DefaultSendViewID},
		ImageButtonMatcher{Labels: SendLabels},
	}
}

// FindCandidates runs matchers in order and returns the candidates of the
// first one that yields any, with the name of that matcher.
func FindCandidates(root *Node, matchers []Matcher) ([]*Node, string) {
	if root == nil {
		return nil, ""
	}
	for _, m := range matchers {
		if found := m.Match(root); len(found) > 0 {
			return found, m.Name()
		}
	}
	return nil, ""
}

// collect returns clickable, enabled nodes accepted by keep.
func collect(root *Node, keep func(*Node) bool) []*Node {
	var out []*Node
	root.Walk(func(n *Node) {
		if n.Clickable && n.Enabled && keep(n) {
			out = append(out, n)
		}
	})
	return out
}

func containsAny(s string, labels []string) bool {
	lower := strings.ToLower(s)
	if lower == "" {
		return false
	}
	for _, label := range labels {
		if label != "" && strings.Contains(lower, strings.ToLower(label)) {
			return true
		}
	}
	return false
}
