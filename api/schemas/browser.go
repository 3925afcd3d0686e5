package schemas

import (
	"strings"
)

// -- Element References --

// ElementRef is a live reference to a DOM element together with a snapshot of
// the properties captured when it was found. Handle is owned by the driver
// that produced the reference and must only be passed back to that driver.
// References are transient: a navigation or re-render can invalidate them.
type ElementRef struct {
	Tag        string
	Attributes map[string]string
	// Text is the trimmed visible text of the element.
	Text string
	// Value is the trimmed value property (inputs).
	Value  string
	Handle interface{}
}

// Attr returns an attribute from the snapshot.
func (e ElementRef) Attr(name string) (string, bool) {
	if e.Attributes == nil {
		return "", false
	}
	v, ok := e.Attributes[name]
	return v, ok
}

// ID returns the id attribute, or "".
func (e ElementRef) ID() string {
	v, _ := e.Attr("id")
	return v
}

// Name returns the name attribute, or "".
func (e ElementRef) Name() string {
	v, _ := e.Attr("name")
	return v
}

// Describe renders a short human readable description for logs.
func (e ElementRef) Describe() string {
	var sb strings.Builder
	sb.WriteString(strings.ToLower(e.Tag))
	if id := e.ID(); id != "" {
		sb.WriteString("#" + id)
	}
	if name := e.Name(); name != "" {
		sb.WriteString(`[name="` + name + `"]`)
	}
	if e.Text != "" {
		sb.WriteString(` "` + e.Text + `"`)
	} else if e.Value != "" {
		sb.WriteString(` value="` + e.Value + `"`)
	}
	return sb.String()
}

// -- Context Paths --

// StepKind distinguishes the traversal steps of a ContextPath.
type StepKind int

const (
	// StepShadowHost records the lookup of a shadow host and its root. It
	// does not change the current browsing context.
	StepShadowHost StepKind = iota + 1
	// StepFrame switches into an embedded frame.
	StepFrame
)

func (k StepKind) String() string {
	switch k {
	case StepShadowHost:
		return "shadow-host"
	case StepFrame:
		return "frame"
	default:
		return "unknown"
	}
}

// PathStep is a single traversal step from the top-level document.
type PathStep struct {
	Kind StepKind
	// Ref is the shadow host or frame element the step went through.
	Ref ElementRef
}

// ContextPath is the ordered sequence of steps taken from the top-level
// document to reach a subtree. An empty path means the top-level document.
// It is never persisted; each search recomputes it.
type ContextPath []PathStep

// String renders the path as "top > shadow-host(x) > frame(y)".
func (p ContextPath) String() string {
	parts := []string{"top"}
	for _, step := range p {
		parts = append(parts, step.Kind.String()+"("+step.Ref.Describe()+")")
	}
	return strings.Join(parts, " > ")
}

// Frames returns the number of frame switches in the path.
func (p ContextPath) Frames() int {
	n := 0
	for _, step := range p {
		if step.Kind == StepFrame {
			n++
		}
	}
	return n
}

// ResolvedControl is a resolved target together with the path used to reach
// it. It is handed to the caller for a single read or click and never cached.
type ResolvedControl struct {
	Ref      ElementRef
	Path     ContextPath
	Strategy string
}
