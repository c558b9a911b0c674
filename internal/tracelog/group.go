package tracelog

import (
	"context"
	"strings"
)

type groupKey struct{}

// frame is one level of group nesting. Frames are immutable and linked to
// their parent, so each call chain owns its own stack.
type frame struct {
	label  string
	depth  int
	parent *frame
}

func currentFrame(ctx context.Context) *frame {
	if ctx == nil {
		return nil
	}
	f, _ := ctx.Value(groupKey{}).(*frame)
	return f
}

func pushFrame(ctx context.Context, label string) (context.Context, *frame) {
	parent := currentFrame(ctx)
	f := &frame{label: label, depth: 1, parent: parent}
	if parent != nil {
		f.depth = parent.depth + 1
	}
	return context.WithValue(ctx, groupKey{}, f), f
}

// popFrame returns a context whose innermost frame is the parent of the
// current one, or false if no group is open.
func popFrame(ctx context.Context) (context.Context, *frame, bool) {
	f := currentFrame(ctx)
	if f == nil {
		return ctx, nil, false
	}
	return context.WithValue(ctx, groupKey{}, f.parent), f, true
}

// path renders the frame chain outermost first, e.g. "checkout/payment"
func (f *frame) path() string {
	if f == nil {
		return ""
	}
	labels := make([]string, f.depth)
	for cur := f; cur != nil; cur = cur.parent {
		labels[cur.depth-1] = cur.label
	}
	return strings.Join(labels, "/")
}

func (f *frame) level() int {
	if f == nil {
		return 0
	}
	return f.depth
}

// GroupPath returns the open group labels of ctx joined by "/"
func GroupPath(ctx context.Context) string {
	return currentFrame(ctx).path()
}

// GroupDepth returns how many groups are open in ctx
func GroupDepth(ctx context.Context) int {
	return currentFrame(ctx).level()
}
