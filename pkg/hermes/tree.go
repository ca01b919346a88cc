package hermes

import (
	"context"
	"strings"
)

// Node is either a Tree (branch) or a handler leaf.
type Node interface {
	node()
}

// Tree is a branch of a handler tree, keyed by path segment.
type Tree map[string]Node

type EndpointFunc func(ctx context.Context, args Args, md Metadata) (any, error)

type SocketFunc func(ctx context.Context, sock *Socket, args Args, md Metadata) error

func (Tree) node()         {}
func (EndpointFunc) node() {}
func (SocketFunc) node()   {}

// resolve walks path from root one segment at a time. Reaching a leaf before
// the path is exhausted counts as a missing node.
func resolve(root Node, path []string) (Node, bool) {
	current := root

	for _, segment := range path {
		branch, ok := current.(Tree)
		if !ok {
			return nil, false
		}

		next, ok := branch[segment]
		if !ok || next == nil {
			return nil, false
		}

		current = next
	}

	return current, true
}

func (t Tree) clone() Tree {
	out := make(Tree, len(t))

	for name, child := range t {
		if sub, ok := child.(Tree); ok {
			out[name] = sub.clone()
			continue
		}

		out[name] = child
	}

	return out
}

func joinPath(path []string) string {
	return strings.Join(path, ".")
}
