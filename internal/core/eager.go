package core

import (
	"context"
	"fmt"
	"strings"
)

// WithTree is an insertion-ordered tree of relation names built from dot
// paths. Adding "a.b" and "a.c" yields a → {b, c}. A nil *WithTree is an
// empty tree.
type WithTree struct {
	names    []string
	children map[string]*WithTree
}

// NewWithTree builds a tree from dot paths.
func NewWithTree(paths ...string) *WithTree {
	t := &WithTree{children: make(map[string]*WithTree)}
	for _, p := range paths {
		t.Add(p)
	}
	return t
}

// Add inserts a dot path, merging with existing branches. Empty segments are ignored.
func (t *WithTree) Add(path string) {
	node := t
	for _, seg := range strings.Split(path, ".") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		node = node.ensure(seg)
	}
}

func (t *WithTree) ensure(name string) *WithTree {
	if child, ok := t.children[name]; ok {
		return child
	}
	child := NewWithTree()
	t.names = append(t.names, name)
	t.children[name] = child
	return child
}

// Merge adds every path of other into t.
func (t *WithTree) Merge(other *WithTree) {
	if other == nil {
		return
	}
	for _, name := range other.names {
		t.ensure(name).Merge(other.children[name])
	}
}

// Names returns the top-level relation names in insertion order.
func (t *WithTree) Names() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.names...)
}

// Child returns the subtree under name, or nil.
func (t *WithTree) Child(name string) *WithTree {
	if t == nil {
		return nil
	}
	return t.children[name]
}

// Empty reports whether the tree has no relations.
func (t *WithTree) Empty() bool {
	return t == nil || len(t.names) == 0
}

// Paths returns the tree as dot paths to its leaves, depth first.
func (t *WithTree) Paths() []string {
	var out []string
	if t == nil {
		return out
	}
	for _, name := range t.names {
		child := t.children[name]
		if child.Empty() {
			out = append(out, name)
			continue
		}
		for _, p := range child.Paths() {
			out = append(out, name+"."+p)
		}
	}
	return out
}

func (t *WithTree) clone() *WithTree {
	c := NewWithTree()
	c.Merge(t)
	return c
}

// eagerLoad fills the relation caches of roots for every relation of tree,
// then recurses into the loaded entities with each subtree. Roots must share
// one schema.
func eagerLoad(ctx context.Context, db *DB, roots []*Entity, tree *WithTree) error {
	if len(roots) == 0 || tree.Empty() {
		return nil
	}
	schema := roots[0].schema

	for _, name := range tree.Names() {
		def, ok := schema.relations[name]
		if !ok {
			return fmt.Errorf("%w: %s.%s", ErrUnknownRelation, schema.name, name)
		}

		proto, err := def.bind(db, roots[0], false)
		if err != nil {
			return err
		}

		if loader, ok := proto.(BatchLoader); ok {
			loader.InitRelation(roots, name)
			loader.AddEagerConstraints(roots)
			result, err := loader.GetEager(ctx)
			if err != nil {
				return WrapError(err, "eager load "+schema.name+"."+name)
			}
			loader.Match(roots, result, name)
		} else {
			for _, root := range roots {
				rel, err := def.bind(db, root, true)
				if err != nil {
					return err
				}
				v, err := rel.Results(ctx)
				if err != nil {
					return WrapError(err, "load "+schema.name+"."+name)
				}
				root.SetRelation(name, v)
			}
		}

		child := tree.Child(name)
		if child.Empty() {
			continue
		}
		var next []*Entity
		for _, root := range roots {
			next = append(next, relationEntities(root.relations[name])...)
		}
		if err := eagerLoad(ctx, db, next, child); err != nil {
			return err
		}
	}
	return nil
}
