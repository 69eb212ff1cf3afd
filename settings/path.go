package settings

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// docToTree converts a Document into its generic JSON map form, the shape
// dotted-path traversal operates on.
func docToTree(doc Document) (map[string]any, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("settings: marshal document: %w", err)
	}
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("settings: rebuild tree: %w", err)
	}
	return tree, nil
}

// treeToDoc converts a generic map back into the typed Document. A value
// that does not fit its field's type surfaces as ErrInvalidValue.
func treeToDoc(tree map[string]any) (Document, error) {
	data, err := json.Marshal(tree)
	if err != nil {
		return Document{}, fmt.Errorf("settings: marshal tree: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return doc, nil
}

// lookup resolves a dotted path against a tree. The second return is false
// when any segment is missing; traversal never panics.
func lookup(tree map[string]any, path string) (any, bool) {
	var cur any = tree
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// assign writes value at a dotted path, reporting whether every parent
// segment resolved to a map. It mutates tree in place, so callers pass a
// clone, never the live tree.
func assign(tree map[string]any, path string, value any) bool {
	segs := strings.Split(path, ".")
	cur := tree
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			return false
		}
		cur = next
	}
	if _, ok := cur[segs[len(segs)-1]]; !ok {
		return false
	}
	cur[segs[len(segs)-1]] = value
	return true
}

// flattenPaths collects every leaf path of tree into out.
func flattenPaths(prefix string, tree map[string]any, out map[string]struct{}) {
	for k, v := range tree {
		p := k
		if prefix != "" {
			p = prefix + "." + k
		}
		if child, ok := v.(map[string]any); ok {
			flattenPaths(p, child, out)
			continue
		}
		out[p] = struct{}{}
	}
}

// KnownPaths returns the sorted list of every settable dotted path in the
// schema. Exposed for surfaces that list or validate paths.
func KnownPaths() []string {
	tree, err := docToTree(Defaults())
	if err != nil {
		return nil
	}
	set := make(map[string]struct{})
	flattenPaths("", tree, set)
	paths := make([]string, 0, len(set))
	for p := range set {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
