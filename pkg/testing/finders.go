package testing

import (
	"fmt"
	"reflect"

	"github.com/go-drift/weave/pkg/canvas"
	"github.com/go-drift/weave/pkg/core"
	"github.com/go-drift/weave/pkg/render"
	"github.com/go-drift/weave/pkg/widgets"
)

// Finder locates elements in the element tree.
type Finder interface {
	// Evaluate returns all matching elements under root (depth-first
	// pre-order, a suspense fallback after the primary children).
	Evaluate(root *core.ElementNode) []*core.ElementNode
	// Description returns a human-readable description for error messages.
	Description() string
}

// FinderResult wraps finder results with convenient accessors.
type FinderResult struct {
	elements []*core.ElementNode
	finder   Finder
}

func (r FinderResult) description() string {
	if r.finder == nil {
		return "unknown"
	}
	return r.finder.Description()
}

// First returns the first match. Panics if no matches.
func (r FinderResult) First() *core.ElementNode {
	if len(r.elements) == 0 {
		panic(fmt.Sprintf("Finder found no elements: %s", r.description()))
	}
	return r.elements[0]
}

// FirstOrNil returns the first match, or nil if none.
func (r FinderResult) FirstOrNil() *core.ElementNode {
	if len(r.elements) == 0 {
		return nil
	}
	return r.elements[0]
}

// At returns the match at index. Panics if out of range.
func (r FinderResult) At(index int) *core.ElementNode {
	if index < 0 || index >= len(r.elements) {
		panic(fmt.Sprintf("Finder index %d out of range (found %d): %s", index, len(r.elements), r.description()))
	}
	return r.elements[index]
}

// All returns all matches in traversal order.
func (r FinderResult) All() []*core.ElementNode {
	return r.elements
}

// Count returns the number of matches.
func (r FinderResult) Count() int {
	return len(r.elements)
}

// Exists returns true if at least one match was found.
func (r FinderResult) Exists() bool {
	return len(r.elements) > 0
}

// Widget returns the widget of the first matched element. Panics if no matches.
func (r FinderResult) Widget() core.Widget {
	return r.First().Widget()
}

// RenderObject returns the render object representing the first matched
// element, or nil while it has none.
func (r FinderResult) RenderObject() *render.Object {
	return r.First().RenderObject()
}

// typeFinder matches elements whose widget is of the specified type.
type typeFinder struct {
	widgetType reflect.Type
}

func (f *typeFinder) Evaluate(root *core.ElementNode) []*core.ElementNode {
	return collectMatches(root, func(e *core.ElementNode) bool {
		return reflect.TypeOf(e.Widget()) == f.widgetType
	})
}

func (f *typeFinder) Description() string {
	return fmt.Sprintf("ByType(%s)", f.widgetType)
}

// ByType returns a finder that matches elements whose widget is type T.
func ByType[T core.Widget]() Finder {
	return &typeFinder{widgetType: reflect.TypeFor[T]()}
}

// keyFinder matches elements whose widget key equals the given key.
type keyFinder struct {
	key any
}

func (f *keyFinder) Evaluate(root *core.ElementNode) []*core.ElementNode {
	return collectMatches(root, func(e *core.ElementNode) bool {
		return core.KeysEqual(e.Widget().Key(), f.key)
	})
}

func (f *keyFinder) Description() string {
	return fmt.Sprintf("ByKey(%v)", f.key)
}

// ByKey returns a finder that matches elements whose widget key equals key.
func ByKey(key any) Finder {
	return &keyFinder{key: key}
}

// ByColor returns a finder that matches [widgets.ColorBox] elements painting
// color c.
func ByColor(c canvas.Color) Finder {
	return &predicateFinder{
		fn: func(e *core.ElementNode) bool {
			cb, ok := e.Widget().(widgets.ColorBox)
			return ok && cb.Color == c
		},
		desc: fmt.Sprintf("ByColor(%v)", c),
	}
}

// ByTag returns a finder that matches [widgets.HitRegion] elements with tag.
func ByTag(tag string) Finder {
	return &predicateFinder{
		fn: func(e *core.ElementNode) bool {
			hr, ok := e.Widget().(widgets.HitRegion)
			return ok && hr.Tag == tag
		},
		desc: fmt.Sprintf("ByTag(%q)", tag),
	}
}

// Suspended returns a finder that matches elements waiting on a waker.
func Suspended() Finder {
	return &predicateFinder{fn: (*core.ElementNode).IsSuspended, desc: "Suspended()"}
}

// predicateFinder matches elements satisfying a predicate.
type predicateFinder struct {
	fn   func(*core.ElementNode) bool
	desc string
}

func (f *predicateFinder) Evaluate(root *core.ElementNode) []*core.ElementNode {
	return collectMatches(root, f.fn)
}

func (f *predicateFinder) Description() string {
	return f.desc
}

// ByPredicate returns a finder that matches elements satisfying fn.
func ByPredicate(fn func(*core.ElementNode) bool) Finder {
	return &predicateFinder{fn: fn, desc: "ByPredicate(...)"}
}

// descendantFinder finds elements matching 'matching' that are descendants
// of elements matching 'of'.
type descendantFinder struct {
	of       Finder
	matching Finder
}

func (f *descendantFinder) Evaluate(root *core.ElementNode) []*core.ElementNode {
	var results []*core.ElementNode
	seen := make(map[*core.ElementNode]bool)
	for _, ancestor := range f.of.Evaluate(root) {
		// Search within each ancestor's subtree, skipping the ancestor itself
		for _, child := range subtreeRoots(ancestor) {
			for _, match := range f.matching.Evaluate(child) {
				if !seen[match] {
					seen[match] = true
					results = append(results, match)
				}
			}
		}
	}
	return results
}

func (f *descendantFinder) Description() string {
	return fmt.Sprintf("Descendant(of: %s, matching: %s)", f.of.Description(), f.matching.Description())
}

// Descendant returns a finder that matches elements satisfying 'matching'
// that are descendants of elements matching 'of'.
func Descendant(of, matching Finder) Finder {
	return &descendantFinder{of: of, matching: matching}
}

// ancestorFinder finds elements matching 'matching' that are ancestors
// of elements matching 'of'.
type ancestorFinder struct {
	of       Finder
	matching Finder
}

func (f *ancestorFinder) Evaluate(root *core.ElementNode) []*core.ElementNode {
	candidates := make(map[*core.ElementNode]bool)
	for _, e := range f.matching.Evaluate(root) {
		candidates[e] = true
	}
	if len(candidates) == 0 {
		return nil
	}
	// Walk up from each descendant through parent links
	var results []*core.ElementNode
	seen := make(map[*core.ElementNode]bool)
	for _, desc := range f.of.Evaluate(root) {
		for p := desc.Parent(); p != nil && p != root.Parent(); p = p.Parent() {
			if candidates[p] && !seen[p] {
				seen[p] = true
				results = append(results, p)
			}
		}
	}
	return results
}

func (f *ancestorFinder) Description() string {
	return fmt.Sprintf("Ancestor(of: %s, matching: %s)", f.of.Description(), f.matching.Description())
}

// Ancestor returns a finder that matches elements satisfying 'matching'
// that are ancestors of elements matching 'of'.
func Ancestor(of, matching Finder) Finder {
	return &ancestorFinder{of: of, matching: matching}
}

// collectMatches performs a depth-first pre-order traversal, collecting
// elements that satisfy the predicate.
func collectMatches(root *core.ElementNode, predicate func(*core.ElementNode) bool) []*core.ElementNode {
	var results []*core.ElementNode
	walkTree(root, func(e *core.ElementNode) {
		if predicate(e) {
			results = append(results, e)
		}
	})
	return results
}

func subtreeRoots(e *core.ElementNode) []*core.ElementNode {
	roots := e.Children()
	if fb := e.Fallback(); fb != nil {
		roots = append(roots, fb)
	}
	return roots
}

func walkTree(root *core.ElementNode, visitor func(*core.ElementNode)) {
	visitor(root)
	for _, child := range subtreeRoots(root) {
		walkTree(child, visitor)
	}
}
