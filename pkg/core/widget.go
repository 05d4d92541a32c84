package core

import (
	"reflect"

	"github.com/go-drift/weave/pkg/protocol"
	"github.com/go-drift/weave/pkg/render"
)

// Widget is an immutable description of part of the UI.
type Widget interface {
	// Key distinguishes siblings of the same type. Nil means unkeyed. Keys
	// that cannot be compared with == are matched with reflect.DeepEqual.
	Key() any
}

// ComponentWidget describes its UI by building another widget.
type ComponentWidget interface {
	Widget
	// Build returns the child widget. Returning a SuspendedError defers the
	// build until the attached waker fires.
	Build(ctx *BuildContext) (Widget, error)
}

// RenderWidget owns a render object.
type RenderWidget interface {
	Widget
	// ChildWidgets lists the children in paint order. Nil entries are skipped.
	ChildWidgets() []Widget
	Protocol() protocol.Protocol
	CreateRender() render.Render
	// UpdateRender copies the widget's configuration into r and reports
	// which phases the change invalidates.
	UpdateRender(r render.Render) render.Dirty
}

// Equaler lets a widget define its own equality.
type Equaler interface {
	Equal(other Widget) bool
}

// Suspense shows Fallback while any element inflated under Child is
// suspended, and Child once they all resume.
type Suspense struct {
	Child    Widget
	Fallback Widget
	K        any
}

// Key implements Widget.
func (s Suspense) Key() any { return s.K }

type providerWidget interface {
	Widget
	providedType() reflect.Type
	providedValue() any
	providedChild() Widget
}

// Provider publishes Value to every descendant that calls UseConsumer[T].
type Provider[T any] struct {
	Value T
	Child Widget
	K     any
}

// Key implements Widget.
func (p Provider[T]) Key() any { return p.K }

func (p Provider[T]) providedType() reflect.Type { return reflect.TypeFor[T]() }
func (p Provider[T]) providedValue() any         { return p.Value }
func (p Provider[T]) providedChild() Widget      { return p.Child }

type elementKind uint8

const (
	kindComponent elementKind = iota
	kindRender
	kindProvider
	kindSuspense
	kindRoot
)

func (k elementKind) String() string {
	switch k {
	case kindComponent:
		return "component"
	case kindRender:
		return "render"
	case kindProvider:
		return "provider"
	case kindSuspense:
		return "suspense"
	default:
		return "root"
	}
}

func kindOf(w Widget) elementKind {
	switch w.(type) {
	case Suspense, *Suspense:
		return kindSuspense
	case providerWidget:
		return kindProvider
	case RenderWidget:
		return kindRender
	case ComponentWidget:
		return kindComponent
	case rootWidget:
		return kindRoot
	}
	panic("core: widget " + widgetName(w) + " implements neither ComponentWidget nor RenderWidget")
}

// CanUpdate reports whether an element built for old may be rebuilt with
// next instead of being replaced.
func CanUpdate(old, next Widget) bool {
	if old == nil || next == nil {
		return false
	}
	return reflect.TypeOf(old) == reflect.TypeOf(next) && KeysEqual(old.Key(), next.Key())
}

// KeysEqual compares two widget keys, falling back to reflect.DeepEqual
// when == would panic.
func KeysEqual(a, b any) (equal bool) {
	defer func() {
		if recover() != nil {
			equal = reflect.DeepEqual(a, b)
		}
	}()
	return a == b
}

// hashableKey reports whether k can index a map.
func hashableKey(k any) (ok bool) {
	if !reflect.TypeOf(k).Comparable() {
		return false
	}
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return k == k
}

// WidgetsEqual reports value equality. Equaler wins, then == for comparable
// widgets, then reflect.DeepEqual.
func WidgetsEqual(a, b Widget) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	if eq, ok := a.(Equaler); ok {
		return eq.Equal(b)
	}
	if reflect.TypeOf(a).Comparable() {
		return safeCompare(a, b)
	}
	return reflect.DeepEqual(a, b)
}

// safeCompare guards against comparable structs holding incomparable
// interface values.
func safeCompare(a, b Widget) (equal bool) {
	defer func() {
		if recover() != nil {
			equal = reflect.DeepEqual(a, b)
		}
	}()
	return a == b
}

func widgetName(w Widget) string {
	if w == nil {
		return "<nil>"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

func suspenseOf(w Widget) Suspense {
	if p, ok := w.(*Suspense); ok {
		return *p
	}
	return w.(Suspense)
}

// rootWidget hosts the application widget stored in the root's state slot.
type rootWidget struct{}

func (rootWidget) Key() any { return nil }
