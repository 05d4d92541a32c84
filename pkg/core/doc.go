// Package core reconciles immutable widget trees against persistent
// elements.
//
// # Widgets and elements
//
// A [Widget] is an immutable description. Reconciling it at a tree position
// produces an [ElementNode] that survives across rebuilds as long as the
// widget at that position keeps the same concrete type and key. Widgets come
// in four kinds, chosen once when the element is inflated:
//
//   - [ComponentWidget] builds another widget and may use hooks.
//   - [RenderWidget] owns a render object and lists child widgets.
//   - [Provider] publishes a typed value to descendants.
//   - [Suspense] shows a fallback while its child is suspended.
//
// # Hooks
//
// Component builds keep state in ordered hook slots ([UseState],
// [UseReducer], [UseMemo], [UseEffect], [UseRef], [UseConsumer],
// [UseFuture]). The sequence of hook calls must be identical on every
// rebuild; a mismatch panics with a typed error from package errors.
//
// # Passes
//
// The [Tree] runs reconciliation passes on behalf of a scheduler. A sync
// pass builds and applies immediately, forking across independent subtrees.
// An async pass builds speculative plans per entry point and applies them
// only when the scheduler commits the attempt. Passes find work through lane
// marks on each [ElementContextNode].
package core
