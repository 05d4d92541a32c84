// Package lane provides the lock-free bookkeeping primitives shared by the
// scheduler and the element tree: lane positions, lane bitmasks, job and batch
// identifiers, and the priority ordering between them.
//
// There is exactly one sync lane (position 0) and up to MaxAsyncLanes async
// lanes. Element and render nodes record lane membership in AtomicMask values
// so that queries such as "does this subtree contain work for lane 3" never
// block a concurrent writer.
package lane
