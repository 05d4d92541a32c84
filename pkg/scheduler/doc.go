// Package scheduler turns jobs into lane runs.
//
// Host code describes state changes as jobs: RequestSyncJob for input that
// must be reflected in the next frame, CreateAsyncJob for everything else.
// Each Tick groups the accumulated jobs into batches, runs the sync batch to
// completion, spreads async batches over a fixed set of lanes and commits
// every async lane whose tasks have all finished.
//
// An async lane commits only when its CommitBarrier reaches zero, so a frame
// never shows part of an async batch.
package scheduler
