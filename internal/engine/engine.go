// Package engine wraps the external media-organizing tool. The pipeline only
// ever asks it two things: process one candidate path, and whether the
// engine's container is currently healthy enough to start a run.
package engine

import "context"

// Engine is the collaborator interface the batch executor drives. Process
// blocks until the invocation finishes or its internal timeout elapses; it
// must be safe to call sequentially but is not assumed safe to call
// concurrently on shared input/output paths.
type Engine interface {
	Process(ctx context.Context, path string) error
	Healthy(ctx context.Context) bool
}
