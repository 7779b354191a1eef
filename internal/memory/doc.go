// Package memory keeps the decode pipeline inside its memory budget.
//
// Decoding full-resolution photos allocates large transient buffers, and a
// burst of viewer requests can push the heap well past a container limit
// before the GC catches up. This package does two things:
//
//   - [ConfigureFromEnv] sets GOMEMLIMIT from MEMORY_LIMIT/MEMORY_RATIO
//     (or reports an explicit GOMEMLIMIT). Call it first thing in main.
//   - [Monitor] samples heap usage and, above the critical water mark,
//     pauses decode workers until usage falls below the high water mark.
//
// Decode workers call WaitIfPaused before every decode:
//
//	if !monitor.WaitIfPaused(ctx) {
//	    return // shutting down
//	}
//
// A nil *Monitor never blocks, so the loader works without one.
package memory
