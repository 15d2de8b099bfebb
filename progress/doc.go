// Package progress keeps aggregated step counters for a single run. The
// tracker travels in the run context so every component that receives the
// context can update the counters without a global registry.
package progress
