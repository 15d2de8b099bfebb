// Package worker provides the example travel workers: a roster of Research,
// Policy, Budget, Optimizer and Booking definitions, their tool functions
// over embedded travel tables, and a deterministic scripted runner.
//
// The scripted runner stands in for the reasoning service a production
// deployment would plug in through executor.Runner.
package worker
