// Package model contains the in-memory representation of a booking workflow
// run: worker definitions, the run context and its append-only transcript,
// per-step outcomes, the topology selector and the progress events emitted
// while a run executes.
//
// Types in this package carry no behaviour beyond validation and formatting;
// execution lives in the service sub-packages.
package model
