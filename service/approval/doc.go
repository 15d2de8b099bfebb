// Package approval implements the human approval checkpoint that pauses a
// workflow run until a decision is recorded.
//
// A checkpoint is opened by the run that needs a decision, awaited by that
// same run, and resolved by an external submitter. Each checkpoint resolves
// exactly once: by the first successful Resolve, or by the await timeout,
// which approves automatically with the note "auto-timeout".
package approval
