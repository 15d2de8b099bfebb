// Package policy provides optional rules for the tool calls workers make
// during a run, for example a dry run that blocks reservations.
package policy
