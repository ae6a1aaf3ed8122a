// Package watch scans configured pages on a schedule, remembers the items it
// has seen and broadcasts the ones it has not.
package watch
