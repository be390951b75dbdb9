// Package directory maintains the node pool the selector picks routes from:
// it builds the pool from configuration, applies info advertisements of exit
// nodes and keeps learned exit info on disk between runs.
package directory

import "time"

// ExitInfo is what an info advertisement taught us about an exit behind an
// entry node.
type ExitInfo struct {
	EntryPeerID   string
	ExitPeerID    string
	Version       string
	CounterOffset int64    // exit counter minus local clock, in milliseconds
	RelayShortIDs []string // relay id suffixes the exit accepts
	LearnedAt     time.Time
}
