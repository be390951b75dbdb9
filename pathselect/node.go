package pathselect

import "time"

// EntryNode is the first hop a client hands its segments to.
type EntryNode struct {
	ID      string
	Version string
}

// ExitNode decrypts a request and performs the HTTP call.
type ExitNode struct {
	ID      string
	Version string
}

// ExitData is what a client has learned about an exit through one entry node.
type ExitData struct {
	Version       string    // empty until the exit answered an info request
	CounterOffset int64     // exit counter minus local clock, in milliseconds
	RelayShortIDs []string  // suffixes of peer ids the exit accepts as response relays
	LearnedAt     time.Time // when the info advertisement was received, zero if never

	Failures    int
	Ongoing     int
	AvgLatency  time.Duration
	InfoLatency time.Duration
	InfoFail    bool
}

// Perf is the performance view of an exit used for ranking.
type Perf struct {
	Version       string
	CounterOffset int64
	Failures      int
	Ongoing       int
	AvgLatency    time.Duration
	InfoLatency   time.Duration
	InfoFail      bool
}

// Perf summarises the exit data.
func (xd ExitData) Perf() Perf {
	return Perf{
		Version:       xd.Version,
		CounterOffset: xd.CounterOffset,
		Failures:      xd.Failures,
		Ongoing:       xd.Ongoing,
		AvgLatency:    xd.AvgLatency,
		InfoLatency:   xd.InfoLatency,
		InfoFail:      xd.InfoFail,
	}
}

// EntryData holds segment and message retrieval statistics of an entry node.
type EntryData struct {
	SegFailures    int
	SegOngoing     int
	SegAvgLatency  time.Duration
	MsgsFails      int
	MsgsAvgLatency time.Duration
	PingDuration   time.Duration
}

// NodePair groups the exits reachable through one entry node. Every key of
// ExitDatas must also be present in ExitNodes.
type NodePair struct {
	EntryNode EntryNode
	EntryData EntryData
	ExitNodes map[string]ExitNode
	ExitDatas map[string]ExitData
	Relays    []string // peers usable as request relays
	Peers     []string // all peers known to the entry node
}

// Pool maps entry node ids to their node pair. The selector only reads it.
type Pool map[string]NodePair

// NodeMatch is a resolved route.
type NodeMatch struct {
	EntryNode       EntryNode
	ExitNode        ExitNode
	CounterOffset   int64
	ReqRelayPeerID  string
	RespRelayPeerID string
}

// NodeSelection is a route plus the reason it was chosen.
type NodeSelection struct {
	Match NodeMatch
	Via   string
}

// Candidate is one expanded (entry, exit, relays) combination.
type Candidate struct {
	NodeMatch
	Perf      Perf
	EntryPerf EntryData
}
