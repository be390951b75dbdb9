package pathselect

import (
	"errors"
	"slices"
	"strings"

	"github.com/cvsouth/phttp-go/peerid"
)

var (
	ErrNoNodes        = errors.New("no nodes")
	ErrNoVersionMatch = errors.New("no nodes matching required version")
)

// ExitNodesCompatVersions lists the version prefixes an exit must advertise
// to be usable.
var ExitNodesCompatVersions = []string{"2."}

// Selection reasons.
const (
	ViaOnlyRoute    = "only route available"
	ViaVersionMatch = "only (assumed) version match"
	ViaRandom       = "random selection"
)

// Selector picks routes from a pool. A Selector is safe for concurrent use as
// long as its Rand is.
type Selector struct {
	rnd  Rand
	rank Ranker
}

// Option configures a Selector.
type Option func(*Selector)

// WithRand replaces the entropy source.
func WithRand(r Rand) Option {
	return func(s *Selector) { s.rnd = r }
}

// WithRanker installs a ranking strategy applied to version compatible
// candidates before the random draw.
func WithRanker(r Ranker) Option {
	return func(s *Selector) { s.rank = r }
}

// New returns a Selector drawing from crypto/rand with no ranking.
func New(opts ...Option) *Selector {
	s := &Selector{rnd: CryptoRand(), rank: Unranked}
	for _, o := range opts {
		o(s)
	}
	return s
}

// RoutePair selects an entry/exit pairing from the pool. With
// forceManualRelaying every candidate needs both a request and a response
// relay.
func (s *Selector) RoutePair(pool Pool, forceManualRelaying bool) (*NodeSelection, error) {
	return s.match(s.candidates(pool, forceManualRelaying))
}

// FallbackRoutePair is RoutePair without any route through exclude. Callers
// use it after an attempt through exclude failed.
func (s *Selector) FallbackRoutePair(pool Pool, exclude EntryNode, forceManualRelaying bool) (*NodeSelection, error) {
	cands := s.candidates(pool, forceManualRelaying)
	filtered := cands[:0]
	for _, c := range cands {
		if c.EntryNode.ID != exclude.ID {
			filtered = append(filtered, c)
		}
	}
	return s.match(filtered)
}

// PrettyPrint renders the route as e.abcd[>r.abcd]>x.abcd[>r.abcd] (via <reason>).
func PrettyPrint(sel *NodeSelection) string {
	m := sel.Match
	path := []string{"e" + peerid.Short(m.EntryNode.ID)}
	if m.ReqRelayPeerID != "" {
		path = append(path, "r"+peerid.Short(m.ReqRelayPeerID))
	}
	path = append(path, "x"+peerid.Short(m.ExitNode.ID))
	if m.RespRelayPeerID != "" {
		path = append(path, "r"+peerid.Short(m.RespRelayPeerID))
	}
	return strings.Join(path, ">") + " (via " + sel.Via + ")"
}

func (s *Selector) match(cands []Candidate) (*NodeSelection, error) {
	if len(cands) == 0 {
		return nil, ErrNoNodes
	}
	if len(cands) == 1 {
		return success(cands[0], ViaOnlyRoute), nil
	}

	matches := versionMatches(cands)
	if len(matches) == 1 {
		return success(matches[0], ViaVersionMatch), nil
	}
	if len(matches) == 0 {
		return nil, ErrNoVersionMatch
	}

	ranked := s.rank(matches)
	if len(ranked) == 0 {
		ranked = matches
	}
	return success(ranked[s.rnd.IntN(len(ranked))], ViaRandom), nil
}

func success(c Candidate, via string) *NodeSelection {
	return &NodeSelection{Match: c.NodeMatch, Via: via}
}

// candidates flattens the pool in sorted key order so that a pinned Rand
// yields reproducible selections.
func (s *Selector) candidates(pool Pool, forceManualRelaying bool) []Candidate {
	var cands []Candidate
	for _, entryID := range sortedKeys(pool) {
		np := pool[entryID]
		for _, exitID := range sortedKeys(np.ExitDatas) {
			xd := np.ExitDatas[exitID]
			exit, ok := np.ExitNodes[exitID]
			if !ok {
				continue
			}
			reqRelay, respRelay := s.relays(np, exitID, xd, forceManualRelaying)
			if forceManualRelaying && (reqRelay == "" || respRelay == "") {
				continue
			}
			cands = append(cands, Candidate{
				NodeMatch: NodeMatch{
					EntryNode:       np.EntryNode,
					ExitNode:        exit,
					CounterOffset:   xd.CounterOffset,
					ReqRelayPeerID:  reqRelay,
					RespRelayPeerID: respRelay,
				},
				Perf:      xd.Perf(),
				EntryPerf: np.EntryData,
			})
		}
	}
	return cands
}

// relays draws a request relay from the pair's relay pool and a response
// relay from the peers matching one of the exit's advertised short ids.
func (s *Selector) relays(np NodePair, exitID string, xd ExitData, forceManualRelaying bool) (string, string) {
	if !forceManualRelaying || len(xd.RelayShortIDs) == 0 {
		return "", ""
	}

	var reqRelays []string
	for _, id := range np.Relays {
		if id != exitID && id != np.EntryNode.ID {
			reqRelays = append(reqRelays, id)
		}
	}

	var respRelays []string
	for _, id := range np.Peers {
		if id == exitID {
			continue
		}
		if slices.ContainsFunc(xd.RelayShortIDs, func(sh string) bool { return strings.HasSuffix(id, sh) }) {
			respRelays = append(respRelays, id)
		}
	}

	return s.randomEl(reqRelays), s.randomEl(respRelays)
}

func (s *Selector) randomEl(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	return ids[s.rnd.IntN(len(ids))]
}

// versionMatches keeps candidates with a compatible version. Exits whose
// version is not yet known are kept.
func versionMatches(cands []Candidate) []Candidate {
	var out []Candidate
	for _, c := range cands {
		if c.Perf.Version == "" || compatVersion(c.Perf.Version) {
			out = append(out, c)
		}
	}
	return out
}

func compatVersion(v string) bool {
	for _, prefix := range ExitNodesCompatVersions {
		if strings.HasPrefix(v, prefix) {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
