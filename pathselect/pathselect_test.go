package pathselect

import (
	"errors"
	"math/rand/v2"
	"strings"
	"testing"
)

func testPair(entryID string, exits map[string]string) NodePair {
	np := NodePair{
		EntryNode: EntryNode{ID: entryID, Version: "2.1.0"},
		ExitNodes: make(map[string]ExitNode),
		ExitDatas: make(map[string]ExitData),
	}
	for id, v := range exits {
		np.ExitNodes[id] = ExitNode{ID: id, Version: v}
		np.ExitDatas[id] = ExitData{Version: v, CounterOffset: 42}
	}
	return np
}

func testPool() Pool {
	return Pool{
		"entry-aaaa": testPair("entry-aaaa", map[string]string{"exit-1111": "2.1.0", "exit-2222": "2.0.3"}),
		"entry-bbbb": testPair("entry-bbbb", map[string]string{"exit-1111": "2.1.0", "exit-3333": ""}),
		"entry-cccc": testPair("entry-cccc", map[string]string{"exit-4444": "1.9.9"}),
	}
}

func TestRoutePairNoNodes(t *testing.T) {
	_, err := New().RoutePair(Pool{}, false)
	if !errors.Is(err, ErrNoNodes) {
		t.Fatalf("expected ErrNoNodes, got %v", err)
	}
	if err.Error() != "no nodes" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestRoutePairOnlyRoute(t *testing.T) {
	pool := Pool{"entry-aaaa": testPair("entry-aaaa", map[string]string{"exit-1111": "1.0.0"})}
	sel, err := New().RoutePair(pool, false)
	if err != nil {
		t.Fatalf("RoutePair: %v", err)
	}
	if sel.Via != ViaOnlyRoute {
		t.Fatalf("via = %q", sel.Via)
	}
	if sel.Match.EntryNode.ID != "entry-aaaa" || sel.Match.ExitNode.ID != "exit-1111" {
		t.Fatalf("unexpected match %+v", sel.Match)
	}
	if sel.Match.CounterOffset != 42 {
		t.Fatalf("counter offset = %d", sel.Match.CounterOffset)
	}
}

func TestRoutePairOnlyVersionMatch(t *testing.T) {
	pool := Pool{
		"entry-aaaa": testPair("entry-aaaa", map[string]string{"exit-1111": "1.0.0", "exit-2222": "2.4.1"}),
	}
	sel, err := New().RoutePair(pool, false)
	if err != nil {
		t.Fatalf("RoutePair: %v", err)
	}
	if sel.Via != ViaVersionMatch || sel.Match.ExitNode.ID != "exit-2222" {
		t.Fatalf("unexpected selection %+v", sel)
	}
}

func TestRoutePairUnknownVersionAssumedCompatible(t *testing.T) {
	pool := Pool{
		"entry-aaaa": testPair("entry-aaaa", map[string]string{"exit-1111": "1.0.0", "exit-2222": ""}),
	}
	sel, err := New().RoutePair(pool, false)
	if err != nil {
		t.Fatalf("RoutePair: %v", err)
	}
	if sel.Via != ViaVersionMatch || sel.Match.ExitNode.ID != "exit-2222" {
		t.Fatalf("unexpected selection %+v", sel)
	}
}

func TestRoutePairNoVersionMatch(t *testing.T) {
	pool := Pool{
		"entry-aaaa": testPair("entry-aaaa", map[string]string{"exit-1111": "1.0.0"}),
		"entry-bbbb": testPair("entry-bbbb", map[string]string{"exit-2222": "3.0.0"}),
	}
	_, err := New().RoutePair(pool, false)
	if !errors.Is(err, ErrNoVersionMatch) {
		t.Fatalf("expected ErrNoVersionMatch, got %v", err)
	}
}

func TestRoutePairRandomMembership(t *testing.T) {
	pool := testPool()
	sel := New()
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		s, err := sel.RoutePair(pool, false)
		if err != nil {
			t.Fatalf("RoutePair: %v", err)
		}
		if s.Via != ViaRandom {
			t.Fatalf("via = %q", s.Via)
		}
		if s.Match.ExitNode.ID == "exit-4444" {
			t.Fatal("selected version incompatible exit")
		}
		seen[s.Match.EntryNode.ID+"/"+s.Match.ExitNode.ID] = true
	}
	// 4 compatible routes, 200 draws
	if len(seen) != 4 {
		t.Fatalf("expected all 4 compatible routes to be drawn, got %v", seen)
	}
}

func TestRoutePairPinnedRand(t *testing.T) {
	pool := testPool()
	a, err := New(WithRand(rand.New(rand.NewPCG(1, 2)))).RoutePair(pool, false)
	if err != nil {
		t.Fatalf("RoutePair: %v", err)
	}
	b, err := New(WithRand(rand.New(rand.NewPCG(1, 2)))).RoutePair(pool, false)
	if err != nil {
		t.Fatalf("RoutePair: %v", err)
	}
	if a.Match != b.Match {
		t.Fatalf("same seed gave different routes: %+v vs %+v", a.Match, b.Match)
	}
}

func TestFallbackRoutePairExcludesEntry(t *testing.T) {
	pool := testPool()
	sel := New()
	exclude := EntryNode{ID: "entry-aaaa"}
	for i := 0; i < 100; i++ {
		s, err := sel.FallbackRoutePair(pool, exclude, false)
		if err != nil {
			t.Fatalf("FallbackRoutePair: %v", err)
		}
		if s.Match.EntryNode.ID == exclude.ID {
			t.Fatal("selected excluded entry node")
		}
	}
}

func TestFallbackRoutePairOnlyExcluded(t *testing.T) {
	pool := Pool{"entry-aaaa": testPair("entry-aaaa", map[string]string{"exit-1111": "2.0.0"})}
	_, err := New().FallbackRoutePair(pool, EntryNode{ID: "entry-aaaa"}, false)
	if !errors.Is(err, ErrNoNodes) {
		t.Fatalf("expected ErrNoNodes, got %v", err)
	}
}

func relayPool() Pool {
	np := testPair("entry-aaaa", map[string]string{"exit-1111": "2.1.0", "exit-2222": "2.1.0"})
	np.Relays = []string{"entry-aaaa", "exit-1111", "relay-r001", "relay-r002"}
	np.Peers = []string{"exit-1111", "relay-r001", "relay-r002", "other-zzzz"}
	xd := np.ExitDatas["exit-1111"]
	xd.RelayShortIDs = []string{"r002", "1111"}
	np.ExitDatas["exit-1111"] = xd
	// exit-2222 advertises no relays
	return Pool{"entry-aaaa": np}
}

func TestForceManualRelaying(t *testing.T) {
	pool := relayPool()
	sel := New()
	for i := 0; i < 50; i++ {
		s, err := sel.RoutePair(pool, true)
		if err != nil {
			t.Fatalf("RoutePair: %v", err)
		}
		m := s.Match
		if m.ExitNode.ID != "exit-1111" {
			t.Fatalf("exit without relays selected: %s", m.ExitNode.ID)
		}
		if m.ReqRelayPeerID == "" || m.RespRelayPeerID == "" {
			t.Fatalf("missing relay: %+v", m)
		}
		if m.ReqRelayPeerID == m.ExitNode.ID || m.ReqRelayPeerID == m.EntryNode.ID {
			t.Fatalf("request relay %s is a route endpoint", m.ReqRelayPeerID)
		}
		if m.RespRelayPeerID != "relay-r002" {
			t.Fatalf("response relay = %s", m.RespRelayPeerID)
		}
	}
}

func TestForceManualRelayingWithoutRelays(t *testing.T) {
	pool := testPool()
	_, err := New().RoutePair(pool, true)
	if !errors.Is(err, ErrNoNodes) {
		t.Fatalf("expected ErrNoNodes, got %v", err)
	}
}

func TestNoRelaysWithoutForce(t *testing.T) {
	pool := relayPool()
	sel := New()
	for i := 0; i < 20; i++ {
		s, err := sel.RoutePair(pool, false)
		if err != nil {
			t.Fatalf("RoutePair: %v", err)
		}
		if s.Match.ReqRelayPeerID != "" || s.Match.RespRelayPeerID != "" {
			t.Fatalf("relays set without manual relaying: %+v", s.Match)
		}
	}
}

func TestMissingExitNodeSkipped(t *testing.T) {
	np := testPair("entry-aaaa", map[string]string{"exit-1111": "2.0.0"})
	np.ExitDatas["exit-9999"] = ExitData{Version: "2.0.0"}
	s, err := New().RoutePair(Pool{"entry-aaaa": np}, false)
	if err != nil {
		t.Fatalf("RoutePair: %v", err)
	}
	if s.Via != ViaOnlyRoute || s.Match.ExitNode.ID != "exit-1111" {
		t.Fatalf("unexpected selection %+v", s)
	}
}

func TestRankerSeam(t *testing.T) {
	leastOngoing := func(cands []Candidate) []Candidate {
		var out []Candidate
		for _, c := range cands {
			if c.ExitNode.ID == "exit-3333" {
				out = append(out, c)
			}
		}
		return out
	}
	sel := New(WithRanker(leastOngoing))
	for i := 0; i < 20; i++ {
		s, err := sel.RoutePair(testPool(), false)
		if err != nil {
			t.Fatalf("RoutePair: %v", err)
		}
		if s.Match.ExitNode.ID != "exit-3333" || s.Via != ViaRandom {
			t.Fatalf("ranker ignored: %+v", s)
		}
	}

	empty := New(WithRanker(func([]Candidate) []Candidate { return nil }))
	if _, err := empty.RoutePair(testPool(), false); err != nil {
		t.Fatalf("empty ranking should fall back: %v", err)
	}
}

func TestPrettyPrint(t *testing.T) {
	sel := &NodeSelection{
		Match: NodeMatch{
			EntryNode:       EntryNode{ID: "entry-aaaa"},
			ExitNode:        ExitNode{ID: "exit-1111"},
			ReqRelayPeerID:  "relay-r001",
			RespRelayPeerID: "relay-r002",
		},
		Via: ViaRandom,
	}
	got := PrettyPrint(sel)
	want := "e.aaaa>r.r001>x.1111>r.r002 (via random selection)"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	sel.Match.ReqRelayPeerID = ""
	sel.Match.RespRelayPeerID = ""
	if got := PrettyPrint(sel); !strings.HasPrefix(got, "e.aaaa>x.1111 ") {
		t.Fatalf("got %q", got)
	}
}
