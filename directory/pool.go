package directory

import (
	"errors"
	"fmt"
	"time"

	"github.com/cvsouth/phttp-go/config"
	"github.com/cvsouth/phttp-go/payload"
	"github.com/cvsouth/phttp-go/pathselect"
)

var ErrUnknownEntry = errors.New("unknown entry node")

// BuildPool creates the selector pool from the configured node pairs.
// Exits listed without a version have not been heard from yet.
func BuildPool(cfg *config.Config) pathselect.Pool {
	pool := make(pathselect.Pool, len(cfg.Nodes))
	for _, np := range cfg.Nodes {
		pair := pathselect.NodePair{
			EntryNode: pathselect.EntryNode{ID: np.EntryPeerID, Version: np.EntryVersion},
			ExitNodes: make(map[string]pathselect.ExitNode, len(np.Exits)),
			ExitDatas: make(map[string]pathselect.ExitData, len(np.Exits)),
			Relays:    append([]string(nil), np.Relays...),
			Peers:     append([]string(nil), np.Peers...),
		}
		for _, x := range np.Exits {
			pair.ExitNodes[x.PeerID] = pathselect.ExitNode{ID: x.PeerID, Version: x.Version}
			pair.ExitDatas[x.PeerID] = pathselect.ExitData{
				Version:       x.Version,
				CounterOffset: x.CounterOffset,
				RelayShortIDs: append([]string(nil), x.RelayShortIDs...),
			}
		}
		pool[np.EntryPeerID] = pair
	}
	return pool
}

// ApplyInfo records a decoded info advertisement received through entryID.
// The counter offset is the exit's counter relative to now. Statistics of a
// known exit are kept; an exit not yet in the pair is added.
func ApplyInfo(pool pathselect.Pool, entryID string, info payload.InfoPayload, now time.Time) (ExitInfo, error) {
	if info.PeerID == "" {
		return ExitInfo{}, errors.New("info advertisement without peer id")
	}
	xi := ExitInfo{
		EntryPeerID:   entryID,
		ExitPeerID:    info.PeerID,
		Version:       info.Version,
		CounterOffset: info.Counter - now.UnixMilli(),
		RelayShortIDs: info.RelayShortIDs,
		LearnedAt:     now,
	}
	if err := apply(pool, xi); err != nil {
		return ExitInfo{}, err
	}
	return xi, nil
}

func apply(pool pathselect.Pool, xi ExitInfo) error {
	pair, ok := pool[xi.EntryPeerID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntry, xi.EntryPeerID)
	}
	if pair.ExitNodes == nil {
		pair.ExitNodes = make(map[string]pathselect.ExitNode)
	}
	if pair.ExitDatas == nil {
		pair.ExitDatas = make(map[string]pathselect.ExitData)
	}
	xd := pair.ExitDatas[xi.ExitPeerID]
	xd.Version = xi.Version
	xd.CounterOffset = xi.CounterOffset
	xd.RelayShortIDs = append([]string(nil), xi.RelayShortIDs...)
	xd.LearnedAt = xi.LearnedAt
	pair.ExitDatas[xi.ExitPeerID] = xd
	pair.ExitNodes[xi.ExitPeerID] = pathselect.ExitNode{ID: xi.ExitPeerID, Version: xi.Version}
	pool[xi.EntryPeerID] = pair
	return nil
}

// Snapshot returns the exits in pool whose info was learned from an
// advertisement, stamped with the time it was learned.
func Snapshot(pool pathselect.Pool) []ExitInfo {
	var infos []ExitInfo
	for entryID, pair := range pool {
		for exitID, xd := range pair.ExitDatas {
			if xd.LearnedAt.IsZero() {
				continue
			}
			infos = append(infos, ExitInfo{
				EntryPeerID:   entryID,
				ExitPeerID:    exitID,
				Version:       xd.Version,
				CounterOffset: xd.CounterOffset,
				RelayShortIDs: xd.RelayShortIDs,
				LearnedAt:     xd.LearnedAt,
			})
		}
	}
	return infos
}
