package directory

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/cvsouth/phttp-go/pathselect"
)

const infoFile = "exit-info.cbor"

// DefaultMaxAge bounds how old cached exit info may be before it is ignored.
const DefaultMaxAge = 6 * time.Hour

// Cache handles caching of learned exit info to disk.
type Cache struct {
	Dir string
}

// cachedInfo is the on-disk format of one learned exit.
type cachedInfo struct {
	Entry         string   `cbor:"1,keyasint"`
	Exit          string   `cbor:"2,keyasint"`
	Version       string   `cbor:"3,keyasint"`
	CounterOffset int64    `cbor:"4,keyasint"`
	RelayShortIDs []string `cbor:"5,keyasint,omitempty"`
	LearnedAt     int64    `cbor:"6,keyasint"` // unix milliseconds
}

// SaveInfo writes infos to the cache directory, replacing earlier contents.
func (c *Cache) SaveInfo(infos []ExitInfo) error {
	if c.Dir == "" {
		return fmt.Errorf("cache directory not set")
	}
	if err := os.MkdirAll(c.Dir, 0700); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	cached := make([]cachedInfo, 0, len(infos))
	for _, xi := range infos {
		cached = append(cached, cachedInfo{
			Entry:         xi.EntryPeerID,
			Exit:          xi.ExitPeerID,
			Version:       xi.Version,
			CounterOffset: xi.CounterOffset,
			RelayShortIDs: xi.RelayShortIDs,
			LearnedAt:     xi.LearnedAt.UnixMilli(),
		})
	}
	data, err := cbor.Marshal(cached)
	if err != nil {
		return fmt.Errorf("marshal exit info cache: %w", err)
	}
	return os.WriteFile(filepath.Join(c.Dir, infoFile), data, 0600)
}

// LoadInfo reads cached exit info, dropping entries learned more than maxAge
// before now. A missing or unreadable cache yields no entries.
func (c *Cache) LoadInfo(now time.Time, maxAge time.Duration) []ExitInfo {
	if c.Dir == "" {
		return nil
	}
	data, err := os.ReadFile(filepath.Join(c.Dir, infoFile))
	if err != nil {
		return nil
	}
	var cached []cachedInfo
	if err := cbor.Unmarshal(data, &cached); err != nil {
		return nil
	}
	var infos []ExitInfo
	for _, ci := range cached {
		learned := time.UnixMilli(ci.LearnedAt)
		if now.Sub(learned) > maxAge {
			continue
		}
		infos = append(infos, ExitInfo{
			EntryPeerID:   ci.Entry,
			ExitPeerID:    ci.Exit,
			Version:       ci.Version,
			CounterOffset: ci.CounterOffset,
			RelayShortIDs: ci.RelayShortIDs,
			LearnedAt:     learned,
		})
	}
	return infos
}

// Restore applies fresh cached exit info to pool and returns how many exits
// were updated. Entries for entry nodes no longer configured are skipped.
func (c *Cache) Restore(pool pathselect.Pool, now time.Time, maxAge time.Duration) int {
	count := 0
	for _, xi := range c.LoadInfo(now, maxAge) {
		if err := apply(pool, xi); err != nil {
			continue
		}
		count++
	}
	return count
}
