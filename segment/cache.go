package segment

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the number of partially received messages.
const DefaultCacheSize = 1024

// Cache reassembles messages from their segments. When more than its size
// messages are incomplete, the least recently touched one is dropped.
type Cache struct {
	mu      sync.Mutex
	pending *lru.Cache[string, *partial]
}

type partial struct {
	bodies [][]byte
	count  int
}

// NewCache returns a Cache tracking at most size incomplete messages.
func NewCache(size int) (*Cache, error) {
	l, err := lru.New[string, *partial](size)
	if err != nil {
		return nil, fmt.Errorf("segment cache: %w", err)
	}
	return &Cache{pending: l}, nil
}

// Add stores s. Once every segment of its message arrived, Add returns the
// reassembled message and true, and forgets the message.
func (c *Cache) Add(s Segment) ([]byte, bool, error) {
	if err := s.Validate(); err != nil {
		return nil, false, err
	}
	if s.TotalCount == 1 {
		return append([]byte(nil), s.Body...), true, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pending.Get(s.RequestID)
	if !ok {
		p = &partial{bodies: make([][]byte, s.TotalCount)}
		c.pending.Add(s.RequestID, p)
	}
	if len(p.bodies) != s.TotalCount {
		return nil, false, fmt.Errorf("segment %s/%d: total count %d, earlier segments said %d",
			s.RequestID, s.Nr, s.TotalCount, len(p.bodies))
	}
	if p.bodies[s.Nr] != nil {
		// duplicate
		return nil, false, nil
	}
	p.bodies[s.Nr] = append([]byte{}, s.Body...)
	p.count++
	if p.count < s.TotalCount {
		return nil, false, nil
	}

	c.pending.Remove(s.RequestID)
	var size int
	for _, b := range p.bodies {
		size += len(b)
	}
	msg := make([]byte, 0, size)
	for _, b := range p.bodies {
		msg = append(msg, b...)
	}
	return msg, true, nil
}

// Len returns the number of incomplete messages.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending.Len()
}
