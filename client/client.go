// Package client prepares calls for the relay network: it picks a route from
// the node pool, boxes the request for the exit and segments it, retrying
// through another entry node when preparing fails.
package client

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/cvsouth/phttp-go/box"
	"github.com/cvsouth/phttp-go/config"
	"github.com/cvsouth/phttp-go/directory"
	"github.com/cvsouth/phttp-go/instrument"
	"github.com/cvsouth/phttp-go/pathselect"
	"github.com/cvsouth/phttp-go/payload"
	"github.com/cvsouth/phttp-go/peerid"
	"github.com/cvsouth/phttp-go/request"
	"github.com/cvsouth/phttp-go/segment"
)

const maxAttempts = 3

// Call is an application request to send through the network.
type Call struct {
	Provider          string
	Body              string
	Headers           map[string]string
	Hops              *int
	MeasureRPCLatency bool
}

// Prepared is a call ready to hand to the entry node.
type Prepared struct {
	Selection *pathselect.NodeSelection
	Request   *request.Request
	Session   *box.Session
	Segments  []segment.Segment
}

// Client holds the node pool and prepares calls. It is safe for concurrent
// use.
type Client struct {
	clientID            string
	forceManualRelaying bool

	mu   sync.RWMutex
	pool pathselect.Pool

	cache    *directory.Cache
	selector *pathselect.Selector
	pipeline *request.Pipeline
	clock    clock.Clock
	logger   *slog.Logger
	metrics  *instrument.Metrics
}

// Option configures a Client.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics *instrument.Metrics
	clock   clock.Clock
	rnd     pathselect.Rand
}

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics records client metrics in m.
func WithMetrics(m *instrument.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock sets the clock used for counters and timestamps.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithRand sets the route selection entropy source.
func WithRand(r pathselect.Rand) Option {
	return func(o *options) { o.rnd = r }
}

// New creates a Client over the node pool configured in cfg.
func New(cfg *config.Config, opts ...Option) *Client {
	o := options{logger: slog.Default(), clock: clock.New()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	var selOpts []pathselect.Option
	if o.rnd != nil {
		selOpts = append(selOpts, pathselect.WithRand(o.rnd))
	}
	c := &Client{
		clientID:            cfg.ClientID,
		forceManualRelaying: cfg.ForceManualRelaying,
		pool:                directory.BuildPool(cfg),
		selector:            pathselect.New(selOpts...),
		pipeline:            request.New(boxCrypto{b: box.New(o.clock)}, request.WithClock(o.clock)),
		clock:               o.clock,
		logger:              o.logger,
		metrics:             o.metrics,
	}
	if cfg.Cache != nil && cfg.Cache.Dir != "" {
		c.cache = &directory.Cache{Dir: cfg.Cache.Dir}
	}
	return c
}

// Route selects a route without preparing a request.
func (c *Client) Route() (*pathselect.NodeSelection, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sel, err := c.selector.RoutePair(c.pool, c.forceManualRelaying)
	c.recordSelection(sel, err)
	return sel, err
}

// Prepare selects a route and prepares call for it. When boxing for the
// selected exit fails the call is prepared again through an entry node not
// tried yet, up to three attempts.
func (c *Client) Prepare(call Call) (*Prepared, error) {
	start := c.clock.Now()
	sel, err := c.Route()
	if err != nil {
		return nil, fmt.Errorf("select route: %w", err)
	}
	failed := make(map[string]bool)
	var lastErr error
	attempts := 0
	for attempts < maxAttempts {
		attempts++
		p, err := c.prepareVia(sel, call, "")
		if err == nil {
			c.metrics.PrepareDuration(c.clock.Since(start))
			return p, nil
		}
		lastErr = err
		c.logger.Warn("request preparation failed", "attempt", attempts, "route", pathselect.PrettyPrint(sel), "error", err)
		failed[sel.Match.EntryNode.ID] = true
		if attempts == maxAttempts {
			break
		}
		if sel, err = c.fallback(sel.Match.EntryNode, failed); err != nil {
			break
		}
	}
	noun := "attempts"
	if attempts == 1 {
		noun = "attempt"
	}
	return nil, fmt.Errorf("failed to prepare request after %d %s: %w", attempts, noun, lastErr)
}

// Retry prepares call again after failed did not complete, through any
// entry node other than the one failed used. The new request keeps the id of
// the first attempt as its original id.
func (c *Client) Retry(failed *Prepared, call Call) (*Prepared, error) {
	sel, err := c.fallback(failed.Selection.Match.EntryNode, nil)
	if err != nil {
		return nil, fmt.Errorf("select fallback route: %w", err)
	}
	originalID := failed.Request.OriginalID
	if originalID == "" {
		originalID = failed.Request.ID
	}
	return c.prepareVia(sel, call, originalID)
}

// fallback selects a route avoiding exclude and every entry in failed.
func (c *Client) fallback(exclude pathselect.EntryNode, failed map[string]bool) (*pathselect.NodeSelection, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pool := c.pool
	if len(failed) > 0 {
		pool = make(pathselect.Pool, len(c.pool))
		for id, pair := range c.pool {
			if !failed[id] {
				pool[id] = pair
			}
		}
	}
	sel, err := c.selector.FallbackRoutePair(pool, exclude, c.forceManualRelaying)
	c.recordSelection(sel, err)
	return sel, err
}

func (c *Client) recordSelection(sel *pathselect.NodeSelection, err error) {
	if err != nil {
		c.metrics.RouteFailed(err.Error())
		return
	}
	c.metrics.RouteSelected(sel.Via)
}

func (c *Client) prepareVia(sel *pathselect.NodeSelection, call Call, originalID string) (*Prepared, error) {
	m := sel.Match
	exitKey, err := peerid.PublicKey(m.ExitNode.ID)
	if err != nil {
		c.metrics.RequestFailed("exit key")
		return nil, fmt.Errorf("exit public key: %w", err)
	}
	req, session, err := c.pipeline.Create(request.Params{
		ID:                uuid.NewString(),
		OriginalID:        originalID,
		Provider:          call.Provider,
		Body:              call.Body,
		ClientID:          c.clientID,
		EntryPeerID:       m.EntryNode.ID,
		ExitPeerID:        m.ExitNode.ID,
		ExitPublicKey:     exitKey,
		CounterOffset:     m.CounterOffset,
		MeasureRPCLatency: call.MeasureRPCLatency,
		Headers:           call.Headers,
		Hops:              call.Hops,
		ReqRelayPeerID:    m.ReqRelayPeerID,
		RespRelayPeerID:   m.RespRelayPeerID,
	})
	if err != nil {
		c.metrics.RequestFailed("box")
		return nil, err
	}
	boxSession, ok := session.(*box.Session)
	if !ok {
		return nil, errors.New("unexpected session type")
	}
	segs := c.pipeline.ToSegments(req, session)

	c.metrics.RequestCreated()
	c.metrics.SegmentsEmitted(len(segs))
	c.logger.Info("request prepared", "requestId", req.ID, "route", pathselect.PrettyPrint(sel))
	c.logger.Debug("request segmented", "request", request.PrettyPrint(req), "segments", len(segs))

	return &Prepared{Selection: sel, Request: req, Session: boxSession, Segments: segs}, nil
}

// Close zeroes the session key. The response can no longer be opened.
func (p *Prepared) Close() {
	p.Session.Close()
}

// OpenResponse opens the exit's sealed response to p.
func (c *Client) OpenResponse(p *Prepared, sealed []byte) (payload.RespPayload, error) {
	data, err := p.Session.UnboxResponse(sealed)
	if err != nil {
		return nil, fmt.Errorf("open response: %w", err)
	}
	return payload.UnmarshalResp(data)
}

// ApplyInfo records an encoded info advertisement received through entryID.
func (c *Client) ApplyInfo(entryID, encoded string) error {
	info, err := payload.DecodeInfo(encoded)
	if err != nil {
		return err
	}
	c.mu.Lock()
	xi, err := directory.ApplyInfo(c.pool, entryID, info, c.clock.Now())
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.metrics.InfoApplied()
	c.logger.Debug("exit info applied", "entry", peerid.Short(entryID), "exit", peerid.Short(xi.ExitPeerID), "version", xi.Version, "counterOffset", xi.CounterOffset)
	return nil
}

// RestoreCache applies cached exit info to the pool and returns the number
// of exits updated.
func (c *Client) RestoreCache() int {
	if c.cache == nil {
		return 0
	}
	c.mu.Lock()
	n := c.cache.Restore(c.pool, c.clock.Now(), directory.DefaultMaxAge)
	c.mu.Unlock()
	if n > 0 {
		c.logger.Info("restored exit info from cache", "exits", n)
	}
	return n
}

// SaveCache writes the exit info learned so far to the cache.
func (c *Client) SaveCache() error {
	if c.cache == nil {
		return nil
	}
	c.mu.RLock()
	infos := directory.Snapshot(c.pool)
	c.mu.RUnlock()
	return c.cache.SaveInfo(infos)
}
