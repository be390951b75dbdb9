package client

import (
	"log/slog"

	"github.com/benbjohnson/clock"

	"github.com/cvsouth/phttp-go/box"
	"github.com/cvsouth/phttp-go/payload"
	"github.com/cvsouth/phttp-go/peerid"
	"github.com/cvsouth/phttp-go/request"
	"github.com/cvsouth/phttp-go/segment"
)

// Exit is the receiving end of a request. It opens requests boxed for its
// identity and seals responses. Used by the CLI to answer locally and in
// tests.
type Exit struct {
	identity      *peerid.Identity
	version       string
	relayShortIDs []string
	pipeline      *request.Pipeline
	segments      *segment.Cache
	clock         clock.Clock
	logger        *slog.Logger
}

// Incoming is an opened request.
type Incoming struct {
	RequestID   string
	EntryPeerID string
	Counter     int64
	Payload     *payload.ReqPayload

	session *box.Session
}

// NewExit returns an Exit for id advertising version and relayShortIDs.
func NewExit(id *peerid.Identity, version string, relayShortIDs []string, c clock.Clock, logger *slog.Logger) (*Exit, error) {
	segments, err := segment.NewCache(segment.DefaultCacheSize)
	if err != nil {
		return nil, err
	}
	if c == nil {
		c = clock.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Exit{
		identity:      id,
		version:       version,
		relayShortIDs: relayShortIDs,
		pipeline:      request.New(boxCrypto{b: box.New(c)}, request.WithClock(c)),
		segments:      segments,
		clock:         c,
		logger:        logger,
	}, nil
}

// Info encodes the exit's info advertisement.
func (e *Exit) Info() (string, error) {
	return payload.EncodeInfo(payload.InfoPayload{
		PeerID:        e.identity.PeerID,
		Version:       e.version,
		Counter:       e.clock.Now().UnixMilli(),
		RelayShortIDs: e.relayShortIDs,
	})
}

// Receive collects s and opens its request once every segment of it has
// arrived. It returns nil and no error while segments are missing.
func (e *Exit) Receive(s segment.Segment) (*Incoming, error) {
	body, done, err := e.segments.Add(s)
	if err != nil {
		return nil, err
	}
	if !done {
		return nil, nil
	}
	return e.Open(s.RequestID, body)
}

// Open splits a reassembled segment body and opens the request in it.
func (e *Exit) Open(requestID string, body []byte) (*Incoming, error) {
	entryPeerID, sealed, err := request.ParseSegmentBody(body)
	if err != nil {
		return nil, err
	}
	reqPayload, session, err := e.pipeline.MessageToReq(requestID, sealed, e.identity.PeerID, e.identity.PrivateKey)
	if err != nil {
		return nil, err
	}
	s := session.(*box.Session)
	e.logger.Debug("request opened", "requestId", requestID, "entry", peerid.Short(entryPeerID), "endpoint", reqPayload.Endpoint)
	return &Incoming{
		RequestID:   requestID,
		EntryPeerID: entryPeerID,
		Counter:     s.Counter,
		Payload:     reqPayload,
		session:     s,
	}, nil
}

// Respond seals resp for the client that sent in.
func (e *Exit) Respond(in *Incoming, resp payload.RespPayload) ([]byte, error) {
	data, err := payload.MarshalResp(resp)
	if err != nil {
		return nil, err
	}
	return in.session.BoxResponse(data)
}

// Close zeroes the session key. The response can no longer be sealed.
func (in *Incoming) Close() {
	in.session.Close()
}
