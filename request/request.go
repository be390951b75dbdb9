// Package request turns an application call into a boxed, segmentable
// request for a selected route, and opens boxed requests on the exit side.
package request

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/cvsouth/phttp-go/payload"
	"github.com/cvsouth/phttp-go/peerid"
	"github.com/cvsouth/phttp-go/segment"
)

var (
	ErrMissingSessionPayload = errors.New("Crypto session without request object")
	ErrPayloadParse          = errors.New("error during JSON parsing")
)

// Session is an encryption context. The pipeline only reads the request
// bytes: sealed on the sending side, opened on the receiving side.
type Session interface {
	Request() []byte
}

// Crypto seals and opens requests.
type Crypto interface {
	BoxRequest(message []byte, exitPeerID, requestID string, exitPublicKey []byte, counterOffset int64) (Session, error)
	UnboxRequest(message []byte, requestID, exitPeerID string, exitPrivateKey []byte) (Session, error)
}

// Segmenter chunks a message for the relay network.
type Segmenter interface {
	ToSegments(id string, payload []byte) []segment.Segment
}

// SegmenterFunc adapts a function to Segmenter.
type SegmenterFunc func(id string, payload []byte) []segment.Segment

func (f SegmenterFunc) ToSegments(id string, payload []byte) []segment.Segment {
	return f(id, payload)
}

// Request is one attempt of a call through a route. It is immutable after
// Create except for LastSegmentEndedAt.
type Request struct {
	ID                 string
	OriginalID         string // set on retries
	Provider           string
	Body               string
	EntryPeerID        string
	ExitPeerID         string
	StartedAt          time.Time
	MeasureRPCLatency  bool
	LastSegmentEndedAt *time.Time
	Headers            map[string]string
	Hops               *int
	ReqRelayPeerID     string
	RespRelayPeerID    string
}

// Params are the inputs of Create.
type Params struct {
	ID                string
	OriginalID        string
	Provider          string
	Body              string
	ClientID          string
	EntryPeerID       string
	ExitPeerID        string
	ExitPublicKey     []byte
	CounterOffset     int64
	MeasureRPCLatency bool
	Headers           map[string]string
	Hops              *int
	ReqRelayPeerID    string
	RespRelayPeerID   string
}

// Pipeline builds and opens requests. It holds no per-request state and is
// safe for concurrent use if its collaborators are.
type Pipeline struct {
	crypto    Crypto
	segmenter Segmenter
	clock     clock.Clock
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock sets the clock stamping StartedAt.
func WithClock(c clock.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// WithSegmenter replaces segment.ToSegments.
func WithSegmenter(s Segmenter) Option {
	return func(p *Pipeline) { p.segmenter = s }
}

// New returns a Pipeline boxing with c.
func New(c Crypto, opts ...Option) *Pipeline {
	p := &Pipeline{
		crypto:    c,
		segmenter: SegmenterFunc(segment.ToSegments),
		clock:     clock.New(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Create builds the request payload from params, boxes it for the exit and
// returns the request together with its session. Boxing errors are returned
// as is.
func (p *Pipeline) Create(params Params) (*Request, Session, error) {
	reqPayload := payload.ReqPayload{
		Endpoint:     params.Provider,
		ClientID:     params.ClientID,
		Body:         params.Body,
		Headers:      params.Headers,
		Method:       "POST",
		Hops:         params.Hops,
		RelayPeerID:  params.RespRelayPeerID,
		WithDuration: params.MeasureRPCLatency,
	}
	data, err := payload.MarshalReq(reqPayload)
	if err != nil {
		return nil, nil, err
	}

	session, err := p.crypto.BoxRequest(data, params.ExitPeerID, params.ID, params.ExitPublicKey, params.CounterOffset)
	if err != nil {
		return nil, nil, err
	}

	req := &Request{
		ID:                params.ID,
		OriginalID:        params.OriginalID,
		Provider:          params.Provider,
		Body:              params.Body,
		EntryPeerID:       params.EntryPeerID,
		ExitPeerID:        params.ExitPeerID,
		Headers:           params.Headers,
		Hops:              params.Hops,
		MeasureRPCLatency: params.MeasureRPCLatency,
		ReqRelayPeerID:    params.ReqRelayPeerID,
		RespRelayPeerID:   params.RespRelayPeerID,
		StartedAt:         p.clock.Now(),
	}
	return req, session, nil
}

// MessageToReq opens a boxed request on the exit side and parses its payload.
func (p *Pipeline) MessageToReq(requestID string, message []byte, exitPeerID string, exitPrivateKey []byte) (*payload.ReqPayload, Session, error) {
	session, err := p.crypto.UnboxRequest(message, requestID, exitPeerID, exitPrivateKey)
	if err != nil {
		return nil, nil, err
	}
	data := session.Request()
	if data == nil {
		return nil, nil, ErrMissingSessionPayload
	}
	reqPayload, err := payload.UnmarshalReq(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrPayloadParse, err)
	}
	return &reqPayload, session, nil
}

// ToSegments prefixes the sealed request with the entry peer id, which the
// relay network needs in the clear, and segments the result. There is no
// delimiter: peer ids are fixed width (peerid.Len).
func (p *Pipeline) ToSegments(req *Request, session Session) []segment.Segment {
	return p.segmenter.ToSegments(req.ID, SegmentBody(req, session))
}

// SegmentBody is the message ToSegments hands to the segmenter.
func SegmentBody(req *Request, session Session) []byte {
	sealed := session.Request()
	body := make([]byte, 0, len(req.EntryPeerID)+len(sealed))
	body = append(body, req.EntryPeerID...)
	return append(body, sealed...)
}

// ParseSegmentBody splits a reassembled message into the entry peer id and
// the sealed request.
func ParseSegmentBody(body []byte) (string, []byte, error) {
	if len(body) < peerid.Len {
		return "", nil, fmt.Errorf("segment body too short: %d bytes", len(body))
	}
	entryPeerID := string(body[:peerid.Len])
	if err := peerid.Validate(entryPeerID); err != nil {
		return "", nil, fmt.Errorf("entry peer id: %w", err)
	}
	return entryPeerID, body[peerid.Len:], nil
}

// PrettyPrint renders the request as request[<id>, <route>, <provider>]. A
// request without a known request relay shows "(r)" unless it was sent with
// zero hops.
func PrettyPrint(req *Request) string {
	path := []string{"e" + peerid.Short(req.EntryPeerID)}
	if req.ReqRelayPeerID != "" {
		path = append(path, "r"+peerid.Short(req.ReqRelayPeerID))
	} else if req.Hops == nil || *req.Hops != 0 {
		path = append(path, "(r)")
	}
	path = append(path, "x"+peerid.Short(req.ExitPeerID))
	if req.RespRelayPeerID != "" {
		path = append(path, "r"+peerid.Short(req.RespRelayPeerID))
	}
	return fmt.Sprintf("request[%s, %s, %s]", req.ID, strings.Join(path, ">"), req.Provider)
}
