// Package payload defines the request, response and info payloads exchanged
// between clients and exit nodes, and transcodes them to and from their
// compact transport form.
//
// The transport form uses one or two letter keys and leaves out every
// optional field whose value fails its presence predicate, so that a decoded
// payload carries exactly the fields that were present when it was encoded.
package payload

// ReqPayload is the request an exit node executes.
type ReqPayload struct {
	ClientID     string            `json:"clientId"`
	Endpoint     string            `json:"endpoint"`
	Body         string            `json:"body,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
	Method       string            `json:"method,omitempty"`  // GET when empty
	Timeout      *int64            `json:"timeout,omitempty"` // milliseconds
	Hops         *int              `json:"hops,omitempty"`    // 1 when unset
	RelayPeerID  string            `json:"relayPeerId,omitempty"`
	WithDuration bool              `json:"withDuration,omitempty"`
	ChainID      string            `json:"chainId,omitempty"`
}

// TransportReqPayload is the compact form of ReqPayload.
type TransportReqPayload struct {
	C string            `json:"c"`           // clientId
	E string            `json:"e"`           // endpoint
	B string            `json:"b,omitempty"` // body
	H map[string]string `json:"h,omitempty"` // headers
	M string            `json:"m,omitempty"` // method
	T *int64            `json:"t,omitempty"` // timeout
	N *int              `json:"n,omitempty"` // hops
	R string            `json:"r,omitempty"` // relayPeerId
	W bool              `json:"w,omitempty"` // withDuration
	I string            `json:"i,omitempty"` // chainId
}

// InfoPayload is what a node advertises about itself.
type InfoPayload struct {
	PeerID        string   `json:"peerId"`
	Version       string   `json:"version"`
	Counter       int64    `json:"counter"` // node clock in milliseconds
	RelayShortIDs []string `json:"relayShortIds,omitempty"`
}

// TransportInfoPayload is the compact form of InfoPayload.
type TransportInfoPayload struct {
	I string   `json:"i"`           // peerId
	V string   `json:"v"`           // version
	C int64    `json:"c"`           // counter
	R []string `json:"r,omitempty"` // relayShortIds
}
