package payload

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrEncodeInfo = errors.New("error encoding info payload")
	ErrDecodeInfo = errors.New("error decoding info payload")
)

// compressReqResp selects the compressed transport form for request and
// response payloads in MarshalReq/MarshalResp and their inverses.
//
// TODO: find a compression that pays off on small RPC payloads, then enable.
const compressReqResp = false

// Presence predicates. An optional field is put on the wire, and read back,
// only if its value satisfies the predicate for its category.

func hasString(s string) bool { return s != "" }

func hasFlag(b bool) bool { return b }

func hasMap(m map[string]string) bool { return m != nil }

func hasList(l []string) bool { return l != nil }

func hasData(d Bytes) bool { return d != nil }

func hasDuration(d *int64) bool { return d != nil && *d >= 0 }

func hasCount(n *int) bool { return n != nil && *n >= 0 }

// EncodeReq converts a request payload to its transport form.
func EncodeReq(r ReqPayload) TransportReqPayload {
	t := TransportReqPayload{C: r.ClientID, E: r.Endpoint}
	if hasString(r.Body) {
		t.B = r.Body
	}
	if hasMap(r.Headers) {
		t.H = r.Headers
	}
	if hasString(r.Method) {
		t.M = r.Method
	}
	if hasDuration(r.Timeout) {
		t.T = r.Timeout
	}
	if hasCount(r.Hops) {
		t.N = r.Hops
	}
	if hasString(r.RelayPeerID) {
		t.R = r.RelayPeerID
	}
	if hasFlag(r.WithDuration) {
		t.W = r.WithDuration
	}
	if hasString(r.ChainID) {
		t.I = r.ChainID
	}
	return t
}

// DecodeReq converts a transport request payload back.
func DecodeReq(t TransportReqPayload) ReqPayload {
	r := ReqPayload{ClientID: t.C, Endpoint: t.E}
	if hasString(t.B) {
		r.Body = t.B
	}
	if hasMap(t.H) {
		r.Headers = t.H
	}
	if hasString(t.M) {
		r.Method = t.M
	}
	if hasDuration(t.T) {
		r.Timeout = t.T
	}
	if hasCount(t.N) {
		r.Hops = t.N
	}
	if hasString(t.R) {
		r.RelayPeerID = t.R
	}
	if hasFlag(t.W) {
		r.WithDuration = t.W
	}
	if hasString(t.I) {
		r.ChainID = t.I
	}
	return r
}

// EncodeResp converts a response payload to its transport form.
func EncodeResp(r RespPayload) (TransportRespPayload, error) {
	switch r := r.(type) {
	case *Resp:
		t := &TransportResp{H: r.Headers, S: r.Status, A: r.StatusText}
		if hasData(r.Data) {
			t.D = r.Data
		}
		if hasDuration(r.CallDuration) {
			t.F = r.CallDuration
		}
		if hasDuration(r.ExitAppDuration) {
			t.E = r.ExitAppDuration
		}
		return t, nil
	case *CounterFail:
		return &TransportCounterFail{C: r.Counter}, nil
	case *DuplicateFail:
		return &TransportDuplicateFail{}, nil
	case *ErrorResp:
		return &TransportError{R: r.Reason}, nil
	}
	return nil, fmt.Errorf("unhandled response payload %T", r)
}

// DecodeResp converts a transport response payload back.
func DecodeResp(t TransportRespPayload) (RespPayload, error) {
	switch t := t.(type) {
	case *TransportResp:
		r := &Resp{Headers: t.H, Status: t.S, StatusText: t.A}
		if hasData(t.D) {
			r.Data = t.D
		}
		if hasDuration(t.F) {
			r.CallDuration = t.F
		}
		if hasDuration(t.E) {
			r.ExitAppDuration = t.E
		}
		return r, nil
	case *TransportCounterFail:
		return &CounterFail{Counter: t.C}, nil
	case *TransportDuplicateFail:
		return &DuplicateFail{}, nil
	case *TransportError:
		return &ErrorResp{Reason: t.R}, nil
	}
	return nil, fmt.Errorf("unhandled transport response payload %T", t)
}

// EncodeInfo serializes an info payload into its compressed transport string.
func EncodeInfo(p InfoPayload) (string, error) {
	t := TransportInfoPayload{I: p.PeerID, V: p.Version, C: p.Counter}
	if hasList(p.RelayShortIDs) {
		t.R = p.RelayShortIDs
	}
	b, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncodeInfo, err)
	}
	return compress(b), nil
}

// DecodeInfo reverses EncodeInfo.
func DecodeInfo(s string) (InfoPayload, error) {
	b, err := decompress(s)
	if err != nil {
		return InfoPayload{}, fmt.Errorf("%w: %v", ErrDecodeInfo, err)
	}
	var t TransportInfoPayload
	if err := json.Unmarshal(b, &t); err != nil {
		return InfoPayload{}, fmt.Errorf("%w: %v", ErrDecodeInfo, err)
	}
	return InfoPayload{PeerID: t.I, Version: t.V, Counter: t.C, RelayShortIDs: t.R}, nil
}

// MarshalReq serializes a request payload for boxing.
func MarshalReq(p ReqPayload) ([]byte, error) {
	if compressReqResp {
		b, err := json.Marshal(EncodeReq(p))
		if err != nil {
			return nil, fmt.Errorf("error encoding request payload: %v", err)
		}
		return []byte(compress(b)), nil
	}
	return json.Marshal(p)
}

// UnmarshalReq parses the output of MarshalReq.
func UnmarshalReq(data []byte) (ReqPayload, error) {
	if compressReqResp {
		b, err := decompress(string(data))
		if err != nil {
			return ReqPayload{}, fmt.Errorf("error decoding request payload: %v", err)
		}
		var t TransportReqPayload
		if err := json.Unmarshal(b, &t); err != nil {
			return ReqPayload{}, fmt.Errorf("error decoding request payload: %v", err)
		}
		return DecodeReq(t), nil
	}
	var p ReqPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return ReqPayload{}, err
	}
	return p, nil
}

// MarshalResp serializes a response payload for boxing.
func MarshalResp(p RespPayload) ([]byte, error) {
	if compressReqResp {
		t, err := EncodeResp(p)
		if err != nil {
			return nil, err
		}
		b, err := json.Marshal(t)
		if err != nil {
			return nil, fmt.Errorf("error encoding response payload: %v", err)
		}
		return []byte(compress(b)), nil
	}
	if p == nil {
		return nil, fmt.Errorf("nil response payload")
	}
	return json.Marshal(p)
}

// UnmarshalResp parses the output of MarshalResp.
func UnmarshalResp(data []byte) (RespPayload, error) {
	if compressReqResp {
		b, err := decompress(string(data))
		if err != nil {
			return nil, fmt.Errorf("error decoding response payload: %v", err)
		}
		t, err := ParseTransportResp(b)
		if err != nil {
			return nil, fmt.Errorf("error decoding response payload: %v", err)
		}
		return DecodeResp(t)
	}
	return ParseResp(data)
}
