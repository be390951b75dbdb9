package payload

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// RespType tags the response variants. The ordinal values are part of the
// wire format.
type RespType int

const (
	RespTypeResp RespType = iota
	RespTypeCounterFail
	RespTypeDuplicateFail
	RespTypeError
)

func (t RespType) String() string {
	switch t {
	case RespTypeResp:
		return "Resp"
	case RespTypeCounterFail:
		return "CounterFail"
	case RespTypeDuplicateFail:
		return "DuplicateFail"
	case RespTypeError:
		return "Error"
	}
	return "RespType(" + strconv.Itoa(int(t)) + ")"
}

// RespPayload is one of *Resp, *CounterFail, *DuplicateFail or *ErrorResp.
type RespPayload interface {
	Type() RespType
	isRespPayload()
}

// Resp carries the result of the HTTP call made by the exit node.
type Resp struct {
	Headers         map[string]string `json:"headers"`
	Status          int               `json:"status"`
	StatusText      string            `json:"statusText"`
	Data            Bytes             `json:"data,omitempty"`
	CallDuration    *int64            `json:"callDuration,omitempty"`    // milliseconds
	ExitAppDuration *int64            `json:"exitAppDuration,omitempty"` // milliseconds
}

// CounterFail reports a request counter outside the exit's accepted window.
type CounterFail struct {
	Counter int64 `json:"counter"` // exit node clock in milliseconds
}

// DuplicateFail reports a replayed request.
type DuplicateFail struct{}

// ErrorResp reports a failure on the exit node.
type ErrorResp struct {
	Reason string `json:"reason"`
}

func (*Resp) Type() RespType          { return RespTypeResp }
func (*CounterFail) Type() RespType   { return RespTypeCounterFail }
func (*DuplicateFail) Type() RespType { return RespTypeDuplicateFail }
func (*ErrorResp) Type() RespType     { return RespTypeError }

func (*Resp) isRespPayload()          {}
func (*CounterFail) isRespPayload()   {}
func (*DuplicateFail) isRespPayload() {}
func (*ErrorResp) isRespPayload()     {}

func (r *Resp) MarshalJSON() ([]byte, error) {
	type plain Resp
	return json.Marshal(struct {
		Type RespType `json:"type"`
		*plain
	}{RespTypeResp, (*plain)(r)})
}

func (r *CounterFail) MarshalJSON() ([]byte, error) {
	type plain CounterFail
	return json.Marshal(struct {
		Type RespType `json:"type"`
		*plain
	}{RespTypeCounterFail, (*plain)(r)})
}

func (*DuplicateFail) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type RespType `json:"type"`
	}{RespTypeDuplicateFail})
}

func (r *ErrorResp) MarshalJSON() ([]byte, error) {
	type plain ErrorResp
	return json.Marshal(struct {
		Type RespType `json:"type"`
		*plain
	}{RespTypeError, (*plain)(r)})
}

// ParseResp decodes the JSON form of a RespPayload, dispatching on "type".
func ParseResp(data []byte) (RespPayload, error) {
	var tag struct {
		Type *RespType `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, err
	}
	if tag.Type == nil {
		return nil, fmt.Errorf("response payload without type")
	}
	var p RespPayload
	switch *tag.Type {
	case RespTypeResp:
		p = new(Resp)
	case RespTypeCounterFail:
		p = new(CounterFail)
	case RespTypeDuplicateFail:
		return new(DuplicateFail), nil
	case RespTypeError:
		p = new(ErrorResp)
	default:
		return nil, fmt.Errorf("unknown response type %d", *tag.Type)
	}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, err
	}
	return p, nil
}

// TransportRespPayload is one of *TransportResp, *TransportCounterFail,
// *TransportDuplicateFail or *TransportError.
type TransportRespPayload interface {
	Type() RespType
	isTransportRespPayload()
}

// TransportResp is the compact form of Resp.
type TransportResp struct {
	H map[string]string `json:"h"`           // headers
	S int               `json:"s"`           // status
	A string            `json:"a"`           // statusText
	D Bytes             `json:"d,omitempty"` // data
	F *int64            `json:"f,omitempty"` // callDuration
	E *int64            `json:"e,omitempty"` // exitAppDuration
}

// TransportCounterFail is the compact form of CounterFail.
type TransportCounterFail struct {
	C int64 `json:"c"` // counter
}

// TransportDuplicateFail is the compact form of DuplicateFail.
type TransportDuplicateFail struct{}

// TransportError is the compact form of ErrorResp.
type TransportError struct {
	R string `json:"r"` // reason
}

func (*TransportResp) Type() RespType          { return RespTypeResp }
func (*TransportCounterFail) Type() RespType   { return RespTypeCounterFail }
func (*TransportDuplicateFail) Type() RespType { return RespTypeDuplicateFail }
func (*TransportError) Type() RespType         { return RespTypeError }

func (*TransportResp) isTransportRespPayload()          {}
func (*TransportCounterFail) isTransportRespPayload()   {}
func (*TransportDuplicateFail) isTransportRespPayload() {}
func (*TransportError) isTransportRespPayload()         {}

func (t *TransportResp) MarshalJSON() ([]byte, error) {
	type plain TransportResp
	return json.Marshal(struct {
		T RespType `json:"t"`
		*plain
	}{RespTypeResp, (*plain)(t)})
}

func (t *TransportCounterFail) MarshalJSON() ([]byte, error) {
	type plain TransportCounterFail
	return json.Marshal(struct {
		T RespType `json:"t"`
		*plain
	}{RespTypeCounterFail, (*plain)(t)})
}

func (*TransportDuplicateFail) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		T RespType `json:"t"`
	}{RespTypeDuplicateFail})
}

func (t *TransportError) MarshalJSON() ([]byte, error) {
	type plain TransportError
	return json.Marshal(struct {
		T RespType `json:"t"`
		*plain
	}{RespTypeError, (*plain)(t)})
}

// ParseTransportResp decodes the JSON form of a TransportRespPayload,
// dispatching on "t".
func ParseTransportResp(data []byte) (TransportRespPayload, error) {
	var tag struct {
		T *RespType `json:"t"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, err
	}
	if tag.T == nil {
		return nil, fmt.Errorf("transport response payload without type")
	}
	var t TransportRespPayload
	switch *tag.T {
	case RespTypeResp:
		t = new(TransportResp)
	case RespTypeCounterFail:
		t = new(TransportCounterFail)
	case RespTypeDuplicateFail:
		return new(TransportDuplicateFail), nil
	case RespTypeError:
		t = new(TransportError)
	default:
		return nil, fmt.Errorf("unknown response type %d", *tag.T)
	}
	if err := json.Unmarshal(data, t); err != nil {
		return nil, err
	}
	return t, nil
}
