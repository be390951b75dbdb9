package payload

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestEncodeReqCompactFields(t *testing.T) {
	r := ReqPayload{ClientID: "abc", Endpoint: "https://x", Method: "POST", Hops: ptr(1)}
	tr := EncodeReq(r)

	b, err := json.Marshal(tr)
	require.NoError(t, err)
	require.JSONEq(t, `{"c":"abc","e":"https://x","m":"POST","n":1}`, string(b))

	back := DecodeReq(tr)
	require.Equal(t, r, back)
	require.Empty(t, back.Body)
	require.Nil(t, back.Headers)
	require.Nil(t, back.Timeout)
	require.Empty(t, back.RelayPeerID)
	require.False(t, back.WithDuration)
	require.Empty(t, back.ChainID)
}

func TestReqRoundTripAllFields(t *testing.T) {
	r := ReqPayload{
		ClientID:     "sandbox",
		Endpoint:     "https://provider.example/rpc",
		Body:         `{"jsonrpc":"2.0","method":"eth_blockNumber"}`,
		Headers:      map[string]string{"Content-Type": "application/json"},
		Method:       "POST",
		Timeout:      ptr(int64(10000)),
		Hops:         ptr(0),
		RelayPeerID:  "12D3KooWrelay",
		WithDuration: true,
		ChainID:      "0x1",
	}
	b, err := json.Marshal(EncodeReq(r))
	require.NoError(t, err)

	var tr TransportReqPayload
	require.NoError(t, json.Unmarshal(b, &tr))
	require.Equal(t, r, DecodeReq(tr))
}

func TestReqNegativeTimeoutElided(t *testing.T) {
	r := ReqPayload{ClientID: "c", Endpoint: "e", Timeout: ptr(int64(-1)), Hops: ptr(-3)}
	tr := EncodeReq(r)
	require.Nil(t, tr.T)
	require.Nil(t, tr.N)

	b, err := json.Marshal(tr)
	require.NoError(t, err)
	require.NotContains(t, string(b), `"t"`)
	require.NotContains(t, string(b), `"n"`)

	back := DecodeReq(tr)
	require.Nil(t, back.Timeout)
	require.Nil(t, back.Hops)
}

func TestDecodeReqAppliesPredicates(t *testing.T) {
	tr := TransportReqPayload{C: "c", E: "e", T: ptr(int64(-5)), N: ptr(2)}
	r := DecodeReq(tr)
	require.Nil(t, r.Timeout)
	require.Equal(t, 2, *r.Hops)
}

func TestRespVariantsRoundTrip(t *testing.T) {
	variants := []RespPayload{
		&Resp{
			Headers:         map[string]string{"x": "y"},
			Status:          200,
			StatusText:      "OK",
			Data:            Bytes{1, 2, 3},
			CallDuration:    ptr(int64(12)),
			ExitAppDuration: ptr(int64(0)),
		},
		&Resp{Headers: map[string]string{}, Status: 204, StatusText: "No Content"},
		&CounterFail{Counter: 1700000000000},
		&DuplicateFail{},
		&ErrorResp{Reason: "upstream timeout"},
	}
	for _, v := range variants {
		tr, err := EncodeResp(v)
		require.NoError(t, err)
		require.Equal(t, v.Type(), tr.Type())

		b, err := json.Marshal(tr)
		require.NoError(t, err)
		parsed, err := ParseTransportResp(b)
		require.NoError(t, err)

		back, err := DecodeResp(parsed)
		require.NoError(t, err)
		require.Equal(t, v, back)
	}
}

func TestTransportRespWireTags(t *testing.T) {
	b, err := json.Marshal(&TransportDuplicateFail{})
	require.NoError(t, err)
	require.JSONEq(t, `{"t":2}`, string(b))

	b, err = json.Marshal(&TransportCounterFail{C: 5})
	require.NoError(t, err)
	require.JSONEq(t, `{"t":1,"c":5}`, string(b))

	b, err = json.Marshal(&TransportError{R: "boom"})
	require.NoError(t, err)
	require.JSONEq(t, `{"t":3,"r":"boom"}`, string(b))

	b, err = json.Marshal(&TransportResp{H: map[string]string{}, S: 0, A: ""})
	require.NoError(t, err)
	require.JSONEq(t, `{"t":0,"h":{},"s":0,"a":""}`, string(b))
}

func TestRespNegativeDurationsDropped(t *testing.T) {
	tr, err := EncodeResp(&Resp{Status: 200, StatusText: "OK", CallDuration: ptr(int64(-1))})
	require.NoError(t, err)
	require.Nil(t, tr.(*TransportResp).F)
}

func TestParseTransportRespErrors(t *testing.T) {
	_, err := ParseTransportResp([]byte(`{"c":1}`))
	require.Error(t, err)
	_, err = ParseTransportResp([]byte(`{"t":9}`))
	require.Error(t, err)
	_, err = ParseTransportResp([]byte(`not json`))
	require.Error(t, err)
}

func TestEncodeRespNil(t *testing.T) {
	_, err := EncodeResp(nil)
	require.Error(t, err)
	_, err = DecodeResp(nil)
	require.Error(t, err)
}

func TestMarshalRespLogicalForm(t *testing.T) {
	b, err := MarshalResp(&ErrorResp{Reason: "nope"})
	require.NoError(t, err)
	require.JSONEq(t, `{"type":3,"reason":"nope"}`, string(b))

	b, err = MarshalResp(&DuplicateFail{})
	require.NoError(t, err)
	require.JSONEq(t, `{"type":2}`, string(b))

	orig := &Resp{Headers: map[string]string{"a": "b"}, Status: 500, StatusText: "Internal", Data: Bytes{0, 255}}
	b, err = MarshalResp(orig)
	require.NoError(t, err)
	require.Contains(t, string(b), `"data":[0,255]`)

	back, err := UnmarshalResp(b)
	require.NoError(t, err)
	require.Equal(t, orig, back)
}

func TestMarshalReqUncompressed(t *testing.T) {
	r := ReqPayload{ClientID: "cid", Endpoint: "https://x", Method: "POST", Hops: ptr(1), WithDuration: true}
	b, err := MarshalReq(r)
	require.NoError(t, err)
	require.JSONEq(t, `{"clientId":"cid","endpoint":"https://x","method":"POST","hops":1,"withDuration":true}`, string(b))

	back, err := UnmarshalReq(b)
	require.NoError(t, err)
	require.Equal(t, r, back)

	_, err = UnmarshalReq([]byte("{"))
	require.Error(t, err)
}

func TestBytesJSON(t *testing.T) {
	b, err := json.Marshal(Bytes{1, 2, 255})
	require.NoError(t, err)
	require.Equal(t, `[1,2,255]`, string(b))

	var out Bytes
	require.NoError(t, json.Unmarshal([]byte(`[7,8]`), &out))
	require.Equal(t, Bytes{7, 8}, out)

	require.Error(t, json.Unmarshal([]byte(`[256]`), &out))
	require.Error(t, json.Unmarshal([]byte(`"AQI="`), &out))
}
