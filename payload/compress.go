package payload

import (
	"encoding/base64"

	"github.com/klauspost/compress/zstd"
)

// Compressed payloads are zstd frames, base64 encoded so the result is a
// plain string that survives any text transport.

var (
	zenc = mustEncoder()
	zdec = mustDecoder()
)

func mustEncoder() *zstd.Encoder {
	e, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		panic(err)
	}
	return e
}

func mustDecoder() *zstd.Decoder {
	d, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		panic(err)
	}
	return d
}

func compress(b []byte) string {
	return base64.RawStdEncoding.EncodeToString(zenc.EncodeAll(b, nil))
}

func decompress(s string) ([]byte, error) {
	raw, err := base64.RawStdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return zdec.DecodeAll(raw, nil)
}
