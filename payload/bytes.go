package payload

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Bytes is response body data. It travels as a JSON array of numbers rather
// than base64 so nodes written in other languages can read it as a plain
// byte array.
type Bytes []byte

func (b Bytes) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("null"), nil
	}
	out := make([]byte, 0, 2+4*len(b))
	out = append(out, '[')
	for i, v := range b {
		if i > 0 {
			out = append(out, ',')
		}
		out = strconv.AppendUint(out, uint64(v), 10)
	}
	return append(out, ']'), nil
}

func (b *Bytes) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*b = nil
		return nil
	}
	var nums []int
	if err := json.Unmarshal(data, &nums); err != nil {
		return err
	}
	out := make(Bytes, len(nums))
	for i, n := range nums {
		if n < 0 || n > 255 {
			return fmt.Errorf("byte value %d at index %d out of range", n, i)
		}
		out[i] = byte(n)
	}
	*b = out
	return nil
}
