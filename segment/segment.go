// Package segment splits a boxed message into size limited segments for the
// relay network and reassembles them on the receiving side.
package segment

import (
	"encoding/binary"
	"fmt"
)

const (
	MaxBodyLen   = 400   // bytes of message data per segment
	MaxSegments  = 65535 // per message
	MaxIDLen     = 255
	fixedHdrLen  = 1 + 2 + 2 + 2 // idLen + nr + total + bodyLen
	MaxEncodeLen = fixedHdrLen + MaxIDLen + MaxBodyLen
)

// Segment is one chunk of a message. Wire format:
//
//	idLen(1) || id || nr(2) || total(2) || bodyLen(2) || body
type Segment struct {
	RequestID  string
	Nr         int
	TotalCount int
	Body       []byte
}

// ToSegments chunks payload into MaxBodyLen sized segments tagged with id.
// An empty payload still yields one (empty) segment.
func ToSegments(id string, payload []byte) []Segment {
	total := (len(payload) + MaxBodyLen - 1) / MaxBodyLen
	if total == 0 {
		total = 1
	}
	segs := make([]Segment, 0, total)
	for nr := 0; nr < total; nr++ {
		start := nr * MaxBodyLen
		end := min(start+MaxBodyLen, len(payload))
		segs = append(segs, Segment{
			RequestID:  id,
			Nr:         nr,
			TotalCount: total,
			Body:       payload[start:end],
		})
	}
	return segs
}

// Validate checks the segment against the wire format limits.
func (s Segment) Validate() error {
	if len(s.RequestID) == 0 || len(s.RequestID) > MaxIDLen {
		return fmt.Errorf("segment id length %d out of range", len(s.RequestID))
	}
	if s.TotalCount < 1 || s.TotalCount > MaxSegments {
		return fmt.Errorf("segment total count %d out of range", s.TotalCount)
	}
	if s.Nr < 0 || s.Nr >= s.TotalCount {
		return fmt.Errorf("segment nr %d out of range (total %d)", s.Nr, s.TotalCount)
	}
	if len(s.Body) > MaxBodyLen {
		return fmt.Errorf("segment body too large: %d bytes (max %d)", len(s.Body), MaxBodyLen)
	}
	return nil
}

// Marshal encodes the segment.
func (s Segment) Marshal() ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	b := make([]byte, 0, fixedHdrLen+len(s.RequestID)+len(s.Body))
	b = append(b, byte(len(s.RequestID)))
	b = append(b, s.RequestID...)
	b = binary.BigEndian.AppendUint16(b, uint16(s.Nr))
	b = binary.BigEndian.AppendUint16(b, uint16(s.TotalCount))
	b = binary.BigEndian.AppendUint16(b, uint16(len(s.Body)))
	return append(b, s.Body...), nil
}

// Parse decodes a single encoded segment.
func Parse(b []byte) (Segment, error) {
	if len(b) < 1 {
		return Segment{}, fmt.Errorf("segment too short")
	}
	idLen := int(b[0])
	if len(b) < 1+idLen+6 {
		return Segment{}, fmt.Errorf("segment header truncated: %d bytes", len(b))
	}
	s := Segment{RequestID: string(b[1 : 1+idLen])}
	h := b[1+idLen:]
	s.Nr = int(binary.BigEndian.Uint16(h[0:2]))
	s.TotalCount = int(binary.BigEndian.Uint16(h[2:4]))
	bodyLen := int(binary.BigEndian.Uint16(h[4:6]))
	if len(h)-6 != bodyLen {
		return Segment{}, fmt.Errorf("segment body length %d, header says %d", len(h)-6, bodyLen)
	}
	s.Body = h[6:]
	if err := s.Validate(); err != nil {
		return Segment{}, err
	}
	return s, nil
}
