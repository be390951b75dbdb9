package segment

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Reader reads encoded segments from a stream.
type Reader struct {
	r *bufio.Reader
}

func NewReader(r *bufio.Reader) *Reader {
	return &Reader{r: r}
}

// ReadSegment reads the next segment.
func (sr *Reader) ReadSegment() (Segment, error) {
	idLen, err := sr.r.ReadByte()
	if err != nil {
		return Segment{}, fmt.Errorf("read segment id length: %w", err)
	}
	// id + nr + total + bodyLen
	hdr := make([]byte, int(idLen)+6)
	if _, err := io.ReadFull(sr.r, hdr); err != nil {
		return Segment{}, fmt.Errorf("read segment header: %w", err)
	}
	bodyLen := int(binary.BigEndian.Uint16(hdr[len(hdr)-2:]))
	if bodyLen > MaxBodyLen {
		return Segment{}, fmt.Errorf("segment body too large: %d bytes (max %d)", bodyLen, MaxBodyLen)
	}
	buf := make([]byte, 1+len(hdr)+bodyLen)
	buf[0] = idLen
	copy(buf[1:], hdr)
	if _, err := io.ReadFull(sr.r, buf[1+len(hdr):]); err != nil {
		return Segment{}, fmt.Errorf("read segment body: %w", err)
	}
	return Parse(buf)
}

// Writer writes encoded segments to a stream.
type Writer struct {
	w io.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (sw *Writer) WriteSegment(s Segment) error {
	b, err := s.Marshal()
	if err != nil {
		return err
	}
	_, err = sw.w.Write(b)
	return err
}
