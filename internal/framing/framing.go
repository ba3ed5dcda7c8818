// Package framing implements the length-delimited JSON framing used on the
// client <-> Wrangler TCP connection: messages are separated by a four-byte
// sentinel (0x0A 0x0A 0x0A 0x0A) rather than a length prefix.
package framing

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Sentinel is the four-byte frame delimiter.
var Sentinel = []byte{0x0A, 0x0A, 0x0A, 0x0A}

// Decoder accumulates bytes read from a TCP connection and splits them into
// complete frames on the sentinel. It is not safe for concurrent use.
type Decoder struct {
	buf bytes.Buffer
}

// NewDecoder returns an empty Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends newly read bytes and returns every complete frame now
// available. Any bytes after the last sentinel remain buffered for the next
// call. Feed never returns an error itself — framing can't fail, only the
// JSON inside a frame can, which callers detect when they unmarshal.
func (d *Decoder) Feed(data []byte) [][]byte {
	d.buf.Write(data)

	var frames [][]byte
	for {
		b := d.buf.Bytes()
		idx := bytes.Index(b, Sentinel)
		if idx < 0 {
			break
		}

		frame := make([]byte, idx)
		copy(frame, b[:idx])
		frames = append(frames, frame)

		remainder := make([]byte, len(b)-idx-len(Sentinel))
		copy(remainder, b[idx+len(Sentinel):])
		d.buf.Reset()
		d.buf.Write(remainder)
	}

	return frames
}

// Encode marshals v to JSON and appends the sentinel, ready to write to the
// TCP connection.
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("framing: encoding frame: %w", err)
	}
	return append(data, Sentinel...), nil
}
