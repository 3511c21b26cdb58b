// Package json wraps goccy/go-json for colreplace's reports and parameter
// documents, with pooled buffers and a streaming array encoder.
package json

import (
	"bytes"
	"io"
	"sync"

	gojson "github.com/goccy/go-json"
)

var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

func getBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

func putBuffer(buf *bytes.Buffer) {
	// Keep oversized buffers out of the pool.
	if buf.Cap() <= 1<<20 {
		bufferPool.Put(buf)
	}
}

// Marshal is a drop-in replacement for encoding/json.Marshal.
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// Unmarshal is a drop-in replacement for encoding/json.Unmarshal.
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// EncodeIndent writes v to w as indented JSON followed by a newline. The
// document is built in a pooled buffer, so w sees a single Write and
// nothing at all on failure.
func EncodeIndent(w io.Writer, v interface{}) error {
	buf := getBuffer()
	defer putBuffer(buf)

	enc := gojson.NewEncoder(buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// StreamingEncoder writes values as the elements of one JSON array, so a
// consumer sees a valid document even for a long-running batch.
type StreamingEncoder struct {
	w      io.Writer
	count  int
	indent string
	err    error
}

// NewStreamingEncoder starts an array on w. Elements are indented with
// indent; an empty indent writes compact JSON.
func NewStreamingEncoder(w io.Writer, indent string) *StreamingEncoder {
	return &StreamingEncoder{w: w, indent: indent}
}

// Encode appends v to the array. After a failed write every later call
// returns the same error.
func (se *StreamingEncoder) Encode(v interface{}) error {
	if se.err != nil {
		return se.err
	}

	buf := getBuffer()
	defer putBuffer(buf)

	if se.count == 0 {
		buf.WriteByte('[')
	} else {
		buf.WriteByte(',')
	}
	if se.indent != "" {
		buf.WriteByte('\n')
		buf.WriteString(se.indent)
	}

	var data []byte
	var err error
	if se.indent != "" {
		data, err = gojson.MarshalIndent(v, se.indent, se.indent)
	} else {
		data, err = gojson.Marshal(v)
	}
	if err != nil {
		return err
	}
	buf.Write(data)

	if _, se.err = se.w.Write(buf.Bytes()); se.err != nil {
		return se.err
	}
	se.count++
	return nil
}

// Count returns the number of elements written.
func (se *StreamingEncoder) Count() int {
	return se.count
}

// Close terminates the array. An encoder that wrote nothing produces [].
func (se *StreamingEncoder) Close() error {
	if se.err != nil {
		return se.err
	}
	var tail string
	switch {
	case se.count == 0:
		tail = "[]\n"
	case se.indent != "":
		tail = "\n]\n"
	default:
		tail = "]\n"
	}
	_, se.err = io.WriteString(se.w, tail)
	return se.err
}
