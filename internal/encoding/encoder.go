// Package encoding provides pooled JSON marshaling for response payloads.
package encoding

import (
	"bytes"
	"encoding/json"
	"sync"
	"sync/atomic"
)

// JSONCodec marshals and unmarshals JSON through a pool of reusable buffers,
// avoiding an allocation per response on hot endpoints.
type JSONCodec struct {
	buffers sync.Pool

	gets       int64
	puts       int64
	marshals   int64
	unmarshals int64
}

// NewJSONCodec creates a new pooled JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{
		buffers: sync.Pool{
			New: func() interface{} {
				return new(bytes.Buffer)
			},
		},
	}
}

func (jc *JSONCodec) getBuffer() *bytes.Buffer {
	atomic.AddInt64(&jc.gets, 1)
	buf := jc.buffers.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

func (jc *JSONCodec) putBuffer(buf *bytes.Buffer) {
	// Oversized buffers are dropped so the pool does not pin large payloads
	if buf.Cap() > 1<<20 {
		return
	}
	atomic.AddInt64(&jc.puts, 1)
	jc.buffers.Put(buf)
}

// Marshal encodes v to JSON using a pooled buffer
func (jc *JSONCodec) Marshal(v interface{}) ([]byte, error) {
	atomic.AddInt64(&jc.marshals, 1)

	buf := jc.getBuffer()
	defer jc.putBuffer(buf)

	encoder := json.NewEncoder(buf)
	if err := encoder.Encode(v); err != nil {
		return nil, err
	}

	// Encode appends a trailing newline
	data := buf.Bytes()
	if len(data) > 0 && data[len(data)-1] == '\n' {
		data = data[:len(data)-1]
	}

	// Copy out before the buffer returns to the pool
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Unmarshal decodes JSON into v
func (jc *JSONCodec) Unmarshal(data []byte, v interface{}) error {
	atomic.AddInt64(&jc.unmarshals, 1)

	decoder := json.NewDecoder(bytes.NewReader(data))
	return decoder.Decode(v)
}

// GetStats returns codec pool statistics
func (jc *JSONCodec) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"buffer_gets": atomic.LoadInt64(&jc.gets),
		"buffer_puts": atomic.LoadInt64(&jc.puts),
		"marshals":    atomic.LoadInt64(&jc.marshals),
		"unmarshals":  atomic.LoadInt64(&jc.unmarshals),
	}
}

// Global codec instance shared by the handlers
var globalCodec = NewJSONCodec()

// MarshalJSON marshals data using the global pooled codec
func MarshalJSON(v interface{}) ([]byte, error) {
	return globalCodec.Marshal(v)
}

// UnmarshalJSON unmarshals data using the global pooled codec
func UnmarshalJSON(data []byte, v interface{}) error {
	return globalCodec.Unmarshal(data, v)
}

// Stats returns the global codec's pool statistics
func Stats() map[string]interface{} {
	return globalCodec.GetStats()
}
