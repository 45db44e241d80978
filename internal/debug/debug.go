// Package debug is a binary trace log for the interrupt path.
//
// Writers are cheap when no log is open: every Write call first checks an
// atomic pointer and returns. Each record is a fixed 16-byte header followed
// by the source name and the payload:
//
//   - 2 bytes kind (0 = invalid, 1 = bytes, 2 = string)
//   - 2 bytes source length
//   - 4 bytes payload length
//   - 8 bytes timestamp (nanoseconds since epoch)
//
// Concurrent writers reserve space by atomically advancing the file offset,
// so records never interleave.
package debug

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

type Kind uint16

const (
	KindInvalid Kind = iota
	KindBytes
	KindString
)

const headerSize = 16

// Writer is the sink for records.
type Writer interface {
	io.WriterAt
	io.Closer
}

type sink struct {
	w Writer
}

var (
	current atomic.Pointer[sink]
	offset  atomic.Uint64
	now     = time.Now
)

// OpenFile truncates filename and starts logging to it.
func OpenFile(filename string) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	return Open(f)
}

// Open starts logging to w. The returned error is a warning that a previous
// writer was replaced without being closed.
func Open(w Writer) error {
	offset.Store(0)
	if current.Swap(&sink{w: w}) != nil {
		return fmt.Errorf("debug: already open, discarded old writer")
	}
	return nil
}

// Memory collects records in memory. Bytes returns the log contents.
type Memory struct {
	mu  sync.Mutex
	buf []byte
}

func (m *Memory) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	end := int(off) + len(p)
	if end > len(m.buf) {
		m.buf = append(m.buf, make([]byte, end-len(m.buf))...)
	}
	copy(m.buf[off:], p)
	return len(p), nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.buf...)
}

// OpenMemory starts logging to a fresh in-memory buffer.
func OpenMemory() (*Memory, error) {
	m := &Memory{}
	return m, Open(m)
}

// Close stops logging and closes the writer.
func Close() error {
	s := current.Swap(nil)
	offset.Store(0)
	if s != nil {
		return s.w.Close()
	}
	return nil
}

// Enabled reports whether a log is open. Callers building expensive
// messages can skip the work when it is false.
func Enabled() bool {
	return current.Load() != nil
}

func encodeHeader(kind Kind, source string, data []byte) []byte {
	header := make([]byte, headerSize, headerSize+len(source)+len(data))
	binary.LittleEndian.PutUint16(header[0:2], uint16(kind))
	binary.LittleEndian.PutUint16(header[2:4], uint16(len(source)))
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(data)))
	binary.LittleEndian.PutUint64(header[8:16], uint64(now().UnixNano()))
	return header
}

func decodeHeader(h []byte) (kind Kind, sourceLen uint16, dataLen uint32, ts int64) {
	kind = Kind(binary.LittleEndian.Uint16(h[0:2]))
	sourceLen = binary.LittleEndian.Uint16(h[2:4])
	dataLen = binary.LittleEndian.Uint32(h[4:8])
	ts = int64(binary.LittleEndian.Uint64(h[8:16]))
	return
}

func write(kind Kind, source string, data []byte) {
	s := current.Load()
	if s == nil {
		return
	}

	rec := encodeHeader(kind, source, data)
	rec = append(rec, source...)
	rec = append(rec, data...)

	off := offset.Add(uint64(len(rec))) - uint64(len(rec))
	if _, err := s.w.WriteAt(rec, int64(off)); err != nil {
		panic(err)
	}
}

func WriteBytes(source string, data []byte) {
	write(KindBytes, source, data)
}

func Write(source string, data string) {
	write(KindString, source, []byte(data))
}

func Writef(source string, format string, args ...any) {
	if !Enabled() {
		return
	}
	write(KindString, source, fmt.Appendf(nil, format, args...))
}

// Source is a writer bound to one source name.
type Source string

func (s Source) Write(data string) { Write(string(s), data) }

func (s Source) Writef(format string, args ...any) { Writef(string(s), format, args...) }
