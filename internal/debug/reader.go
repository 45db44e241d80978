package debug

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// Record is one decoded log entry.
type Record struct {
	Time   time.Time
	Kind   Kind
	Source string
	Data   []byte
}

func (r Record) String() string {
	return fmt.Sprintf("%s [%s] %s", r.Time.Format(time.RFC3339Nano), r.Source, r.Data)
}

// Filter selects records. Zero values match everything.
type Filter struct {
	Sources []string
	Match   func(Record) bool
	Limit   int
	Tail    bool
}

func (f Filter) accept(rec Record) bool {
	if len(f.Sources) > 0 {
		found := false
		for _, s := range f.Sources {
			if s == rec.Source {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return f.Match == nil || f.Match(rec)
}

// Each decodes every record in r in write order.
func Each(r io.Reader, fn func(Record) error) error {
	br := bufio.NewReader(r)
	var header [headerSize]byte
	for {
		if _, err := io.ReadFull(br, header[:]); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("debug: read header: %w", err)
		}
		kind, sourceLen, dataLen, ts := decodeHeader(header[:])
		if kind == KindInvalid {
			return fmt.Errorf("debug: invalid record header")
		}
		body := make([]byte, int(sourceLen)+int(dataLen))
		if _, err := io.ReadFull(br, body); err != nil {
			return fmt.Errorf("debug: read record body: %w", err)
		}
		rec := Record{
			Time:   time.Unix(0, ts),
			Kind:   kind,
			Source: string(body[:sourceLen]),
			Data:   body[sourceLen:],
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}

// Search returns the records accepted by f, honouring Limit and Tail.
func Search(r io.Reader, f Filter) ([]Record, error) {
	var out []Record
	err := Each(r, func(rec Record) error {
		if !f.accept(rec) {
			return nil
		}
		out = append(out, rec)
		if f.Limit > 0 && f.Tail && len(out) > f.Limit {
			out = out[1:]
		}
		if f.Limit > 0 && !f.Tail && len(out) == f.Limit {
			return errStop
		}
		return nil
	})
	if err == errStop {
		err = nil
	}
	return out, err
}

// Sources lists the distinct sources in first-seen order.
func Sources(r io.Reader) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	err := Each(r, func(rec Record) error {
		if !seen[rec.Source] {
			seen[rec.Source] = true
			out = append(out, rec.Source)
		}
		return nil
	})
	return out, err
}

// OpenReader opens a log file for one of the functions above.
func OpenReader(filename string) (*os.File, error) {
	return os.Open(filename)
}

var errStop = errors.New("debug: stop")
