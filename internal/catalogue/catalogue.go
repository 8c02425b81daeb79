// Package catalogue reads spatial reference catalogues: line-oriented
// "<code>;<wkt>" text, optionally gzip-compressed, or the SQLite store.
package catalogue

import (
	"bufio"
	"bytes"
	"compress/gzip"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

//go:embed data/srid.csv.gz
var embedded []byte

// maxLineSize bounds a single catalogue line. Compound definitions with
// long area descriptions run to a few kilobytes.
const maxLineSize = 1 << 20

var (
	ErrMissingSeparator = errors.New("missing ';' separator")
	ErrEmptyDefinition  = errors.New("empty definition")
)

// LineError describes a catalogue line that could not be split.
type LineError struct {
	Line int
	Text string
	Err  error
}

func (e *LineError) Error() string {
	text := e.Text
	if len(text) > 40 {
		text = text[:40] + "..."
	}
	return fmt.Sprintf("catalogue line %d %q: %v", e.Line, text, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// Entry is one catalogue line. Err is set, and Code and WKT are
// meaningless, when the line could not be split.
type Entry struct {
	Line int
	Code int
	WKT  string
	Err  error
}

// ParseLine splits a line on its first semicolon. The definition may
// itself contain semicolons.
func ParseLine(line string) (code int, wkt string, err error) {
	head, tail, ok := strings.Cut(line, ";")
	if !ok {
		return 0, "", ErrMissingSeparator
	}
	code, err = strconv.Atoi(strings.TrimSpace(head))
	if err != nil {
		return 0, "", fmt.Errorf("bad code: %w", err)
	}
	wkt = strings.TrimSpace(tail)
	if wkt == "" {
		return 0, "", ErrEmptyDefinition
	}
	return code, wkt, nil
}

// Source yields catalogue entries in catalogue order. Each returns the
// first error from fn, or an I/O error from the underlying data.
type Source interface {
	Name() string
	Each(fn func(Entry) error) error
}

type readerSource struct {
	name string
	open func() (io.ReadCloser, error)
}

func (s *readerSource) Name() string { return s.name }

func (s *readerSource) Each(fn func(Entry) error) error {
	rc, err := s.open()
	if err != nil {
		return fmt.Errorf("open %s: %w", s.name, err)
	}
	defer rc.Close()
	if err := scan(rc, fn); err != nil {
		return fmt.Errorf("read %s: %w", s.name, err)
	}
	return nil
}

func scan(r io.Reader, fn func(Entry) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		e := Entry{Line: n}
		code, wkt, err := ParseLine(line)
		if err != nil {
			e.Err = &LineError{Line: n, Text: line, Err: err}
		} else {
			e.Code, e.WKT = code, wkt
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return sc.Err()
}

// gunzip wraps open so the stream is decompressed, closing both readers.
func gunzip(open func() (io.ReadCloser, error)) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		rc, err := open()
		if err != nil {
			return nil, err
		}
		zr, err := gzip.NewReader(rc)
		if err != nil {
			rc.Close()
			return nil, err
		}
		return &gzipReadCloser{Reader: zr, under: rc}, nil
	}
}

type gzipReadCloser struct {
	*gzip.Reader
	under io.Closer
}

func (g *gzipReadCloser) Close() error {
	err := g.Reader.Close()
	if cerr := g.under.Close(); err == nil {
		err = cerr
	}
	return err
}

// File reads a catalogue file, decompressing it when the name ends in
// ".gz". The file is reopened on every call to Each.
func File(path string) Source {
	open := func() (io.ReadCloser, error) { return os.Open(path) }
	if strings.HasSuffix(path, ".gz") {
		open = gunzip(open)
	}
	return &readerSource{name: path, open: open}
}

// Reader reads an uncompressed catalogue from r. It can be iterated once.
func Reader(name string, r io.Reader) Source {
	return &readerSource{name: name, open: func() (io.ReadCloser, error) {
		return io.NopCloser(r), nil
	}}
}

// Embedded returns the catalogue compiled into the binary.
func Embedded() Source {
	return &readerSource{name: "embedded", open: gunzip(func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(embedded)), nil
	})}
}

// WriteGzip writes the well-formed entries of src to w in the gzip line
// format and returns how many were written.
func WriteGzip(w io.Writer, src Source) (int, error) {
	zw := gzip.NewWriter(w)
	bw := bufio.NewWriter(zw)
	n := 0
	err := src.Each(func(e Entry) error {
		if e.Err != nil {
			return nil
		}
		if _, err := fmt.Fprintf(bw, "%d;%s\n", e.Code, e.WKT); err != nil {
			return err
		}
		n++
		return nil
	})
	if err != nil {
		return n, err
	}
	if err := bw.Flush(); err != nil {
		return n, err
	}
	return n, zw.Close()
}

// Open selects a source by path: the embedded catalogue for "", the
// SQLite store for .db and .sqlite files, a line file otherwise. The
// returned close function releases the store.
func Open(path string) (Source, func() error, error) {
	noop := func() error { return nil }
	switch {
	case path == "":
		return Embedded(), noop, nil
	case strings.HasSuffix(path, ".db"), strings.HasSuffix(path, ".sqlite"), strings.HasSuffix(path, ".sqlite3"):
		s, err := OpenStore(path)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, noop, err
	}
	return File(path), noop, nil
}
