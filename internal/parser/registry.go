package parser

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ifc-viewer/backend/internal/models"
)

// Source is an opened decoded-record stream.
type Source interface {
	Header() Header
	MeshCount() int
	// Next returns the next mesh record, or io.EOF after the last one.
	Next() (models.MeshRecord, error)
	// Properties returns the property record of an item.
	Properties(expressID int) (models.ItemProperties, bool)
	Close() error
}

// Format recognises and opens one stream encoding.
type Format interface {
	Name() string
	// Detect reports whether head, the first bytes of a stream, belong to
	// this format.
	Detect(head []byte) bool
	Open(r io.Reader, opts ReaderOptions) (Source, error)
}

// headSize is how many bytes are peeked for detection.
const headSize = 16

// Registry holds the known formats and picks one by content.
type Registry struct {
	formats []Format
}

var globalRegistry = NewRegistry()

// NewRegistry returns a registry with the msgpack and gzip formats.
func NewRegistry() *Registry {
	r := &Registry{}
	r.Register(msgpackFormat{})
	r.Register(gzipFormat{registry: r})
	return r
}

// GetGlobalRegistry returns the shared registry.
func GetGlobalRegistry() *Registry {
	return globalRegistry
}

// Register adds a format. Later formats are tried after earlier ones.
func (r *Registry) Register(f Format) {
	r.formats = append(r.formats, f)
}

// GetFormatByName returns a format by its name.
func (r *Registry) GetFormatByName(name string) (Format, error) {
	name = strings.ToLower(name)
	for _, f := range r.formats {
		if strings.ToLower(f.Name()) == name {
			return f, nil
		}
	}
	return nil, fmt.Errorf("format not found: %s", name)
}

// Open detects the format of rd and opens it.
func (r *Registry) Open(rd io.Reader, opts ReaderOptions) (Source, error) {
	br := bufio.NewReader(rd)
	head, err := br.Peek(headSize)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, fmt.Errorf("read stream head: %w", err)
	}
	if len(head) == 0 {
		return nil, fmt.Errorf("empty record stream")
	}
	for _, f := range r.formats {
		if f.Detect(head) {
			src, err := f.Open(br, opts)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", f.Name(), err)
			}
			if c, ok := rd.(io.Closer); ok {
				return &closingSource{Source: src, closer: c}, nil
			}
			return src, nil
		}
	}
	return nil, fmt.Errorf("no suitable format found")
}

// OpenFile opens a record file from disk.
func (r *Registry) OpenFile(path string, opts ReaderOptions) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	src, err := r.Open(f, opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	return src, nil
}

// FindFormat detects the format of a file without opening it as a stream.
func (r *Registry) FindFormat(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	head := make([]byte, headSize)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	for _, fm := range r.formats {
		if fm.Detect(head[:n]) {
			return fm, nil
		}
	}
	return nil, fmt.Errorf("no suitable format found for file: %s", path)
}

type closingSource struct {
	Source
	closer io.Closer
}

func (cs *closingSource) Close() error {
	err := cs.Source.Close()
	if cerr := cs.closer.Close(); err == nil {
		err = cerr
	}
	return err
}

// msgpackFormat is a plain record stream. The header is a msgpack map whose
// first key is "magic" followed by the magic string.
type msgpackFormat struct{}

func (msgpackFormat) Name() string { return "msgpack" }

func (msgpackFormat) Detect(head []byte) bool {
	return bytes.Contains(head, []byte(RecordMagic))
}

func (msgpackFormat) Open(r io.Reader, opts ReaderOptions) (Source, error) {
	return NewRecordReader(r, opts)
}

// gzipFormat is a gzip-compressed stream of any other registered format.
type gzipFormat struct {
	registry *Registry
}

func (gzipFormat) Name() string { return "gzip" }

func (gzipFormat) Detect(head []byte) bool {
	return len(head) >= 2 && head[0] == 0x1f && head[1] == 0x8b
}

func (g gzipFormat) Open(r io.Reader, opts ReaderOptions) (Source, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}
	src, err := g.registry.Open(gz, opts)
	if err != nil {
		gz.Close()
		return nil, err
	}
	return src, nil
}
