/*
Package parser reads decoded model records and requirement files.

A record file is a msgpack stream produced by the model decoder:

	[Header]      - magic, version, item and mesh counts
	[Properties]  - ItemCount ItemProperties values
	[Meshes]      - MeshCount MeshRecord values

Counts are known up front so loaders can report progress per mesh without
a separate counting pass. Property values are decoded eagerly into an index
so the loader can pull them per item; they can be skipped entirely when the
caller restores attributes from a snapshot instead.
*/
package parser

import (
	"errors"
	"fmt"
	"io"

	"github.com/ifc-viewer/backend/internal/models"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	// RecordMagic identifies a record stream.
	RecordMagic = "IFCR"
	// RecordVersion is the current stream version.
	RecordVersion uint8 = 1
)

// ErrBadMagic is returned when a stream does not start with a record header.
var ErrBadMagic = errors.New("not a record stream")

// Header is the first value of a record stream.
type Header struct {
	Magic     string `msgpack:"magic"`
	Version   uint8  `msgpack:"version"`
	Schema    string `msgpack:"schema,omitempty"`
	ItemCount int    `msgpack:"itemCount"`
	MeshCount int    `msgpack:"meshCount"`
}

// RecordWriter accumulates properties and meshes and writes them as one
// stream on Close.
type RecordWriter struct {
	w      io.Writer
	schema string
	props  []models.ItemProperties
	meshes []models.MeshRecord
	closed bool
}

// NewRecordWriter creates a writer targeting w.
func NewRecordWriter(w io.Writer, schema string) *RecordWriter {
	return &RecordWriter{w: w, schema: schema}
}

// AddProperties queues the property record of one item.
func (rw *RecordWriter) AddProperties(p models.ItemProperties) {
	rw.props = append(rw.props, p)
}

// AddMesh queues one mesh record.
func (rw *RecordWriter) AddMesh(rec models.MeshRecord) {
	rw.meshes = append(rw.meshes, rec)
}

// Close writes the stream. It does not close the underlying writer.
func (rw *RecordWriter) Close() error {
	if rw.closed {
		return nil
	}
	rw.closed = true

	enc := msgpack.NewEncoder(rw.w)
	header := Header{
		Magic:     RecordMagic,
		Version:   RecordVersion,
		Schema:    rw.schema,
		ItemCount: len(rw.props),
		MeshCount: len(rw.meshes),
	}
	if err := enc.Encode(&header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i := range rw.props {
		if err := enc.Encode(&rw.props[i]); err != nil {
			return fmt.Errorf("write properties %d: %w", rw.props[i].ExpressID, err)
		}
	}
	for i := range rw.meshes {
		if err := enc.Encode(&rw.meshes[i]); err != nil {
			return fmt.Errorf("write mesh %d: %w", rw.meshes[i].ExpressID, err)
		}
	}
	return nil
}

// ReaderOptions tune how a stream is opened.
type ReaderOptions struct {
	// SkipProperties leaves property records undecoded.
	SkipProperties bool
	// Intern deduplicates repeated strings in property records.
	Intern *StringIntern
}

// RecordReader streams mesh records and serves item properties by id.
type RecordReader struct {
	dec    *msgpack.Decoder
	closer io.Closer
	header Header
	props  map[int]models.ItemProperties
	read   int
}

// NewRecordReader reads the header and property section of r.
func NewRecordReader(r io.Reader, opts ReaderOptions) (*RecordReader, error) {
	dec := msgpack.NewDecoder(r)

	var header Header
	if err := dec.Decode(&header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMagic, err)
	}
	if header.Magic != RecordMagic {
		return nil, ErrBadMagic
	}
	if header.Version > RecordVersion {
		return nil, fmt.Errorf("unsupported record version %d", header.Version)
	}
	if header.ItemCount < 0 || header.MeshCount < 0 {
		return nil, fmt.Errorf("invalid record counts: %d items, %d meshes", header.ItemCount, header.MeshCount)
	}

	rr := &RecordReader{dec: dec, header: header}
	if c, ok := r.(io.Closer); ok {
		rr.closer = c
	}

	if opts.SkipProperties {
		for i := 0; i < header.ItemCount; i++ {
			if err := dec.Skip(); err != nil {
				return nil, fmt.Errorf("skip properties %d: %w", i, err)
			}
		}
		return rr, nil
	}

	rr.props = make(map[int]models.ItemProperties, header.ItemCount)
	for i := 0; i < header.ItemCount; i++ {
		var p models.ItemProperties
		if err := dec.Decode(&p); err != nil {
			return nil, fmt.Errorf("read properties %d: %w", i, err)
		}
		if opts.Intern != nil {
			internProperties(opts.Intern, &p)
		}
		rr.props[p.ExpressID] = p
	}
	return rr, nil
}

// Header returns the stream header.
func (rr *RecordReader) Header() Header {
	return rr.header
}

// MeshCount returns the number of mesh records in the stream.
func (rr *RecordReader) MeshCount() int {
	return rr.header.MeshCount
}

// Next returns the next mesh record, or io.EOF after the last one.
func (rr *RecordReader) Next() (models.MeshRecord, error) {
	var rec models.MeshRecord
	if rr.read >= rr.header.MeshCount {
		return rec, io.EOF
	}
	if err := rr.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return rec, fmt.Errorf("read mesh %d of %d: %w", rr.read+1, rr.header.MeshCount, err)
	}
	rr.read++
	return rec, nil
}

// Properties returns the property record of an item. It always reports
// false when properties were skipped.
func (rr *RecordReader) Properties(expressID int) (models.ItemProperties, bool) {
	p, ok := rr.props[expressID]
	return p, ok
}

// Close releases the underlying reader when it is closable.
func (rr *RecordReader) Close() error {
	if rr.closer == nil {
		return nil
	}
	return rr.closer.Close()
}

func internProperties(si *StringIntern, p *models.ItemProperties) {
	p.Kind = si.Intern(p.Kind)
	for i := range p.PropertySets {
		set := &p.PropertySets[i]
		set.Name = si.Intern(set.Name)
		for j := range set.Properties {
			prop := &set.Properties[j]
			prop.Name = si.Intern(prop.Name)
			if s, ok := prop.Value.(string); ok {
				prop.Value = si.Intern(s)
			}
		}
	}
}
