// SPDX-License-Identifier: MIT

package capture

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Format identifies a capture container.
type Format int

const (
	FormatJSONL Format = iota
	FormatCBOR
)

// FormatForPath picks a container format from a file extension. Unknown
// extensions get JSONL, so a bare path still produces something readable.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".cbor") {
		return FormatCBOR
	}
	return FormatJSONL
}

// encoder abstracts the two stream encoders.
type encoder interface {
	Encode(v any) error
}

// jsonlEncoder terminates every record with a newline, one record per
// line. json.Encoder already does this.
type jsonlEncoder struct {
	enc *json.Encoder
}

func (e *jsonlEncoder) Encode(v any) error { return e.enc.Encode(v) }

// Writer appends records to a capture file and finalizes it with a
// footer on Close.
type Writer struct {
	f       *os.File
	buf     *bufio.Writer
	enc     encoder
	packets int
}

// Create opens a capture file for writing and emits the header record.
func Create(path, description string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create capture: %w", err)
	}
	w := &Writer{f: f, buf: bufio.NewWriter(f)}
	switch FormatForPath(path) {
	case FormatCBOR:
		w.enc = cbor.NewEncoder(w.buf)
	default:
		w.enc = &jsonlEncoder{enc: json.NewEncoder(w.buf)}
	}
	header := Record{
		Type:        TypeHeader,
		Timestamp:   stamp(time.Now()),
		Description: description,
	}
	if err := w.enc.Encode(&header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write capture header: %w", err)
	}
	return w, nil
}

// Write appends one packet record, assigning its sequence number.
func (w *Writer) Write(rec Record) error {
	w.packets++
	rec.Num = w.packets
	if err := w.enc.Encode(&rec); err != nil {
		return fmt.Errorf("write capture record: %w", err)
	}
	return nil
}

// Packets reports how many packet records have been written.
func (w *Writer) Packets() int { return w.packets }

// Close writes the footer and flushes the file.
func (w *Writer) Close() error {
	footer := Record{
		Type:         TypeFooter,
		Timestamp:    stamp(time.Now()),
		TotalPackets: w.packets,
	}
	encErr := w.enc.Encode(&footer)
	if err := w.buf.Flush(); err != nil && encErr == nil {
		encErr = err
	}
	if err := w.f.Close(); err != nil && encErr == nil {
		encErr = err
	}
	return encErr
}

// Reader walks the records of a capture file in order.
type Reader struct {
	f   *os.File
	dec interface{ Decode(v any) error }
}

// Open opens a capture file for reading; the format follows the
// extension the file was written with.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	r := &Reader{f: f}
	br := bufio.NewReader(f)
	switch FormatForPath(path) {
	case FormatCBOR:
		r.dec = cbor.NewDecoder(br)
	default:
		r.dec = json.NewDecoder(br)
	}
	return r, nil
}

// Next returns the next record, or io.EOF at the end of the stream.
func (r *Reader) Next() (*Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read capture record: %w", err)
	}
	return &rec, nil
}

// Close releases the underlying file.
func (r *Reader) Close() error { return r.f.Close() }

// ReadAll loads an entire capture. The header and footer, when present,
// are returned alongside the packets.
func ReadAll(path string) (header *Record, packets []Record, footer *Record, err error) {
	r, err := Open(path)
	if err != nil {
		return nil, nil, nil, err
	}
	defer r.Close()
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return header, packets, footer, nil
		}
		if err != nil {
			return header, packets, footer, err
		}
		switch rec.Type {
		case TypeHeader:
			header = rec
		case TypeFooter:
			footer = rec
		default:
			packets = append(packets, *rec)
		}
	}
}
