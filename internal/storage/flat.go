package storage

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/san-kum/sphsim/internal/sph"
)

var flatMagic = [4]byte{'S', 'P', 'H', 'F'}

// initialValues caps the up-front allocation in ReadFlat.
const initialValues = 1 << 16

var ErrBadFlatFile = errors.New("storage: malformed flat buffer file")

// WriteFlat encodes a flat buffer: the magic, the particle count and
// field count as little-endian uint32, then every value as a
// little-endian float64 in buffer order.
func WriteFlat(w io.Writer, n int, flat []float64) error {
	if len(flat) != n*int(sph.NumFields) {
		return fmt.Errorf("%w: %d values for %d particles", ErrBadFlatFile, len(flat), n)
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(flatMagic[:]); err != nil {
		return err
	}

	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(n))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(sph.NumFields))
	if _, err := bw.Write(hdr[:]); err != nil {
		return err
	}

	var word [8]byte
	for _, v := range flat {
		binary.LittleEndian.PutUint64(word[:], math.Float64bits(v))
		if _, err := bw.Write(word[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadFlat decodes a buffer written by WriteFlat.
func ReadFlat(r io.Reader) ([]float64, int, error) {
	br := bufio.NewReader(r)

	var head [12]byte
	if _, err := io.ReadFull(br, head[:]); err != nil {
		return nil, 0, fmt.Errorf("%w: header: %v", ErrBadFlatFile, err)
	}
	if [4]byte(head[0:4]) != flatMagic {
		return nil, 0, fmt.Errorf("%w: bad magic %q", ErrBadFlatFile, head[0:4])
	}

	n := int(binary.LittleEndian.Uint32(head[4:8]))
	fields := int(binary.LittleEndian.Uint32(head[8:12]))
	if fields != int(sph.NumFields) {
		return nil, 0, fmt.Errorf("%w: %d fields, want %d", ErrBadFlatFile, fields, sph.NumFields)
	}

	// The header count is untrusted; the buffer grows only as values
	// actually arrive.
	total := n * fields
	flat := make([]float64, 0, min(total, initialValues))
	var word [8]byte
	for i := 0; i < total; i++ {
		if _, err := io.ReadFull(br, word[:]); err != nil {
			return nil, 0, fmt.Errorf("%w: value %d of %d: %v", ErrBadFlatFile, i, total, err)
		}
		flat = append(flat, math.Float64frombits(binary.LittleEndian.Uint64(word[:])))
	}
	return flat, n, nil
}
