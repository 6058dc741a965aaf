// Package binaryserialization implements the canonical,
// deterministic binary form used for every persisted value and
// every wire payload: fixed field order, little-endian integers,
// uint64 length prefixes on variable-length data.
package binaryserialization

import (
	"bytes"
	"encoding/binary"
	"math/big"

	"github.com/pkg/errors"
	"github.com/starcoinorg/smolstc/domain/consensus/model/externalapi"
)

// Writer serializes values into an in-memory buffer. Writes into
// a bytes.Buffer cannot fail, so Writer exposes no errors.
type Writer struct {
	buffer bytes.Buffer
}

// NewWriter returns a new empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the serialized form written so far.
func (w *Writer) Bytes() []byte {
	return w.buffer.Bytes()
}

// WriteUint8 writes a single byte.
func (w *Writer) WriteUint8(value uint8) {
	w.buffer.WriteByte(value)
}

// WriteUint16 writes a little-endian uint16.
func (w *Writer) WriteUint16(value uint16) {
	var valueBytes [2]byte
	binary.LittleEndian.PutUint16(valueBytes[:], value)
	w.buffer.Write(valueBytes[:])
}

// WriteUint64 writes a little-endian uint64.
func (w *Writer) WriteUint64(value uint64) {
	var valueBytes [8]byte
	binary.LittleEndian.PutUint64(valueBytes[:], value)
	w.buffer.Write(valueBytes[:])
}

// WriteHash writes the fixed 32 bytes of the given hash.
func (w *Writer) WriteHash(hash *externalapi.DomainHash) {
	w.buffer.Write(hash.ByteSlice())
}

// WriteHashSlice writes a uint64 length followed by each hash.
func (w *Writer) WriteHashSlice(hashes []*externalapi.DomainHash) {
	w.WriteUint64(uint64(len(hashes)))
	for _, hash := range hashes {
		w.WriteHash(hash)
	}
}

// WriteByteSlice writes a uint64 length followed by the raw bytes.
func (w *Writer) WriteByteSlice(data []byte) {
	w.WriteUint64(uint64(len(data)))
	w.buffer.Write(data)
}

// WriteBigInt writes the big-endian minimal representation of
// value, length-prefixed. Only non-negative values are supported.
func (w *Writer) WriteBigInt(value *big.Int) {
	w.WriteByteSlice(value.Bytes())
}

// Reader deserializes values out of a byte slice, in the exact
// order they were written.
type Reader struct {
	data   []byte
	offset int
}

// NewReader returns a new Reader over the given serialized form.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

func (r *Reader) read(length int) ([]byte, error) {
	if r.offset+length > len(r.data) {
		return nil, errors.Errorf("unexpected end of data: have %d bytes, want %d",
			len(r.data)-r.offset, length)
	}
	out := r.data[r.offset : r.offset+length]
	r.offset += length
	return out, nil
}

// IsExhausted returns whether every byte was consumed.
func (r *Reader) IsExhausted() bool {
	return r.offset == len(r.data)
}

// ReadUint8 reads a single byte.
func (r *Reader) ReadUint8() (uint8, error) {
	valueBytes, err := r.read(1)
	if err != nil {
		return 0, err
	}
	return valueBytes[0], nil
}

// ReadUint16 reads a little-endian uint16.
func (r *Reader) ReadUint16() (uint16, error) {
	valueBytes, err := r.read(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(valueBytes), nil
}

// ReadUint64 reads a little-endian uint64.
func (r *Reader) ReadUint64() (uint64, error) {
	valueBytes, err := r.read(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(valueBytes), nil
}

// ReadHash reads the fixed 32 bytes of a hash.
func (r *Reader) ReadHash() (*externalapi.DomainHash, error) {
	hashBytes, err := r.read(externalapi.DomainHashSize)
	if err != nil {
		return nil, err
	}
	return externalapi.NewDomainHashFromByteSlice(hashBytes)
}

// ReadHashSlice reads a uint64 length followed by that many hashes.
func (r *Reader) ReadHashSlice() ([]*externalapi.DomainHash, error) {
	length, err := r.ReadUint64()
	if err != nil {
		return nil, err
	}
	if length > uint64(len(r.data)-r.offset)/externalapi.DomainHashSize {
		return nil, errors.Errorf("hash slice length %d exceeds remaining data", length)
	}
	hashes := make([]*externalapi.DomainHash, length)
	for i := uint64(0); i < length; i++ {
		hashes[i], err = r.ReadHash()
		if err != nil {
			return nil, err
		}
	}
	return hashes, nil
}

// ReadByteSlice reads a uint64 length followed by the raw bytes.
func (r *Reader) ReadByteSlice() ([]byte, error) {
	length, err := r.ReadUint64()
	if err != nil {
		return nil, err
	}
	if length > uint64(len(r.data)-r.offset) {
		return nil, errors.Errorf("byte slice length %d exceeds remaining data", length)
	}
	data, err := r.read(int(length))
	if err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, data)
	return out, nil
}

// ReadBigInt reads a length-prefixed big-endian non-negative
// big integer.
func (r *Reader) ReadBigInt() (*big.Int, error) {
	valueBytes, err := r.ReadByteSlice()
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(valueBytes), nil
}
