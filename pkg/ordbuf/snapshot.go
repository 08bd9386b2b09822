package ordbuf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"

	"github.com/sveljko/pgmedian/pkg/safeconv"
)

// The host treats accumulator state as an opaque variable-length binary
// object it may store and re-load within one execution. The snapshot is
// self-describing: a fixed header followed by the element payload, with the
// payload optionally LZ4 block-compressed. Sorted numerals are delta-encoded
// first, which turns them into small repetitive values that compress well.

// snapshotMagic identifies a serialized buffer.
var snapshotMagic = [4]byte{'O', 'B', 'U', 'F'}

// snapshotVersion is the current snapshot format version.
const snapshotVersion = 1

// flagLZ4 marks an LZ4 block-compressed payload.
const flagLZ4 = 1 << 0

// ErrBadSnapshot is returned when a snapshot cannot be decoded.
var ErrBadSnapshot = errors.New("ordbuf: malformed snapshot")

// snapshotHeader is the fixed-size snapshot preamble, little-endian on the
// wire.
type snapshotHeader struct {
	Magic     [4]byte
	Version   uint8
	Class     uint8
	Flags     uint8
	Reserved  uint8
	Count     uint32
	Capacity  uint32
	RawLen    uint32
	StoredLen uint32
}

// Snapshot writes the buffer's full state, including its capacity, to w.
// When compress is true the payload is LZ4 block-compressed, unless
// compression does not pay for itself.
func (b *Buffer) Snapshot(w io.Writer, compress bool) error {
	raw, err := b.encodePayload()
	if err != nil {
		return err
	}

	stored := raw
	flags := uint8(0)

	if compress && len(raw) > 0 {
		packed := make([]byte, lz4.CompressBlockBound(len(raw)))

		written, compErr := lz4.CompressBlock(raw, packed, nil)
		if compErr == nil && written > 0 && written < len(raw) {
			stored = packed[:written]
			flags |= flagLZ4
		}
	}

	hdr := snapshotHeader{
		Magic:     snapshotMagic,
		Version:   snapshotVersion,
		Class:     uint8(b.class),
		Flags:     flags,
		Count:     safeconv.MustIntToUint32(len(b.elems)),
		Capacity:  safeconv.MustIntToUint32(cap(b.elems)),
		RawLen:    safeconv.MustIntToUint32(len(raw)),
		StoredLen: safeconv.MustIntToUint32(len(stored)),
	}

	err = binary.Write(w, binary.LittleEndian, hdr)
	if err != nil {
		return fmt.Errorf("write snapshot header: %w", err)
	}

	_, err = w.Write(stored)
	if err != nil {
		return fmt.Errorf("write snapshot payload: %w", err)
	}

	return nil
}

// ReadSnapshot restores a buffer previously written with Snapshot.
func ReadSnapshot(r io.Reader) (*Buffer, error) {
	var hdr snapshotHeader

	err := binary.Read(r, binary.LittleEndian, &hdr)
	if err != nil {
		return nil, fmt.Errorf("read snapshot header: %w", err)
	}

	if hdr.Magic != snapshotMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrBadSnapshot)
	}

	if hdr.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadSnapshot, hdr.Version)
	}

	class := ValueClass(hdr.Class)
	if class != ClassUnset && class != ClassNumeral && class != ClassText {
		return nil, fmt.Errorf("%w: unknown value class %d", ErrBadSnapshot, hdr.Class)
	}

	stored := make([]byte, safeconv.MustUint32ToInt(hdr.StoredLen))

	_, err = io.ReadFull(r, stored)
	if err != nil {
		return nil, fmt.Errorf("read snapshot payload: %w", err)
	}

	raw := stored

	if hdr.Flags&flagLZ4 != 0 {
		raw = make([]byte, safeconv.MustUint32ToInt(hdr.RawLen))

		_, err = lz4.UncompressBlock(stored, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: decompress payload: %s", ErrBadSnapshot, err)
		}
	}

	count := safeconv.MustUint32ToInt(hdr.Count)
	capacity := max(safeconv.MustUint32ToInt(hdr.Capacity), initialCapacity)

	elems, err := decodePayload(class, count, raw)
	if err != nil {
		return nil, err
	}

	buf := &Buffer{elems: make([]Value, 0, capacity), class: class}
	buf.elems = append(buf.elems, elems...)

	return buf, nil
}

// encodePayload serializes the populated slots: numerals as delta-encoded
// little-endian int64 values, text elements length-prefixed with a uvarint.
func (b *Buffer) encodePayload() ([]byte, error) {
	switch b.class {
	case ClassNumeral:
		nums := make([]int64, len(b.elems))

		for i, v := range b.elems {
			nums[i] = v.num
		}

		deltaEncodeInt64(nums)

		out := new(bytes.Buffer)

		err := binary.Write(out, binary.LittleEndian, nums)
		if err != nil {
			return nil, fmt.Errorf("encode numerals: %w", err)
		}

		return out.Bytes(), nil
	case ClassText:
		var out []byte

		for _, v := range b.elems {
			out = binary.AppendUvarint(out, uint64(len(v.text)))
			out = append(out, v.text...)
		}

		return out, nil
	default:
		// Empty buffer with no class fixed yet.
		return nil, nil
	}
}

func decodePayload(class ValueClass, count int, raw []byte) ([]Value, error) {
	switch class {
	case ClassNumeral:
		nums := make([]int64, count)

		err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, nums)
		if err != nil {
			return nil, fmt.Errorf("%w: decode numerals: %s", ErrBadSnapshot, err)
		}

		deltaDecodeInt64(nums)

		elems := make([]Value, count)

		for i, n := range nums {
			elems[i] = Numeral(n)
		}

		return elems, nil
	case ClassText:
		rd := bytes.NewReader(raw)
		elems := make([]Value, 0, count)

		for range count {
			size, err := binary.ReadUvarint(rd)
			if err != nil {
				return nil, fmt.Errorf("%w: decode text length: %s", ErrBadSnapshot, err)
			}

			content := make([]byte, size)

			_, err = io.ReadFull(rd, content)
			if err != nil {
				return nil, fmt.Errorf("%w: decode text content: %s", ErrBadSnapshot, err)
			}

			elems = append(elems, Value{text: content, class: ClassText})
		}

		return elems, nil
	default:
		if count != 0 {
			return nil, fmt.Errorf("%w: %d elements with no value class", ErrBadSnapshot, count)
		}

		return nil, nil
	}
}

// deltaEncodeInt64 replaces each element with the difference from its
// predecessor, in place. The first element is left unchanged.
func deltaEncodeInt64(data []int64) {
	for i := len(data) - 1; i > 0; i-- {
		data[i] -= data[i-1]
	}
}

// deltaDecodeInt64 performs a prefix-sum to restore original values from
// deltas produced by deltaEncodeInt64, in place.
func deltaDecodeInt64(data []int64) {
	for i := 1; i < len(data); i++ {
		data[i] += data[i-1]
	}
}
