// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/blake3"

	"github.com/gantry-project/gantry/lib/codec"
	"github.com/gantry-project/gantry/lib/schema"
)

// CompressionTag identifies the algorithm used to compress a snapshot
// body. The tag is stored in the frame header (1 byte). These values
// are format constants; changing them breaks snapshot compatibility.
type CompressionTag uint8

const (
	// CompressionNone stores the body uncompressed. Selected
	// automatically when compression would not shrink the body.
	CompressionNone CompressionTag = 0

	// CompressionLZ4 is LZ4 block compression: fast with a modest
	// ratio.
	CompressionLZ4 CompressionTag = 1

	// CompressionZstd is zstd at the default level. Best ratio for
	// the repetitive CBOR bodies snapshots produce. The default.
	CompressionZstd CompressionTag = 2
)

// String returns the human-readable name of a compression tag.
func (tag CompressionTag) String() string {
	switch tag {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", tag)
	}
}

// ParseCompressionTag parses a compression tag from its string
// representation.
func ParseCompressionTag(name string) (CompressionTag, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression tag: %q", name)
	}
}

// Frame format constants.
const (
	// snapshotVersion is the frame layout version stored in the magic.
	snapshotVersion = 1

	// frameHeaderSize is the fixed header: 8-byte magic, 1-byte
	// compression tag, 3 reserved bytes, 4-byte uncompressed body
	// size, 32-byte checksum.
	frameHeaderSize = 48

	// maxBodySize bounds the uncompressed body size accepted by the
	// decoder. A state snapshot is a few kilobytes in practice; the
	// bound keeps a corrupt size field from forcing a huge
	// allocation.
	maxBodySize = 64 << 20
)

// frameMagic is the 8-byte snapshot signature: name, version byte,
// reserved byte.
var frameMagic = [8]byte{'G', 'A', 'N', 'T', 'R', 'Y', snapshotVersion, 0}

// checksumKey is the BLAKE3 keyed-hash key for snapshot checksums:
// the ASCII domain name zero-padded to 32 bytes. Readable ASCII makes
// the key inspectable in hex dumps without sacrificing any property
// of BLAKE3 keyed mode.
var checksumKey = [32]byte{
	'g', 'a', 'n', 't', 'r', 'y', '.', 'r', 'e', 'g', 'i', 's', 't', 'r', 'y', '.',
	's', 'n', 'a', 'p', 's', 'h', 'o', 't', 0, 0, 0, 0, 0, 0, 0, 0,
}

// Header describes a framed snapshot without decoding its body.
type Header struct {
	// Version is the frame layout version from the magic bytes.
	Version uint8

	// Compression is the algorithm the body is compressed with.
	Compression CompressionTag

	// BodySize is the uncompressed body size in bytes.
	BodySize int

	// CompressedSize is the stored body size in bytes.
	CompressedSize int
}

// EncodeSnapshot renders a snapshot as a framed byte slice. The
// snapshot's slices are sorted in place first, so the same logical
// state always encodes to identical bytes. When the requested
// compression does not shrink the body, the frame records
// CompressionNone and stores the body uncompressed.
func EncodeSnapshot(snapshot *schema.StateSnapshot, tag CompressionTag) ([]byte, error) {
	snapshot.Sort()
	body, err := codec.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("registry: encoding snapshot body: %w", err)
	}

	compressed, usedTag, err := compressBody(body, tag)
	if err != nil {
		return nil, err
	}

	frame := make([]byte, frameHeaderSize+len(compressed))
	copy(frame[0:8], frameMagic[:])
	frame[8] = byte(usedTag)
	binary.LittleEndian.PutUint32(frame[12:16], uint32(len(body)))
	checksum := checksumBody(compressed)
	copy(frame[16:48], checksum[:])
	copy(frame[frameHeaderSize:], compressed)
	return frame, nil
}

// DecodeSnapshot parses a framed snapshot produced by EncodeSnapshot.
// The magic, frame version, checksum, and decompressed size are all
// verified before the body is decoded.
func DecodeSnapshot(frame []byte) (*schema.StateSnapshot, error) {
	header, err := Inspect(frame)
	if err != nil {
		return nil, err
	}

	compressed := frame[frameHeaderSize:]
	checksum := checksumBody(compressed)
	if checksum != [32]byte(frame[16:48]) {
		return nil, fmt.Errorf("registry: snapshot checksum mismatch (file is corrupt)")
	}

	body, err := decompressBody(compressed, header.Compression, header.BodySize)
	if err != nil {
		return nil, err
	}

	var snapshot schema.StateSnapshot
	if err := codec.Unmarshal(body, &snapshot); err != nil {
		return nil, fmt.Errorf("registry: decoding snapshot body: %w", err)
	}
	if snapshot.FormatVersion > schema.CurrentFormatVersion {
		return nil, fmt.Errorf("registry: snapshot format version %d is not supported (this code supports up to %d)",
			snapshot.FormatVersion, schema.CurrentFormatVersion)
	}
	return &snapshot, nil
}

// Inspect validates the frame header and returns its fields without
// verifying the checksum or decoding the body.
func Inspect(frame []byte) (Header, error) {
	if len(frame) < frameHeaderSize {
		return Header{}, fmt.Errorf("registry: snapshot frame is %d bytes, need at least %d", len(frame), frameHeaderSize)
	}

	magic := [8]byte(frame[0:8])
	if magic != frameMagic {
		if magic[0] == 'G' && magic[1] == 'A' && magic[2] == 'N' &&
			magic[3] == 'T' && magic[4] == 'R' && magic[5] == 'Y' {
			return Header{}, fmt.Errorf("registry: snapshot frame version %d is not supported (this code supports version %d)",
				magic[6], snapshotVersion)
		}
		return Header{}, fmt.Errorf("registry: not a Gantry snapshot (invalid magic bytes)")
	}

	tag := CompressionTag(frame[8])
	if tag > CompressionZstd {
		return Header{}, fmt.Errorf("registry: unsupported compression tag %d", tag)
	}

	bodySize := binary.LittleEndian.Uint32(frame[12:16])
	if bodySize > maxBodySize {
		return Header{}, fmt.Errorf("registry: snapshot body size %d exceeds limit %d", bodySize, maxBodySize)
	}

	return Header{
		Version:        magic[6],
		Compression:    tag,
		BodySize:       int(bodySize),
		CompressedSize: len(frame) - frameHeaderSize,
	}, nil
}

// checksumBody computes the keyed BLAKE3 checksum of the compressed
// body bytes.
func checksumBody(compressed []byte) [32]byte {
	// NewKeyed only fails for a wrong key length, which the fixed
	// 32-byte key rules out.
	hasher, err := blake3.NewKeyed(checksumKey[:])
	if err != nil {
		panic("registry: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(compressed)
	var sum [32]byte
	copy(sum[:], hasher.Sum(nil))
	return sum
}

// compressBody compresses the body with the requested algorithm and
// returns the bytes to store plus the tag actually used. Incompressible
// bodies fall back to CompressionNone.
func compressBody(body []byte, tag CompressionTag) ([]byte, CompressionTag, error) {
	switch tag {
	case CompressionNone:
		return body, CompressionNone, nil

	case CompressionLZ4:
		compressed, err := compressLZ4(body)
		if err == errIncompressible {
			return body, CompressionNone, nil
		}
		if err != nil {
			return nil, 0, err
		}
		return compressed, CompressionLZ4, nil

	case CompressionZstd:
		compressed := zstdEncoder.EncodeAll(body, nil)
		if len(compressed) >= len(body) {
			return body, CompressionNone, nil
		}
		return compressed, CompressionZstd, nil

	default:
		return nil, 0, fmt.Errorf("registry: unsupported compression tag %d", tag)
	}
}

// decompressBody reverses compressBody. The uncompressedSize must
// match the original body length exactly; a mismatch is reported as
// corruption.
func decompressBody(compressed []byte, tag CompressionTag, uncompressedSize int) ([]byte, error) {
	switch tag {
	case CompressionNone:
		if len(compressed) != uncompressedSize {
			return nil, fmt.Errorf("registry: uncompressed body is %d bytes, header says %d", len(compressed), uncompressedSize)
		}
		return compressed, nil

	case CompressionLZ4:
		destination := make([]byte, uncompressedSize)
		read, err := lz4.UncompressBlock(compressed, destination)
		if err != nil {
			return nil, fmt.Errorf("registry: lz4 decompress: %w", err)
		}
		if read != uncompressedSize {
			return nil, fmt.Errorf("registry: lz4 decompress: got %d bytes, expected %d", read, uncompressedSize)
		}
		return destination, nil

	case CompressionZstd:
		destination := make([]byte, 0, uncompressedSize)
		result, err := zstdDecoder.DecodeAll(compressed, destination)
		if err != nil {
			return nil, fmt.Errorf("registry: zstd decompress: %w", err)
		}
		if len(result) != uncompressedSize {
			return nil, fmt.Errorf("registry: zstd decompress: got %d bytes, expected %d", len(result), uncompressedSize)
		}
		return result, nil

	default:
		return nil, fmt.Errorf("registry: unsupported compression tag %d", tag)
	}
}

func compressLZ4(body []byte) ([]byte, error) {
	bound := lz4.CompressBlockBound(len(body))
	destination := make([]byte, bound)

	written, err := lz4.CompressBlock(body, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("registry: lz4 compress: %w", err)
	}

	// A zero write count is CompressBlock's way of saying the body is
	// incompressible.
	if written == 0 || written >= len(body) {
		return nil, errIncompressible
	}
	return destination[:written], nil
}

// errIncompressible signals that compression would not shrink the
// body. compressBody handles it by falling back to CompressionNone.
var errIncompressible = errors.New("incompressible body")

// Shared zstd coder state. Both types are safe for concurrent use, so
// one of each serves every snapshot in the process.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
	)
	if err != nil {
		panic("registry: zstd encoder initialization failed: " + err.Error())
	}

	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("registry: zstd decoder initialization failed: " + err.Error())
	}
}
