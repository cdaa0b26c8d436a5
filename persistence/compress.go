package persistence

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionType defines the compression algorithm applied to the index
// section of a dump container.
type CompressionType uint8

const (
	// CompressionNone stores the section uncompressed.
	CompressionNone CompressionType = 0
	// CompressionLZ4 uses LZ4 block compression (fast).
	CompressionLZ4 CompressionType = 1
	// CompressionZSTD uses ZSTD block compression (better ratio).
	CompressionZSTD CompressionType = 2
)

// String returns a string representation of the CompressionType.
func (ct CompressionType) String() string {
	switch ct {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return "unknown"
	}
}

// Valid reports whether ct is a known compression type.
func (ct CompressionType) Valid() bool {
	return ct <= CompressionZSTD
}

// Sections are compressed as a sequence of independent blocks, each with an
// 8-byte header: [RawSize uint32][CompressedSize uint32]. CompressedSize == 0
// marks a block stored raw because compression did not pay off.
const (
	blockHeaderSize  = 8
	defaultBlockSize = 256 * 1024
)

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func putZstdEncoder(enc *zstd.Encoder) {
	zstdEncoderPool.Put(enc)
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

func putZstdDecoder(dec *zstd.Decoder) {
	zstdDecoderPool.Put(dec)
}

// Compress encodes data as a block stream using the given algorithm.
// CompressionNone returns data unchanged.
func Compress(data []byte, compressionType CompressionType) ([]byte, error) {
	if compressionType == CompressionNone || len(data) == 0 {
		return data, nil
	}
	if !compressionType.Valid() {
		return nil, fmt.Errorf("unknown compression type: %d", compressionType)
	}

	out := make([]byte, 0, len(data)/2+blockHeaderSize)
	for off := 0; off < len(data); off += defaultBlockSize {
		end := off + defaultBlockSize
		if end > len(data) {
			end = len(data)
		}
		block, err := compressBlock(data[off:end], compressionType)
		if err != nil {
			return nil, err
		}
		out = append(out, block...)
	}
	return out, nil
}

// Decompress decodes a block stream produced by Compress.
// CompressionNone returns data unchanged.
func Decompress(data []byte, compressionType CompressionType) ([]byte, error) {
	if compressionType == CompressionNone {
		return data, nil
	}
	if !compressionType.Valid() {
		return nil, fmt.Errorf("unknown compression type: %d", compressionType)
	}

	var out []byte
	off := 0
	for off < len(data) {
		if off+blockHeaderSize > len(data) {
			return nil, errors.New("truncated block header")
		}
		rawSize := binary.LittleEndian.Uint32(data[off:])
		compSize := binary.LittleEndian.Uint32(data[off+4:])
		off += blockHeaderSize

		if compSize == 0 {
			if off+int(rawSize) > len(data) {
				return nil, errors.New("block extends beyond data")
			}
			out = append(out, data[off:off+int(rawSize)]...)
			off += int(rawSize)
			continue
		}

		if off+int(compSize) > len(data) {
			return nil, errors.New("compressed block extends beyond data")
		}
		block, err := decompressBlock(data[off:off+int(compSize)], int(rawSize), compressionType)
		if err != nil {
			return nil, err
		}
		out = append(out, block...)
		off += int(compSize)
	}
	return out, nil
}

// compressBlock compresses one block, falling back to raw storage when the
// compressed form is not at least 10% smaller.
func compressBlock(data []byte, compressionType CompressionType) ([]byte, error) {
	var compressed []byte
	var err error

	switch compressionType {
	case CompressionLZ4:
		compressed, err = compressBlockLZ4(data)
	case CompressionZSTD:
		compressed, err = compressBlockZSTD(data)
	}
	if err != nil {
		return nil, err
	}

	if len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*0.9 {
		result := make([]byte, blockHeaderSize+len(data))
		binary.LittleEndian.PutUint32(result[0:], uint32(len(data)))
		binary.LittleEndian.PutUint32(result[4:], 0)
		copy(result[blockHeaderSize:], data)
		return result, nil
	}

	result := make([]byte, blockHeaderSize+len(compressed))
	binary.LittleEndian.PutUint32(result[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(result[4:], uint32(len(compressed)))
	copy(result[blockHeaderSize:], compressed)
	return result, nil
}

func compressBlockLZ4(data []byte) ([]byte, error) {
	compressed := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, compressed, nil)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// Incompressible
		return nil, nil
	}
	return compressed[:n], nil
}

func compressBlockZSTD(data []byte) ([]byte, error) {
	enc := getZstdEncoder()
	defer putZstdEncoder(enc)

	return enc.EncodeAll(data, nil), nil
}

func decompressBlock(compressed []byte, rawSize int, compressionType CompressionType) ([]byte, error) {
	switch compressionType {
	case CompressionLZ4:
		result := make([]byte, rawSize)
		n, err := lz4.UncompressBlock(compressed, result)
		if err != nil {
			return nil, err
		}
		if n != rawSize {
			return nil, errors.New("decompressed size mismatch")
		}
		return result, nil

	case CompressionZSTD:
		dec := getZstdDecoder()
		defer putZstdDecoder(dec)

		decoded, err := dec.DecodeAll(compressed, make([]byte, 0, rawSize))
		if err != nil {
			return nil, err
		}
		if len(decoded) != rawSize {
			return nil, errors.New("decompressed size mismatch")
		}
		return decoded, nil

	default:
		return nil, fmt.Errorf("unknown compression type: %d", compressionType)
	}
}
