package hash

import (
	"encoding/base64"
	"encoding/binary"
	"hash"
	"hash/crc32"
)

var table = crc32.MakeTable(crc32.Castagnoli)

// CRC32C checksums data with the Castagnoli polynomial.
func CRC32C(data []byte) uint32 { return crc32.Checksum(data, table) }

// NewCRC32C returns a streaming CRC32C.
func NewCRC32C() hash.Hash32 { return crc32.New(table) }

// CRC32CBase64 renders the checksum of data the way S3 checksum headers
// carry it: four big-endian bytes, base64 encoded.
func CRC32CBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(binary.BigEndian.AppendUint32(nil, CRC32C(data)))
}
