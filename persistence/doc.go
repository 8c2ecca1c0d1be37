// Package persistence implements the binary container of a saved index.
//
// # Layout
//
// All integers are little-endian.
//
//	+-----------------+
//	|   FileHeader    |  fixed size: magic, version, metric, compression, shape
//	+-----------------+
//	|   Section ...   |  kind u8 | rawLen u32 | storedLen u32 | payload
//	+-----------------+
//	|   End marker    |  kind 0
//	+-----------------+
//	|   Trailer       |  crc32c u32 (header..end marker) | magic u32
//	+-----------------+
//
// A storedLen of 0 means the payload is stored raw (rawLen bytes). Otherwise
// the payload is storedLen bytes compressed with the header's algorithm.
// Incompressible sections are stored raw even when compression is enabled.
//
// Readers validate the magic, the version, every section frame and the
// trailing checksum before handing sections to the caller.
package persistence
