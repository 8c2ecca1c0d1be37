// Package hash holds the CRC32C helpers shared by the index file trailer
// and the S3 upload path.
package hash
