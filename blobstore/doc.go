// Package blobstore is where saved indexes live.
//
// A BlobStore maps names to immutable files. Writers obtained from Create
// publish nothing until Close succeeds, and Abort discards them, so a
// reader never observes a half-written index. LocalStore and MemoryStore
// ship here; the s3 and minio subpackages cover object storage and build
// on RangedBlob and PipeWriter.
//
// Implementations must be safe for concurrent use.
package blobstore
