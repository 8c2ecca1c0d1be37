package s3

import (
	"bytes"
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/hupe1980/vecforest/blobstore"
	"github.com/hupe1980/vecforest/internal/hash"
)

// UploadConfig tunes streaming uploads started by Store.Create.
type UploadConfig struct {
	PartSize    int64 // bytes per multipart part, 8 MiB by default
	Concurrency int   // parts in flight, 5 by default

	// EnableChecksum asks S3 to verify a CRC32C of every part.
	EnableChecksum bool

	// LeavePartsOnError skips AbortMultipartUpload after a failure, which
	// leaves the parts billable until a lifecycle rule removes them.
	LeavePartsOnError bool
}

func DefaultUploadConfig() UploadConfig {
	return UploadConfig{PartSize: 8 << 20, Concurrency: 5, EnableChecksum: true}
}

func newUploader(client manager.UploadAPIClient, cfg UploadConfig) *manager.Uploader {
	return manager.NewUploader(client, func(u *manager.Uploader) {
		u.LeavePartsOnError = cfg.LeavePartsOnError
		if cfg.PartSize > 0 {
			u.PartSize = cfg.PartSize
		}
		if cfg.Concurrency > 0 {
			u.Concurrency = cfg.Concurrency
		}
	})
}

// startUpload streams into a manager.Uploader. The object becomes visible
// once Close returns nil.
func startUpload(ctx context.Context, up *manager.Uploader, bucket, key string, checksum bool) *blobstore.PipeWriter {
	return blobstore.NewPipeWriter(func(r io.Reader) error {
		in := &s3.PutObjectInput{Bucket: aws.String(bucket), Key: aws.String(key), Body: r}
		if checksum {
			in.ChecksumAlgorithm = types.ChecksumAlgorithmCrc32c
		}
		_, err := up.Upload(ctx, in)
		return err
	})
}

// putObject uploads data in one request with a precomputed CRC32C.
func putObject(ctx context.Context, client Client, bucket, key string, data []byte) error {
	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:         aws.String(bucket),
		Key:            aws.String(key),
		Body:           bytes.NewReader(data),
		ContentLength:  aws.Int64(int64(len(data))),
		ChecksumCRC32C: aws.String(hash.CRC32CBase64(data)),
	})
	return err
}
