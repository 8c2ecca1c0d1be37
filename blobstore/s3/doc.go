// Package s3 stores index files in Amazon S3 through aws-sdk-go-v2.
//
// Saves stream through the multipart uploader, which S3 verifies part by
// part with CRC32C. Loads issue one HEAD and then a single ranged GET.
//
//	store, err := s3.New(ctx, "my-bucket", s3.WithPrefix("indexes/"))
//	if err != nil {
//		return err
//	}
//	err = idx.SaveTo(ctx, store, "products.vf")
package s3
