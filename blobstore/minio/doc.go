// Package minio stores index files on MinIO or any S3-compatible service
// reachable with minio-go, for deployments that do not want the AWS SDK.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//		Creds: credentials.NewStaticV4(key, secret, ""),
//	})
//	store := minioblob.NewStore(client, "indexes", "prod/")
//	idx, err := vecforest.LoadFrom(ctx, store, "products.vf")
package minio
