package utils

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

func NewMinioClient(endpoint, accessKey, secretKey string, useSSL bool, bucketName string) (*minio.Client, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucketName)
	if err != nil {
		return nil, err
	}

	// Attachments are served by URL, so the bucket gets a public read-only policy.
	if !exists {
		if err := client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}

		publicPolicy := `{
			"Version": "2012-10-17",
			"Statement": [
				{
					"Action": ["s3:GetObject"],
					"Effect": "Allow",
					"Principal": "*",
					"Resource": "arn:aws:s3:::` + bucketName + `/*"
				}
			]
		}`

		if err := client.SetBucketPolicy(ctx, bucketName, publicPolicy); err != nil {
			return nil, err
		}
	}

	return client, nil
}

// StoredObject is the stable reference returned by the attachment store.
type StoredObject struct {
	ID          string
	URL         string
	ContentType string
}

type MinioAttachmentStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

func NewMinioAttachmentStore(client *minio.Client, bucket, publicURL string) *MinioAttachmentStore {
	return &MinioAttachmentStore{client: client, bucket: bucket, publicURL: publicURL}
}

// Store uploads data under folder and returns its object key and public URL.
func (s *MinioAttachmentStore) Store(ctx context.Context, data []byte, folder, filename string) (StoredObject, error) {
	contentType := http.DetectContentType(data)
	name := path.Base(strings.TrimSpace(filename))
	if name == "." || name == "/" || name == "" {
		name = "file"
	}
	objectKey := fmt.Sprintf("%s/%s_%s", strings.Trim(folder, "/"), uuid.NewString(), name)

	_, err := s.client.PutObject(ctx, s.bucket, objectKey, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return StoredObject{}, err
	}

	url := fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.publicURL, "/"), s.bucket, objectKey)
	return StoredObject{ID: objectKey, URL: url, ContentType: contentType}, nil
}

func (s *MinioAttachmentStore) Remove(ctx context.Context, id string) error {
	return s.client.RemoveObject(ctx, s.bucket, id, minio.RemoveObjectOptions{})
}
