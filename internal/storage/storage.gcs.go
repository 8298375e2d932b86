// Package storage cung cấp tầng lưu trữ object cho ảnh mẫu cát.
// Hiện thực chính dùng Google Cloud Storage; interface ObjectStorage
// cho phép thay thế bằng fake trong test.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"sand_score/internal/common"
)

// ObjectStorage là interface lưu trữ object mà upload coordinator sử dụng.
type ObjectStorage interface {
	// Upload ghi nội dung file lên storage dưới tên objectName.
	// Ghi có điều kiện DoesNotExist: upload trùng tên được coi là thành công (idempotent).
	Upload(ctx context.Context, objectName string, contentType string, r io.Reader) error

	// PublicURL trả về URL công khai của object đã upload.
	PublicURL(objectName string) (string, error)

	// Delete xoá object khỏi storage (dùng khi dọn dẹp).
	Delete(ctx context.Context, objectName string) error
}

// GCSStorage hiện thực ObjectStorage trên Google Cloud Storage.
type GCSStorage struct {
	client        *storage.Client
	bucket        *storage.BucketHandle
	bucketName    string
	publicBaseURL string
}

// NewGCSStorage khởi tạo client GCS với credentials từ file (nếu cấu hình).
func NewGCSStorage(ctx context.Context, bucketName string, credentialsPath string, publicBaseURL string) (*GCSStorage, error) {
	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, common.NewError(common.ErrCodeNetworkStorage, "Không khởi tạo được storage client", common.StatusServiceUnavailable, err)
	}

	return &GCSStorage{
		client:        client,
		bucket:        client.Bucket(bucketName),
		bucketName:    bucketName,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

// Upload ghi object lên GCS với điều kiện DoesNotExist.
// Object trùng tên (412 Precondition Failed) không phải là lỗi:
// cùng một assetId upload lại là no-op idempotent.
func (s *GCSStorage) Upload(ctx context.Context, objectName string, contentType string, r io.Reader) error {
	writer := s.bucket.Object(objectName).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := io.Copy(writer, r); err != nil {
		_ = writer.Close()
		if isPreconditionFailed(err) {
			return nil
		}
		return common.NewError(common.ErrCodeNetworkStorage, "Lỗi ghi object lên storage", common.StatusServiceUnavailable, err)
	}

	if err := writer.Close(); err != nil {
		if isPreconditionFailed(err) {
			return nil
		}
		return common.NewError(common.ErrCodeNetworkStorage, "Lỗi hoàn tất ghi object lên storage", common.StatusServiceUnavailable, err)
	}
	return nil
}

// PublicURL trả về URL công khai theo base URL cấu hình,
// mặc định theo format chuẩn của GCS.
func (s *GCSStorage) PublicURL(objectName string) (string, error) {
	if objectName == "" {
		return "", common.ErrInvalidInput
	}
	if s.publicBaseURL != "" {
		return fmt.Sprintf("%s/%s", s.publicBaseURL, objectName), nil
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucketName, objectName), nil
}

// Delete xoá object. Object không tồn tại không phải là lỗi.
func (s *GCSStorage) Delete(ctx context.Context, objectName string) error {
	err := s.bucket.Object(objectName).Delete(ctx)
	if err != nil && err != storage.ErrObjectNotExist {
		return common.NewError(common.ErrCodeNetworkStorage, "Lỗi xoá object khỏi storage", common.StatusServiceUnavailable, err)
	}
	return nil
}

// Close đóng client GCS khi shutdown.
func (s *GCSStorage) Close() error {
	return s.client.Close()
}

// isPreconditionFailed kiểm tra lỗi 412 từ điều kiện DoesNotExist.
func isPreconditionFailed(err error) bool {
	if gerr, ok := err.(*googleapi.Error); ok {
		return gerr.Code == 412
	}
	return false
}
