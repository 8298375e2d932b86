// Package service chứa business logic của pipeline media:
// kiểm tra file, điều phối upload, lịch sử, trigger và phân tích.
package service

import (
	"fmt"
	"strings"

	"sand_score/config"
)

// Lý do loại file ở bước kiểm tra. Các check chạy theo đúng thứ tự
// khai báo; file vi phạm nhiều điều kiện chỉ nhận lý do đầu tiên.
const (
	RejectNotAnImage      = "not-an-image"     // MIME không phải image/*
	RejectUnsupportedType = "unsupported-type" // Là ảnh nhưng không thuộc allow-list
	RejectTooLarge        = "too-large"        // Vượt kích thước tối đa
	RejectEmptyFile       = "empty-file"       // File rỗng (0 byte)
	RejectDuplicate       = "duplicate"        // Trùng với file khác trong cùng batch
)

// IncomingFile mô tả một file chờ kiểm tra, chưa đọc nội dung.
type IncomingFile struct {
	Name     string // Tên file gốc
	Size     int64  // Kích thước khai báo (bytes)
	MimeType string // MIME type khai báo
}

// FileVerdict kết quả kiểm tra của một file.
type FileVerdict struct {
	File     IncomingFile
	Accepted bool
	Reason   string // Lý do loại (rỗng nếu Accepted)
}

// BatchVerdict kết quả kiểm tra của cả batch.
type BatchVerdict struct {
	Verdicts []FileVerdict // Theo thứ tự file đã nhận, sau khi cắt bớt
	Warning  string        // Cảnh báo duy nhất của batch (rỗng nếu không có)
}

// MediaValidator kiểm tra file trước khi vào pipeline upload.
// Validator thuần túy, không gọi I/O: mọi quyết định dựa trên
// metadata khai báo của file và trạng thái batch hiện tại.
type MediaValidator struct {
	maxFileSize  int64
	maxBatchSize int
	allowedTypes map[string]bool
}

// NewMediaValidator khởi tạo validator từ cấu hình.
func NewMediaValidator(cfg *config.Configuration) *MediaValidator {
	allowed := make(map[string]bool)
	for _, t := range cfg.AllowedMimeTypes() {
		allowed[strings.ToLower(t)] = true
	}
	return &MediaValidator{
		maxFileSize:  cfg.UploadMaxFileSize,
		maxBatchSize: cfg.UploadMaxBatchSize,
		allowedTypes: allowed,
	}
}

// ValidateBatch kiểm tra toàn bộ batch.
// Batch vượt giới hạn bị cắt về maxBatchSize file đầu tiên, với đúng
// một cảnh báo cho cả batch (không phải một cảnh báo mỗi file bị bỏ).
// File trùng lặp được phát hiện trong phạm vi batch: file xuất hiện
// trước luôn thắng, các bản sau bị loại.
func (v *MediaValidator) ValidateBatch(files []IncomingFile) BatchVerdict {
	var warning string
	if len(files) > v.maxBatchSize {
		warning = fmt.Sprintf("Batch có %d file, chỉ %d file đầu tiên được xử lý", len(files), v.maxBatchSize)
		files = files[:v.maxBatchSize]
	}

	seen := make(map[string]bool, len(files))
	verdicts := make([]FileVerdict, 0, len(files))

	for _, f := range files {
		verdict := FileVerdict{File: f, Accepted: true}

		if reason := v.validateOne(f); reason != "" {
			verdict.Accepted = false
			verdict.Reason = reason
		} else {
			key := duplicateKey(f)
			if seen[key] {
				verdict.Accepted = false
				verdict.Reason = RejectDuplicate
			} else {
				seen[key] = true
			}
		}

		verdicts = append(verdicts, verdict)
	}

	return BatchVerdict{Verdicts: verdicts, Warning: warning}
}

// validateOne chạy các check đơn lẻ theo thứ tự cố định.
func (v *MediaValidator) validateOne(f IncomingFile) string {
	mime := strings.ToLower(strings.TrimSpace(f.MimeType))

	if !strings.HasPrefix(mime, "image/") {
		return RejectNotAnImage
	}
	if !v.allowedTypes[mime] {
		return RejectUnsupportedType
	}
	if f.Size > v.maxFileSize {
		return RejectTooLarge
	}
	if f.Size == 0 {
		return RejectEmptyFile
	}
	return ""
}

// duplicateKey định danh file trong phạm vi batch theo tên + kích thước.
func duplicateKey(f IncomingFile) string {
	return fmt.Sprintf("%s|%d", strings.ToLower(f.Name), f.Size)
}
