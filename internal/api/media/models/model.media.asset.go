package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"sand_score/internal/location"
)

// CaptureType định nghĩa nguồn gốc của một ảnh upload
const (
	CaptureTypeManual    = "manual"    // Người dùng chọn file thủ công
	CaptureTypeSensor    = "sensor"    // Chụp tự động theo chu kỳ
	CaptureTypeTriggered = "triggered" // Chụp theo trigger từ cảm biến ngoài
)

// UploadStatus định nghĩa trạng thái của một ảnh trong pipeline upload.
// Mỗi ảnh đi qua các bước tuần tự; dừng ở bước nào thì FailureStage
// ghi lại bước đó.
const (
	UploadStatusQueued             = "queued"              // Đang chờ trong batch
	UploadStatusValidating         = "validating"          // Đang kiểm tra file
	UploadStatusRejected           = "rejected"            // Bị loại ở bước kiểm tra
	UploadStatusUploadingObject    = "uploading-object"    // Đang ghi lên object storage
	UploadStatusResolvingURL       = "resolving-url"       // Đang resolve download URL
	UploadStatusAcquiringLocation  = "acquiring-location"  // Đang lấy vị trí GPS
	UploadStatusPersistingMetadata = "persisting-metadata" // Đang ghi metadata vào database
	UploadStatusTriggeringAnalysis = "triggering-analysis" // Đang gọi analysis service
	UploadStatusDone               = "done"                // Hoàn tất toàn bộ pipeline
	UploadStatusFailed             = "failed"              // Lỗi giữa chừng, có thể đã ghi một phần
)

// MediaAsset đại diện cho một ảnh mẫu cát đã đi qua pipeline upload.
// Pipeline ghi theo từng bước, không rollback: một asset có thể có
// object trên storage nhưng Status vẫn là failed nếu bước sau lỗi.
type MediaAsset struct {
	ID primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"` // ID của asset

	// ===== IDENTITY =====
	AssetID  string `json:"assetId" bson:"assetId" index:"unique"` // Định danh ổn định (uuid), dùng làm object key và khóa liên kết
	FileName string `json:"fileName" bson:"fileName"`              // Tên file gốc
	FileSize int64  `json:"fileSize" bson:"fileSize"`              // Kích thước file (bytes)
	MimeType string `json:"mimeType" bson:"mimeType"`              // MIME type đã qua kiểm tra
	Checksum string `json:"checksum,omitempty" bson:"checksum,omitempty"` // SHA-256 của nội dung, dùng phát hiện trùng lặp trong batch

	// ===== ORIGIN =====
	CaptureType string `json:"captureType" bson:"captureType" index:"single:1"`      // Nguồn gốc: manual, sensor, triggered
	SensorID    string `json:"sensorId,omitempty" bson:"sensorId,omitempty"`         // Sensor gắn với ảnh (capture tự động / trigger)
	TriggerID   string `json:"triggerId,omitempty" bson:"triggerId,omitempty"`       // ID trigger đã sinh ra ảnh này (nếu có)

	// ===== PIPELINE STATE =====
	Status       string `json:"status" bson:"status" index:"single:1"`                        // Trạng thái hiện tại trong pipeline
	FailureStage string `json:"failureStage,omitempty" bson:"failureStage,omitempty"`         // Bước bị lỗi (nếu Status = failed)
	FailureCode  string `json:"failureCode,omitempty" bson:"failureCode,omitempty"`           // Mã lỗi của bước bị lỗi
	Warning      string `json:"warning,omitempty" bson:"warning,omitempty"`                   // Cảnh báo không chặn pipeline (vd: batch bị cắt bớt)

	// ===== STORAGE =====
	ObjectKey   string `json:"objectKey,omitempty" bson:"objectKey,omitempty"`     // Object key trên storage
	DownloadURL string `json:"downloadUrl,omitempty" bson:"downloadUrl,omitempty"` // URL công khai đã resolve

	// ===== LOCATION =====
	Location *location.GeoFix `json:"location,omitempty" bson:"location,omitempty"` // Vị trí GPS lúc upload (nil nếu không lấy được)

	// ===== TIMESTAMPS =====
	CreatedAt int64 `json:"createdAt" bson:"createdAt" index:"single:-1"` // Thời gian tạo
	UpdatedAt int64 `json:"updatedAt" bson:"updatedAt"`                   // Thời gian cập nhật
}
