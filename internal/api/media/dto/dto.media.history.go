package dto

import (
	"sand_score/internal/api/media/models"
	"sand_score/internal/location"
)

// HistoryQueryInput tham số lọc khi xem lịch sử upload
type HistoryQueryInput struct {
	Page        int64  `query:"page"`        // Trang (từ 0)
	Limit       int64  `query:"limit"`       // Số phần tử mỗi trang
	CaptureType string `query:"captureType" validate:"omitempty,capture_type"` // Lọc theo nguồn gốc ảnh
	Status      string `query:"status"`      // Lọc theo trạng thái pipeline
}

// HistoryItem một dòng trong lịch sử upload, đã gộp kết quả phân tích
type HistoryItem struct {
	AssetID      string             `json:"assetId"`                // Định danh asset
	FileName     string             `json:"fileName"`               // Tên file gốc
	FileSize     int64              `json:"fileSize"`               // Kích thước file (bytes)
	MimeType     string             `json:"mimeType"`               // MIME type
	CaptureType  string             `json:"captureType"`            // Nguồn gốc ảnh
	Status       string             `json:"status"`                 // Trạng thái pipeline
	DownloadURL  string             `json:"downloadUrl,omitempty"`  // URL công khai của ảnh
	Location     *location.GeoFix   `json:"location,omitempty"`     // Vị trí GPS lúc upload
	Analysis     *models.GrainStats `json:"analysis,omitempty"`     // Kết quả phân tích (nil nếu chưa có)
	AnalysisStatus string           `json:"analysisStatus,omitempty"` // Trạng thái phân tích
	UploadedAt   string             `json:"uploadedAt"`             // Thời điểm upload, đã format theo display timezone
	UploadedAtMs int64              `json:"uploadedAtMs"`           // Thời điểm upload (UnixMilli) cho client tự format
}

// AnalysisQueryInput tham số lọc khi xem danh sách kết quả phân tích
type AnalysisQueryInput struct {
	Page    int64  `query:"page"`    // Trang (từ 0)
	Limit   int64  `query:"limit"`   // Số phần tử mỗi trang
	Status  string `query:"status"`  // Lọc theo trạng thái phân tích
	Refresh bool   `query:"refresh"` // Đồng bộ từ analysis service trước khi đọc
}

// AnalysisListItem một dòng trong dashboard kết quả phân tích
type AnalysisListItem struct {
	AssetID      string             `json:"assetId"`                // Upload được phân tích
	FileName     string             `json:"fileName,omitempty"`     // Tên file gốc của upload
	DownloadURL  string             `json:"downloadUrl,omitempty"`  // URL công khai của ảnh
	CaptureType  string             `json:"captureType,omitempty"`  // Nguồn gốc ảnh
	Status       string             `json:"status"`                 // Trạng thái phân tích
	Result       *models.GrainStats `json:"result,omitempty"`       // Kết quả thống kê (nil nếu chưa xong)
	ErrorMessage string             `json:"errorMessage,omitempty"` // Lỗi từ service (nếu failed)
	RetryCount   int                `json:"retryCount"`             // Số lần đã retry
	AnalyzedAt   *int64             `json:"analyzedAt,omitempty"`   // Thời điểm có kết quả (UnixMilli)
	UpdatedAt    string             `json:"updatedAt"`              // Lần cập nhật cuối, đã format theo display timezone
	UpdatedAtMs  int64              `json:"updatedAtMs"`            // Lần cập nhật cuối (UnixMilli)
}

// TriggerCreateInput dữ liệu đầu vào khi ghi một trigger từ cảm biến
type TriggerCreateInput struct {
	Signal   string `json:"signal" validate:"required,signal_value"` // Tín hiệu: yes hoặc no (bắt buộc)
	SensorID string `json:"sensorId,omitempty"`                      // Cảm biến phát tín hiệu
	Source   string `json:"source,omitempty"`                        // Nguồn ghi trigger
}
