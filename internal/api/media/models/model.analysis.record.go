package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AnalysisStatus định nghĩa trạng thái của một lượt phân tích cỡ hạt
const (
	AnalysisStatusPending    = "pending"    // Đã yêu cầu, chưa có kết quả
	AnalysisStatusProcessing = "processing" // Service đang phân tích
	AnalysisStatusCompleted  = "completed"  // Có kết quả đầy đủ
	AnalysisStatusFailed     = "failed"     // Phân tích lỗi, có thể retry
)

// GrainStats chứa kết quả thống kê cỡ hạt của một ảnh mẫu cát.
// Các kích thước tính theo milimét; percentile d10..d90 là các mốc
// phân bố kích thước hạt tiêu chuẩn.
type GrainStats struct {
	// ===== PARTICLE COUNTS =====
	TotalParticles    int `json:"totalParticles" bson:"totalParticles"`       // Tổng số hạt phát hiện được
	ValidParticles    int `json:"validParticles" bson:"validParticles"`       // Số hạt nằm trong khoảng kích thước hợp lệ
	RejectedParticles int `json:"rejectedParticles" bson:"rejectedParticles"` // Số hạt bị loại (ngoài khoảng, chạm biên ảnh)
	SandParticles     int `json:"sandParticles" bson:"sandParticles"`         // Số hạt phân loại là cát
	StoneParticles    int `json:"stoneParticles" bson:"stoneParticles"`       // Số hạt phân loại là sỏi/đá

	// ===== SIZE STATISTICS (mm) =====
	MeanSize           float64 `json:"meanSize" bson:"meanSize"`                     // Kích thước trung bình
	MedianSize         float64 `json:"medianSize" bson:"medianSize"`                 // Kích thước trung vị
	StdDeviation       float64 `json:"stdDeviation" bson:"stdDeviation"`             // Độ lệch chuẩn
	RepresentativeSize float64 `json:"representativeSize" bson:"representativeSize"` // Kích thước đại diện của mẫu

	// ===== PERCENTILES (mm) =====
	D10 float64 `json:"d10" bson:"d10"`
	D25 float64 `json:"d25" bson:"d25"`
	D50 float64 `json:"d50" bson:"d50"`
	D75 float64 `json:"d75" bson:"d75"`
	D90 float64 `json:"d90" bson:"d90"`

	// ===== COMPOSITION =====
	SandPercent  float64 `json:"sandPercent" bson:"sandPercent"`   // Tỉ lệ cát (%)
	StonePercent float64 `json:"stonePercent" bson:"stonePercent"` // Tỉ lệ sỏi/đá (%)

	// ===== CALIBRATION =====
	ScaleCalibrated bool    `json:"scaleCalibrated" bson:"scaleCalibrated"` // Ảnh có vật chuẩn tỉ lệ hay không
	PixelsPerMm     float64 `json:"pixelsPerMm" bson:"pixelsPerMm"`         // Tỉ lệ pixel/mm dùng khi phân tích
}

// AnalysisRecord đại diện cho một lượt phân tích gắn với một upload.
// UploadID tham chiếu MediaAsset.AssetID; một upload có thể có nhiều
// lượt phân tích khi retry nhưng chỉ giữ record mới nhất.
type AnalysisRecord struct {
	ID primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"` // ID của record

	// ===== LINKAGE =====
	UploadID    string `json:"uploadId" bson:"uploadId" index:"single:1"`              // AssetID của upload được phân tích
	CaptureType string `json:"captureType,omitempty" bson:"captureType,omitempty"`     // Nguồn gốc ảnh (copy từ asset để lọc nhanh)

	// ===== RESULT =====
	Status       string      `json:"status" bson:"status" index:"single:1"`                      // Trạng thái: pending, processing, completed, failed
	Result       *GrainStats `json:"result,omitempty" bson:"result,omitempty"`                   // Kết quả thống kê (nil nếu chưa xong)
	ErrorMessage string      `json:"errorMessage,omitempty" bson:"errorMessage,omitempty"`       // Thông báo lỗi từ service (nếu failed)
	RetryCount   int         `json:"retryCount" bson:"retryCount"`                               // Số lần đã retry
	AnalyzedAt   *int64      `json:"analyzedAt,omitempty" bson:"analyzedAt,omitempty"`           // Thời điểm có kết quả (UnixMilli)

	// ===== TIMESTAMPS =====
	CreatedAt int64 `json:"createdAt" bson:"createdAt"`                   // Thời gian tạo
	UpdatedAt int64 `json:"updatedAt" bson:"updatedAt" index:"single:-1"` // Thời gian cập nhật
}
