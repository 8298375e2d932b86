package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TriggerSignal định nghĩa giá trị hợp lệ của tín hiệu trigger
const (
	TriggerSignalYes = "yes" // Yêu cầu chụp ảnh
	TriggerSignalNo  = "no"  // Không yêu cầu (bị bỏ qua)
)

// CaptureTrigger đại diện cho một tín hiệu yêu cầu chụp từ cảm biến ngoài.
// Consumed là cờ claim: poller chỉ được xử lý trigger sau khi chuyển
// thành công consumed false -> true bằng conditional update. Trigger
// đã consumed không bao giờ được xử lý lại.
type CaptureTrigger struct {
	ID primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"` // ID của trigger

	// ===== SIGNAL =====
	Signal   string `json:"signal" bson:"signal"`                         // Tín hiệu: yes hoặc no
	SensorID string `json:"sensorId,omitempty" bson:"sensorId,omitempty"` // Cảm biến phát tín hiệu
	Source   string `json:"source,omitempty" bson:"source,omitempty"`     // Nguồn ghi trigger (thiết bị, API)

	// ===== CLAIM =====
	Consumed   bool   `json:"consumed" bson:"consumed"`                         // Đã bị claim xử lý chưa
	ConsumedAt *int64 `json:"consumedAt,omitempty" bson:"consumedAt,omitempty"` // Thời điểm claim (UnixMilli)
	ConsumedBy string `json:"consumedBy,omitempty" bson:"consumedBy,omitempty"` // Instance đã claim trigger

	// ===== TIMESTAMPS =====
	CreatedAt int64 `json:"createdAt" bson:"createdAt" index:"single:-1"` // Thời gian tạo
	UpdatedAt int64 `json:"updatedAt" bson:"updatedAt"`                   // Thời gian cập nhật
}
