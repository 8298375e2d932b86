package dto

// UploadResultItem kết quả pipeline cho một file trong batch
type UploadResultItem struct {
	AssetID      string `json:"assetId,omitempty"`      // Định danh asset (rỗng nếu bị loại trước khi tạo)
	FileName     string `json:"fileName"`               // Tên file gốc
	Status       string `json:"status"`                 // Trạng thái cuối: done, rejected, failed
	RejectReason string `json:"rejectReason,omitempty"` // Lý do bị loại (nếu rejected)
	FailureStage string `json:"failureStage,omitempty"` // Bước bị lỗi (nếu failed)
	FailureCode  string `json:"failureCode,omitempty"`  // Mã lỗi của bước bị lỗi
	DownloadURL  string `json:"downloadUrl,omitempty"`  // URL công khai của ảnh (nếu upload xong)
}

// UploadBatchResult kết quả của cả batch upload
type UploadBatchResult struct {
	Items     []UploadResultItem `json:"items"`               // Kết quả từng file, theo thứ tự đã nhận
	Accepted  int                `json:"accepted"`            // Số file hoàn tất pipeline
	Rejected  int                `json:"rejected"`            // Số file bị loại ở bước kiểm tra
	Failed    int                `json:"failed"`              // Số file lỗi giữa pipeline
	Cancelled int                `json:"cancelled"`           // Số file chưa xử lý do batch bị hủy
	Warning   string             `json:"warning,omitempty"`   // Cảnh báo chung của batch (vd: bị cắt bớt)
}

// ProgressEvent một sự kiện tiến độ phát ra trong lúc xử lý batch
type ProgressEvent struct {
	AssetID  string  `json:"assetId,omitempty"` // Asset đang xử lý
	FileName string  `json:"fileName"`          // Tên file đang xử lý
	Stage    string  `json:"stage"`             // Bước hiện tại của pipeline
	Percent  float64 `json:"percent"`           // Tiến độ của file hiện tại (0-100)
	Index    int     `json:"index"`             // Vị trí file trong batch (từ 0)
	Total    int     `json:"total"`             // Tổng số file trong batch
	Message  string  `json:"message,omitempty"` // Thông báo kèm theo (lỗi, cảnh báo)
}
