package common

import (
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
)

// HTTP Status Code Constants
const (
	// Success Codes (2xx)
	StatusOK        = 200 // Thành công
	StatusCreated   = 201 // Tạo mới thành công
	StatusAccepted  = 202 // Yêu cầu được chấp nhận
	StatusNoContent = 204 // Thành công nhưng không có nội dung trả về

	// Client Error Codes (4xx)
	StatusBadRequest         = 400 // Yêu cầu không hợp lệ
	StatusUnauthorized       = 401 // Chưa xác thực
	StatusForbidden          = 403 // Không có quyền truy cập
	StatusNotFound           = 404 // Không tìm thấy tài nguyên
	StatusConflict           = 409 // Xung đột dữ liệu
	StatusGone               = 410 // Tài nguyên không còn tồn tại
	StatusPreconditionFailed = 412 // Điều kiện tiên quyết không thỏa mãn
	StatusPayloadTooLarge    = 413 // Payload vượt giới hạn
	StatusTooManyRequests    = 429 // Quá nhiều yêu cầu

	// Server Error Codes (5xx)
	StatusInternalServerError = 500 // Lỗi server
	StatusBadGateway          = 502 // Gateway không hợp lệ
	StatusServiceUnavailable  = 503 // Dịch vụ không khả dụng
	StatusGatewayTimeout      = 504 // Gateway timeout
)

// Response Messages
const (
	// Success Messages
	MsgSuccess  = "Thao tác thành công"
	MsgCreated  = "Tạo mới thành công"
	MsgAccepted = "Yêu cầu được chấp nhận"

	// Error Messages
	MsgBadRequest         = "Yêu cầu không hợp lệ"
	MsgNotFound           = "Không tìm thấy tài nguyên"
	MsgConflict           = "Xung đột dữ liệu"
	MsgInternalError      = "Lỗi hệ thống"
	MsgServiceUnavailable = "Dịch vụ không khả dụng"

	// Validation Messages
	MsgValidationError = "Dữ liệu không hợp lệ"
	MsgDatabaseError   = "Lỗi tương tác với cơ sở dữ liệu"
	MsgInvalidFormat   = "Định dạng dữ liệu không hợp lệ"
)

// ErrorCode định nghĩa mã lỗi chi tiết
type ErrorCode struct {
	Code        string // Mã lỗi (ví dụ: VAL_001)
	Category    string // Phân loại lỗi (ví dụ: Validation)
	SubCategory string // Phân loại con (ví dụ: FileType)
	Description string // Mô tả chi tiết
}

// Định nghĩa các mã lỗi theo hệ thống phân cấp.
// Taxonomy của pipeline upload: VAL (validation từng file), PERM (quyền
// thiết bị), NET (lỗi mạng tạm thời), DEV (lỗi thiết bị), RACE (thua
// tranh chấp claim).
var (
	// System Errors (SYS_xxx)
	ErrCodeInternalServer = ErrorCode{
		Code:        "SYS_001",
		Category:    "System",
		SubCategory: "Internal",
		Description: "Lỗi hệ thống nội bộ",
	}

	// Validation Errors (VAL_xxx)
	ErrCodeValidation = ErrorCode{
		Code:        "VAL",
		Category:    "Validation",
		SubCategory: "General",
		Description: "Lỗi xác thực dữ liệu chung",
	}

	ErrCodeValidationInput = ErrorCode{
		Code:        "VAL_001",
		Category:    "Validation",
		SubCategory: "Input",
		Description: "Lỗi dữ liệu đầu vào",
	}

	ErrCodeValidationFormat = ErrorCode{
		Code:        "VAL_002",
		Category:    "Validation",
		SubCategory: "Format",
		Description: "Lỗi định dạng dữ liệu",
	}

	ErrCodeValidationFile = ErrorCode{
		Code:        "VAL_003",
		Category:    "Validation",
		SubCategory: "File",
		Description: "File không qua được kiểm tra (loại, kích thước, trùng lặp)",
	}

	// Permission Errors (PERM_xxx) - không bao giờ tự retry
	ErrCodePermission = ErrorCode{
		Code:        "PERM",
		Category:    "Permission",
		SubCategory: "General",
		Description: "Lỗi quyền truy cập chung",
	}

	ErrCodePermissionLocation = ErrorCode{
		Code:        "PERM_001",
		Category:    "Permission",
		SubCategory: "Location",
		Description: "Bị từ chối quyền truy cập vị trí",
	}

	ErrCodePermissionCamera = ErrorCode{
		Code:        "PERM_002",
		Category:    "Permission",
		SubCategory: "Camera",
		Description: "Bị từ chối quyền truy cập camera",
	}

	// Network Errors (NET_xxx) - tạm thời, báo per-file, batch tiếp tục
	ErrCodeNetwork = ErrorCode{
		Code:        "NET",
		Category:    "Network",
		SubCategory: "General",
		Description: "Lỗi mạng tạm thời",
	}

	ErrCodeNetworkStorage = ErrorCode{
		Code:        "NET_001",
		Category:    "Network",
		SubCategory: "Storage",
		Description: "Lỗi upload object lên storage",
	}

	ErrCodeNetworkAnalysis = ErrorCode{
		Code:        "NET_002",
		Category:    "Network",
		SubCategory: "Analysis",
		Description: "Lỗi gọi analysis service",
	}

	// Device Errors (DEV_xxx) - hủy chu kỳ capture hiện tại
	ErrCodeDevice = ErrorCode{
		Code:        "DEV",
		Category:    "Device",
		SubCategory: "General",
		Description: "Lỗi thiết bị chung",
	}

	ErrCodeDeviceCamera = ErrorCode{
		Code:        "DEV_001",
		Category:    "Device",
		SubCategory: "Camera",
		Description: "Camera không khả dụng hoặc timeout",
	}

	ErrCodeDeviceLocation = ErrorCode{
		Code:        "DEV_002",
		Category:    "Device",
		SubCategory: "Location",
		Description: "Không lấy được fix vị trí trong thời gian cho phép",
	}

	// Race Errors (RACE_xxx) - skip im lặng, không phải lỗi user-visible
	ErrCodeRaceClaimLost = ErrorCode{
		Code:        "RACE_001",
		Category:    "Race",
		SubCategory: "TriggerClaim",
		Description: "Trigger đã bị instance khác claim trước",
	}

	// Database Errors (DB_xxx)
	ErrCodeDatabase = ErrorCode{
		Code:        "DB",
		Category:    "Database",
		SubCategory: "General",
		Description: "Lỗi cơ sở dữ liệu chung",
	}

	ErrCodeDatabaseConnection = ErrorCode{
		Code:        "DB_001",
		Category:    "Database",
		SubCategory: "Connection",
		Description: "Lỗi kết nối cơ sở dữ liệu",
	}

	ErrCodeDatabaseQuery = ErrorCode{
		Code:        "DB_002",
		Category:    "Database",
		SubCategory: "Query",
		Description: "Lỗi truy vấn dữ liệu",
	}

	// Business Logic Errors (BIZ_xxx)
	ErrCodeBusiness = ErrorCode{
		Code:        "BIZ",
		Category:    "Business",
		SubCategory: "General",
		Description: "Lỗi logic nghiệp vụ chung",
	}

	ErrCodeBusinessState = ErrorCode{
		Code:        "BIZ_001",
		Category:    "Business",
		SubCategory: "State",
		Description: "Lỗi trạng thái nghiệp vụ (ví dụ: worker đã chạy)",
	}
)

// Error định nghĩa cấu trúc lỗi chi tiết
type Error struct {
	Code       ErrorCode // Mã lỗi chi tiết
	Message    string    // Thông báo lỗi
	StatusCode int       // HTTP status code
	Details    any       // Thông tin chi tiết thêm về lỗi
}

// Error trả về message của lỗi
func (e *Error) Error() string {
	return e.Message
}

// Is kiểm tra xem error có phải là target error không (hỗ trợ errors.Is)
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if targetErr, ok := target.(*Error); ok {
		return e.Code.Code == targetErr.Code.Code && e.Message == targetErr.Message
	}
	return false
}

// NewError tạo một Error mới
func NewError(code ErrorCode, message string, statusCode int, details any) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Details:    details,
	}
}

// Các sentinel errors dùng chung
var (
	ErrNotFound      = NewError(ErrCodeDatabaseQuery, "Không tìm thấy dữ liệu", StatusNotFound, nil)
	ErrInvalidFormat = NewError(ErrCodeValidationFormat, MsgInvalidFormat, StatusBadRequest, nil)
	ErrInvalidInput  = NewError(ErrCodeValidationInput, MsgValidationError, StatusBadRequest, nil)
	ErrRequiredField = NewError(ErrCodeValidationInput, "Thiếu trường bắt buộc", StatusBadRequest, nil)

	// Permission errors - phải surface cho user, không tự retry
	ErrLocationPermissionDenied = NewError(ErrCodePermissionLocation, "Quyền truy cập vị trí bị từ chối. Vui lòng cấp quyền và thử lại", StatusForbidden, nil)
	ErrCameraPermissionDenied   = NewError(ErrCodePermissionCamera, "Quyền truy cập camera bị từ chối. Vui lòng cấp quyền và thử lại", StatusForbidden, nil)

	// Device errors
	ErrLocationTimeout = NewError(ErrCodeDeviceLocation, "Không lấy được vị trí trong thời gian cho phép", StatusGatewayTimeout, nil)
	ErrCameraBusy      = NewError(ErrCodeDeviceCamera, "Camera đang được sử dụng bởi thao tác khác", StatusConflict, nil)
	ErrCameraTimeout   = NewError(ErrCodeDeviceCamera, "Camera không trả về frame trong thời gian cho phép", StatusGatewayTimeout, nil)

	// Race errors - skip im lặng
	ErrClaimLost = NewError(ErrCodeRaceClaimLost, "Trigger đã được claim bởi instance khác", StatusConflict, nil)

	// Mongo errors
	ErrMongoConnection = NewError(ErrCodeDatabaseConnection, "Lỗi kết nối MongoDB", StatusServiceUnavailable, nil)
	ErrMongoTimeout    = NewError(ErrCodeDatabaseConnection, "MongoDB timeout", StatusGatewayTimeout, nil)
	ErrMongoNetwork    = NewError(ErrCodeDatabaseConnection, "Lỗi mạng khi kết nối MongoDB", StatusServiceUnavailable, nil)
	ErrMongoQuery      = NewError(ErrCodeDatabaseQuery, "Lỗi truy vấn MongoDB", StatusInternalServerError, nil)
	ErrMongoWrite      = NewError(ErrCodeDatabaseQuery, "Lỗi ghi dữ liệu MongoDB", StatusInternalServerError, nil)
	ErrMongoDuplicate  = NewError(ErrCodeDatabaseQuery, "Dữ liệu bị trùng lặp", StatusConflict, nil)
)

// ConvertMongoError chuyển đổi lỗi MongoDB sang lỗi hệ thống
func ConvertMongoError(err error) error {
	if err == nil {
		return nil
	}

	// Không convert ErrNotFound - giữ nguyên để caller phân biệt được
	if errors.Is(err, ErrNotFound) {
		return err
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}

	var mongoErr mongo.CommandError
	if errors.As(err, &mongoErr) {
		switch {
		case mongoErr.Code >= 100 && mongoErr.Code < 200:
			return ErrMongoConnection
		case mongoErr.Code >= 300 && mongoErr.Code < 400:
			return ErrMongoQuery
		case mongoErr.Code >= 400 && mongoErr.Code < 500:
			return ErrMongoWrite
		}
	}

	if mongo.IsDuplicateKeyError(err) {
		return ErrMongoDuplicate
	}
	if mongo.IsNetworkError(err) {
		return ErrMongoNetwork
	}
	if mongo.IsTimeout(err) {
		return ErrMongoTimeout
	}

	return NewError(ErrCodeDatabase, MsgDatabaseError, StatusInternalServerError, err)
}
