package global

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// InitValidator khởi tạo và đăng ký các custom validator
func InitValidator() {
	Validate = validator.New()

	// Đăng ký các custom validator của pipeline media
	_ = Validate.RegisterValidation("capture_type", validateCaptureType)
	_ = Validate.RegisterValidation("signal_value", validateSignalValue)
	_ = Validate.RegisterValidation("mime_image", validateMimeImage)
	_ = Validate.RegisterValidation("analysis_status", validateAnalysisStatus)
}

// validateCaptureType kiểm tra capture classification hợp lệ
func validateCaptureType(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "manual", "sensor", "triggered":
		return true
	}
	return false
}

// validateSignalValue kiểm tra signal của CaptureTrigger (nhị phân yes/no)
func validateSignalValue(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "yes", "no":
		return true
	}
	return false
}

// validateMimeImage kiểm tra MIME type thuộc nhóm image
func validateMimeImage(fl validator.FieldLevel) bool {
	return strings.HasPrefix(strings.ToLower(fl.Field().String()), "image/")
}

// validateAnalysisStatus kiểm tra trạng thái của AnalysisRecord
func validateAnalysisStatus(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "pending", "processing", "completed", "failed":
		return true
	}
	return false
}
