// Package mediahdl - Handler API của pipeline media: upload batch,
// lịch sử, trigger và điều khiển chụp tự động.
package mediahdl

import (
	"io"
	"mime/multipart"

	"github.com/gofiber/fiber/v3"

	basehdl "sand_score/internal/api/base/handler"
	mediasvc "sand_score/internal/api/media/service"
	"sand_score/internal/api/media/models"
	"sand_score/internal/common"
)

// MediaUploadHandler xử lý API upload batch ảnh mẫu cát.
type MediaUploadHandler struct {
	Coordinator *mediasvc.UploadCoordinator
}

// NewMediaUploadHandler tạo MediaUploadHandler mới.
func NewMediaUploadHandler(coordinator *mediasvc.UploadCoordinator) *MediaUploadHandler {
	return &MediaUploadHandler{Coordinator: coordinator}
}

// HandleUploadBatch xử lý POST /media/uploads — upload một batch ảnh.
// Form multipart với field "files" (một hoặc nhiều file).
// Request xử lý đồng bộ: response là kết quả cuối của cả batch, từng
// file có trạng thái riêng (done/rejected/failed/cancelled).
func (h *MediaUploadHandler) HandleUploadBatch(c fiber.Ctx) error {
	return basehdl.SafeHandlerWrapper(c, func() error {
		form, err := c.MultipartForm()
		if err != nil {
			return basehdl.HandleError(c, common.NewError(common.ErrCodeValidationInput, "Request phải là multipart form", common.StatusBadRequest, err.Error()))
		}

		headers := form.File["files"]
		if len(headers) == 0 {
			return basehdl.HandleError(c, common.NewError(common.ErrCodeValidationInput, "Batch không có file nào", common.StatusBadRequest, nil))
		}

		files := make([]mediasvc.BatchFile, 0, len(headers))
		for _, header := range headers {
			data, err := readMultipartFile(header)
			if err != nil {
				return basehdl.HandleError(c, common.NewError(common.ErrCodeValidationInput, "Không đọc được file "+header.Filename, common.StatusBadRequest, err.Error()))
			}
			files = append(files, mediasvc.BatchFile{
				Meta: mediasvc.IncomingFile{
					Name:     header.Filename,
					Size:     header.Size,
					MimeType: header.Header.Get("Content-Type"),
				},
				Data: data,
			})
		}

		run := h.Coordinator.StartBatch(c.Context(), files, models.CaptureTypeManual, "", "")
		for range run.Events() {
			// Tiến độ là API in-process cho worker và test;
			// HTTP client nhận kết quả cuối.
		}
		result := run.Wait()

		return basehdl.Success(c, common.StatusOK, common.MsgSuccess, result)
	})
}

// HandleRetryAnalysis xử lý POST /media/uploads/:assetId/analysis/retry
// — yêu cầu phân tích lại một upload đã có ảnh trên storage.
func (h *MediaUploadHandler) HandleRetryAnalysis(c fiber.Ctx) error {
	return basehdl.SafeHandlerWrapper(c, func() error {
		assetID := c.Params("assetId")
		if assetID == "" {
			return basehdl.HandleError(c, common.ErrRequiredField)
		}

		status, stats, err := h.Coordinator.RetryAnalysis(c.Context(), assetID)
		if err != nil {
			return basehdl.HandleError(c, err)
		}

		return basehdl.Success(c, common.StatusOK, common.MsgSuccess, fiber.Map{
			"assetId": assetID,
			"status":  status,
			"result":  stats,
		})
	})
}

// HandleDelete xử lý DELETE /media/uploads/:assetId — xoá một upload
// theo yêu cầu người dùng: object trên storage trước, rồi tới bản ghi.
func (h *MediaUploadHandler) HandleDelete(c fiber.Ctx) error {
	return basehdl.SafeHandlerWrapper(c, func() error {
		assetID := c.Params("assetId")
		if assetID == "" {
			return basehdl.HandleError(c, common.ErrRequiredField)
		}

		if err := h.Coordinator.DeleteUpload(c.Context(), assetID); err != nil {
			return basehdl.HandleError(c, err)
		}
		return basehdl.Success(c, common.StatusOK, common.MsgSuccess, fiber.Map{
			"assetId": assetID,
			"deleted": true,
		})
	})
}

// readMultipartFile mở và đọc toàn bộ nội dung một file trong form.
func readMultipartFile(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
