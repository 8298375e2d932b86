package mediahdl

import (
	"strconv"

	"github.com/gofiber/fiber/v3"

	basehdl "sand_score/internal/api/base/handler"
	"sand_score/internal/api/media/dto"
	mediasvc "sand_score/internal/api/media/service"
	"sand_score/internal/common"
)

// HistoryHandler xử lý API lịch sử upload.
type HistoryHandler struct {
	History *mediasvc.HistoryService
}

// NewHistoryHandler tạo HistoryHandler mới.
func NewHistoryHandler(history *mediasvc.HistoryService) *HistoryHandler {
	return &HistoryHandler{History: history}
}

// HandleList xử lý GET /media/history — trang lịch sử upload kèm kết
// quả phân tích, mới nhất trước.
// Query: page, limit, captureType (manual|sensor|triggered), status.
func (h *HistoryHandler) HandleList(c fiber.Ctx) error {
	return basehdl.SafeHandlerWrapper(c, func() error {
		input := &dto.HistoryQueryInput{
			Page:        parseInt64(c.Query("page"), 0),
			Limit:       parseInt64(c.Query("limit"), 20),
			CaptureType: c.Query("captureType"),
			Status:      c.Query("status"),
		}

		page, err := h.History.List(c.Context(), input)
		if err != nil {
			return basehdl.HandleError(c, err)
		}
		return basehdl.Success(c, common.StatusOK, common.MsgSuccess, page)
	})
}

// HandleDetail xử lý GET /media/history/:assetId — chi tiết một upload.
func (h *HistoryHandler) HandleDetail(c fiber.Ctx) error {
	return basehdl.SafeHandlerWrapper(c, func() error {
		assetID := c.Params("assetId")
		if assetID == "" {
			return basehdl.HandleError(c, common.ErrRequiredField)
		}

		item, err := h.History.Detail(c.Context(), assetID)
		if err != nil {
			return basehdl.HandleError(c, err)
		}
		return basehdl.Success(c, common.StatusOK, common.MsgSuccess, item)
	})
}

// HandleAnalyses xử lý GET /media/analyses — dashboard kết quả phân
// tích, cập nhật gần nhất trước.
// Query: page, limit, status, refresh (đồng bộ từ analysis service).
func (h *HistoryHandler) HandleAnalyses(c fiber.Ctx) error {
	return basehdl.SafeHandlerWrapper(c, func() error {
		input := &dto.AnalysisQueryInput{
			Page:    parseInt64(c.Query("page"), 0),
			Limit:   parseInt64(c.Query("limit"), 20),
			Status:  c.Query("status"),
			Refresh: c.Query("refresh") == "true",
		}

		page, err := h.History.Analyses(c.Context(), input)
		if err != nil {
			return basehdl.HandleError(c, err)
		}
		return basehdl.Success(c, common.StatusOK, common.MsgSuccess, page)
	})
}

// HandleAnalysisDetail xử lý GET /media/analyses/:assetId.
func (h *HistoryHandler) HandleAnalysisDetail(c fiber.Ctx) error {
	return basehdl.SafeHandlerWrapper(c, func() error {
		assetID := c.Params("assetId")
		if assetID == "" {
			return basehdl.HandleError(c, common.ErrRequiredField)
		}

		item, err := h.History.AnalysisDetail(c.Context(), assetID)
		if err != nil {
			return basehdl.HandleError(c, err)
		}
		return basehdl.Success(c, common.StatusOK, common.MsgSuccess, item)
	})
}

// parseInt64 parse query param số, trả về fallback nếu rỗng/sai.
func parseInt64(s string, fallback int64) int64 {
	if s == "" {
		return fallback
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
