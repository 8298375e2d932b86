package mediahdl

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"sand_score/internal/analysis"
	basehdl "sand_score/internal/api/base/handler"
	"sand_score/internal/common"
	"sand_score/internal/global"
)

// HealthHandler xử lý health check của service và các hệ thống phụ thuộc.
type HealthHandler struct {
	Analysis *analysis.Client
}

// NewHealthHandler tạo HealthHandler mới.
func NewHealthHandler(analysisClient *analysis.Client) *HealthHandler {
	return &HealthHandler{Analysis: analysisClient}
}

// HandleHealth xử lý GET /health — trạng thái service.
// Database lỗi làm health fail; analysis service lỗi chỉ ghi nhận
// degraded vì pipeline upload vẫn lưu được ảnh khi thiếu phân tích.
func (h *HealthHandler) HandleHealth(c fiber.Ctx) error {
	return basehdl.SafeHandlerWrapper(c, func() error {
		checkCtx := c.Context()

		dbStatus := "ok"
		if err := global.MongoDB_Session.Ping(checkCtx, readpref.Primary()); err != nil {
			dbStatus = "down"
		}

		analysisStatus := "ok"
		if err := h.Analysis.Health(checkCtx); err != nil {
			analysisStatus = "down"
		}

		status := "ok"
		statusCode := common.StatusOK
		if dbStatus != "ok" {
			status = "down"
			statusCode = common.StatusServiceUnavailable
		} else if analysisStatus != "ok" {
			status = "degraded"
		}

		return basehdl.JSONResponse(c, statusCode, fiber.Map{
			"status":   status,
			"database": dbStatus,
			"analysis": analysisStatus,
			"time":     time.Now().UnixMilli(),
		})
	})
}
