package mediahdl

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"

	basehdl "sand_score/internal/api/base/handler"
	"sand_score/internal/common"
	"sand_score/internal/worker"
)

// SensorCaptureHandler xử lý API điều khiển chu trình chụp tự động.
type SensorCaptureHandler struct {
	Worker *worker.SensorCaptureWorker
}

// NewSensorCaptureHandler tạo SensorCaptureHandler mới.
func NewSensorCaptureHandler(w *worker.SensorCaptureWorker) *SensorCaptureHandler {
	return &SensorCaptureHandler{Worker: w}
}

// HandleStart xử lý POST /capture/start — bật chu trình chụp tự động.
func (h *SensorCaptureHandler) HandleStart(c fiber.Ctx) error {
	return basehdl.SafeHandlerWrapper(c, func() error {
		// Worker sống độc lập với request: vòng đời điều khiển qua Stop
		if err := h.Worker.Start(context.Background()); err != nil {
			return basehdl.HandleError(c, err)
		}
		return basehdl.Success(c, common.StatusOK, common.MsgSuccess, h.Worker.Status())
	})
}

// HandleStop xử lý POST /capture/stop — tắt chu trình chụp.
// Lần chụp đang dở vẫn được chạy nốt.
func (h *SensorCaptureHandler) HandleStop(c fiber.Ctx) error {
	return basehdl.SafeHandlerWrapper(c, func() error {
		h.Worker.Stop()
		return basehdl.Success(c, common.StatusOK, common.MsgSuccess, h.Worker.Status())
	})
}

// HandleSetInterval xử lý PUT /capture/interval — đổi chu kỳ chụp.
// Body: {"intervalSeconds": 300}. Chu kỳ phải thuộc menu cho phép.
func (h *SensorCaptureHandler) HandleSetInterval(c fiber.Ctx) error {
	return basehdl.SafeHandlerWrapper(c, func() error {
		var input struct {
			IntervalSeconds int `json:"intervalSeconds"`
		}
		if err := c.Bind().Body(&input); err != nil {
			return basehdl.HandleError(c, common.NewError(common.ErrCodeValidationInput, common.MsgValidationError, common.StatusBadRequest, err.Error()))
		}

		if err := h.Worker.SetInterval(time.Duration(input.IntervalSeconds) * time.Second); err != nil {
			return basehdl.HandleError(c, err)
		}
		return basehdl.Success(c, common.StatusOK, common.MsgSuccess, h.Worker.Status())
	})
}

// HandleStatus xử lý GET /capture/status — trạng thái worker, gồm số
// giây còn lại đến lần chụp kế tiếp (client dùng hiển thị đếm ngược).
func (h *SensorCaptureHandler) HandleStatus(c fiber.Ctx) error {
	return basehdl.SafeHandlerWrapper(c, func() error {
		return basehdl.Success(c, common.StatusOK, common.MsgSuccess, h.Worker.Status())
	})
}

// HandleIntervalMenu xử lý GET /capture/intervals — danh sách chu kỳ
// hợp lệ để client hiển thị dropdown.
func (h *SensorCaptureHandler) HandleIntervalMenu(c fiber.Ctx) error {
	return basehdl.SafeHandlerWrapper(c, func() error {
		menu := make([]int, 0, len(worker.CaptureIntervalMenu))
		for _, d := range worker.CaptureIntervalMenu {
			menu = append(menu, int(d/time.Second))
		}
		return basehdl.Success(c, common.StatusOK, common.MsgSuccess, fiber.Map{"intervalSeconds": menu})
	})
}
