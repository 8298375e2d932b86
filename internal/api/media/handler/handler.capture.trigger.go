package mediahdl

import (
	"github.com/gofiber/fiber/v3"

	basehdl "sand_score/internal/api/base/handler"
	"sand_score/internal/api/media/dto"
	mediasvc "sand_score/internal/api/media/service"
	"sand_score/internal/common"
	"sand_score/internal/worker"
)

// CaptureTriggerHandler xử lý API ghi trigger và xem hoạt động poller.
type CaptureTriggerHandler struct {
	Triggers *mediasvc.CaptureTriggerService
	Poller   *worker.TriggerPollWorker
}

// NewCaptureTriggerHandler tạo CaptureTriggerHandler mới.
func NewCaptureTriggerHandler(triggers *mediasvc.CaptureTriggerService, poller *worker.TriggerPollWorker) *CaptureTriggerHandler {
	return &CaptureTriggerHandler{Triggers: triggers, Poller: poller}
}

// HandleCreate xử lý POST /sensor/triggers — thiết bị ngoài ghi một
// tín hiệu chụp. Signal "no" vẫn được lưu nhưng poller không xử lý.
func (h *CaptureTriggerHandler) HandleCreate(c fiber.Ctx) error {
	return basehdl.SafeHandlerWrapper(c, func() error {
		var input dto.TriggerCreateInput
		if err := c.Bind().Body(&input); err != nil {
			return basehdl.HandleError(c, common.NewError(common.ErrCodeValidationInput, common.MsgValidationError, common.StatusBadRequest, err.Error()))
		}

		trigger, err := h.Triggers.Create(c.Context(), &input)
		if err != nil {
			return basehdl.HandleError(c, err)
		}
		return basehdl.Success(c, common.StatusCreated, common.MsgCreated, trigger)
	})
}

// HandlePendingCount xử lý GET /sensor/triggers/pending — số trigger
// "yes" chưa được xử lý.
func (h *CaptureTriggerHandler) HandlePendingCount(c fiber.Ctx) error {
	return basehdl.SafeHandlerWrapper(c, func() error {
		count, err := h.Triggers.CountPending(c.Context())
		if err != nil {
			return basehdl.HandleError(c, err)
		}
		return basehdl.Success(c, common.StatusOK, common.MsgSuccess, fiber.Map{"pending": count})
	})
}

// HandleActivity xử lý GET /sensor/triggers/activity — nhật ký hoạt
// động của poller, mới nhất trước, tối đa theo cấu hình.
func (h *CaptureTriggerHandler) HandleActivity(c fiber.Ctx) error {
	return basehdl.SafeHandlerWrapper(c, func() error {
		return basehdl.Success(c, common.StatusOK, common.MsgSuccess, h.Poller.Activity())
	})
}
