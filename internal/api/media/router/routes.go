// Package router đăng ký các route của pipeline media: upload batch,
// lịch sử, trigger từ cảm biến và điều khiển chụp tự động.
package router

import (
	"github.com/gofiber/fiber/v3"

	"sand_score/internal/analysis"
	mediahdl "sand_score/internal/api/media/handler"
	mediasvc "sand_score/internal/api/media/service"
	"sand_score/internal/worker"
)

// Dependencies chứa các service và worker mà route cần.
// Tập hợp được khởi tạo một lần ở cmd/server rồi truyền xuống.
type Dependencies struct {
	Coordinator   *mediasvc.UploadCoordinator
	History       *mediasvc.HistoryService
	Triggers      *mediasvc.CaptureTriggerService
	CaptureWorker *worker.SensorCaptureWorker
	PollWorker    *worker.TriggerPollWorker
	Analysis      *analysis.Client
}

// Register đăng ký tất cả route media lên v1.
func Register(v1 fiber.Router, deps *Dependencies) error {
	uploadHandler := mediahdl.NewMediaUploadHandler(deps.Coordinator)
	v1.Post("/media/uploads", uploadHandler.HandleUploadBatch)
	v1.Delete("/media/uploads/:assetId", uploadHandler.HandleDelete)
	v1.Post("/media/uploads/:assetId/analysis/retry", uploadHandler.HandleRetryAnalysis)

	historyHandler := mediahdl.NewHistoryHandler(deps.History)
	v1.Get("/media/history", historyHandler.HandleList)
	v1.Get("/media/history/:assetId", historyHandler.HandleDetail)
	v1.Get("/media/analyses", historyHandler.HandleAnalyses)
	v1.Get("/media/analyses/:assetId", historyHandler.HandleAnalysisDetail)

	triggerHandler := mediahdl.NewCaptureTriggerHandler(deps.Triggers, deps.PollWorker)
	v1.Post("/sensor/triggers", triggerHandler.HandleCreate)
	v1.Get("/sensor/triggers/pending", triggerHandler.HandlePendingCount)
	v1.Get("/sensor/triggers/activity", triggerHandler.HandleActivity)

	captureHandler := mediahdl.NewSensorCaptureHandler(deps.CaptureWorker)
	v1.Post("/capture/start", captureHandler.HandleStart)
	v1.Post("/capture/stop", captureHandler.HandleStop)
	v1.Put("/capture/interval", captureHandler.HandleSetInterval)
	v1.Get("/capture/status", captureHandler.HandleStatus)
	v1.Get("/capture/intervals", captureHandler.HandleIntervalMenu)

	healthHandler := mediahdl.NewHealthHandler(deps.Analysis)
	v1.Get("/health", healthHandler.HandleHealth)

	return nil
}
