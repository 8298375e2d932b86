package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"

	"sand_score/internal/analysis"
	mediarouter "sand_score/internal/api/media/router"
	mediasvc "sand_score/internal/api/media/service"
	"sand_score/internal/camera"
	"sand_score/internal/global"
	"sand_score/internal/location"
	"sand_score/internal/logger"
	"sand_score/internal/storage"
	"sand_score/internal/worker"
)

// initLogger khởi tạo và cấu hình logger cho toàn bộ ứng dụng
func initLogger() {
	// Logger sẽ tự động đọc environment variables để cấu hình
	if err := logger.Init(nil); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	log := logger.GetAppLogger()
	log.Info("Logger system initialized successfully")
}

// initDependencies khởi tạo toàn bộ service, client và worker của
// pipeline media, trả về Dependencies cho router.
func initDependencies(ctx context.Context) *mediarouter.Dependencies {
	log := logger.GetAppLogger()
	cfg := global.ServerConfig

	// Object storage
	objStorage, err := storage.NewGCSStorage(ctx, cfg.GCS_Bucket, cfg.GCS_CredentialsPath, cfg.StoragePublicBaseURL)
	if err != nil {
		log.Fatalf("Không khởi tạo được object storage: %v", err)
	}

	// Các collaborator HTTP
	analysisClient := analysis.NewClient(cfg)
	locationProvider := location.NewHTTPProvider(cfg)
	cam := camera.NewSnapshotCamera(cfg)

	// Các service trên MongoDB
	assetService, err := mediasvc.NewMediaAssetService()
	if err != nil {
		log.Fatalf("Không khởi tạo được asset service: %v", err)
	}
	triggerService, err := mediasvc.NewCaptureTriggerService()
	if err != nil {
		log.Fatalf("Không khởi tạo được trigger service: %v", err)
	}
	recordService, err := mediasvc.NewAnalysisRecordService()
	if err != nil {
		log.Fatalf("Không khởi tạo được analysis record service: %v", err)
	}

	coordinator := mediasvc.NewUploadCoordinator(cfg, assetService, objStorage, locationProvider, analysisClient, recordService)
	historyService := mediasvc.NewHistoryService(cfg, assetService, recordService, analysisClient)

	// instanceID phân biệt các instance khi claim trigger
	hostname, _ := os.Hostname()
	instanceID := fmt.Sprintf("%s-%s", hostname, uuid.NewString()[:8])

	captureWorker := worker.NewSensorCaptureWorker(cfg, coordinator, cam, locationProvider)
	pollWorker := worker.NewTriggerPollWorker(cfg, triggerService, coordinator, cam, locationProvider, instanceID)

	return &mediarouter.Dependencies{
		Coordinator:   coordinator,
		History:       historyService,
		Triggers:      triggerService,
		CaptureWorker: captureWorker,
		PollWorker:    pollWorker,
		Analysis:      analysisClient,
	}
}

// main_thread khởi tạo và chạy Fiber server
func main_thread(deps *mediarouter.Dependencies) {
	app := InitFiberApp(deps)

	cfg := global.ServerConfig
	log := logger.GetAppLogger()

	log.WithFields(map[string]interface{}{
		"address":  cfg.Address,
		"protocol": "HTTP",
	}).Info("Starting Fiber server...")

	if err := app.Listen(cfg.Address); err != nil {
		log.Fatalf("Error in Fiber Listen: %v", err)
	}
}

// Hàm main
func main() {
	// Khởi tạo logger
	initLogger()

	// Khởi tạo các biến toàn cục
	InitGlobal()

	// Khởi tạo registry
	InitRegistry()

	// Khởi tạo index cho các collection
	InitIndexes()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Khởi tạo toàn bộ dependencies của pipeline media
	deps := initDependencies(ctx)

	log := logger.GetAppLogger()

	// Chạy Trigger Poll Worker trong goroutine riêng với recover.
	// Sensor Capture Worker không tự chạy: người dùng bật qua API.
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.WithFields(map[string]interface{}{
					"panic": r,
				}).Error("🔔 [TRIGGER_POLL] Worker goroutine panic")
			}
		}()

		deps.PollWorker.Start(ctx)
	}()
	log.Info("🔔 [TRIGGER_POLL] Trigger Poll Worker started successfully")

	// Chạy Fiber server trên main thread
	main_thread(deps)
}
