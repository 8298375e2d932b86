// Package worker - TriggerPollWorker poll các tín hiệu chụp từ cảm biến
// ngoài trong collection sensor_data và chụp ảnh cho từng tín hiệu đã
// claim được.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"sand_score/config"
	"sand_score/internal/api/media/dto"
	"sand_score/internal/api/media/models"
	mediasvc "sand_score/internal/api/media/service"
	"sand_score/internal/camera"
	"sand_score/internal/common"
	"sand_score/internal/location"
	"sand_score/internal/logger"
)

// TriggerSource là phần của trigger service mà poller cần.
type TriggerSource interface {
	FindPending(ctx context.Context, limit int64) ([]models.CaptureTrigger, error)
	Claim(ctx context.Context, id primitive.ObjectID, claimedBy string) error
}

// BatchProcessor xử lý một batch file qua pipeline upload.
type BatchProcessor interface {
	ProcessBatchSync(ctx context.Context, files []mediasvc.BatchFile, captureType string, sensorID string, triggerID string) *dto.UploadBatchResult
}

// TriggerActivity một dòng trong nhật ký hoạt động của poller.
type TriggerActivity struct {
	At        int64  `json:"at"`                // Thời điểm (UnixMilli)
	TriggerID string `json:"triggerId"`         // Trigger liên quan
	Outcome   string `json:"outcome"`           // claimed, claim-lost, captured, location-failed, capture-failed, upload-failed
	Detail    string `json:"detail,omitempty"`  // Chi tiết kèm theo
}

// TriggerPollWorker poll trigger theo chu kỳ và xử lý tuần tự.
//
// Claim dùng conditional update consumed false -> true nên nhiều
// instance chạy song song vẫn an toàn: mỗi trigger chỉ đúng một
// instance thắng, các instance thua bỏ qua trong im lặng.
type TriggerPollWorker struct {
	triggers    TriggerSource
	coordinator BatchProcessor
	camera      camera.Camera
	locations   location.Source
	instanceID  string
	sensorID    string
	interval    time.Duration
	batchSize   int64
	activityCap int

	mu       sync.Mutex
	activity []TriggerActivity
}

// NewTriggerPollWorker tạo poller mới.
// instanceID ghi vào consumedBy để truy được instance nào xử lý trigger.
func NewTriggerPollWorker(cfg *config.Configuration, triggers TriggerSource, coordinator BatchProcessor, cam camera.Camera, locations location.Source, instanceID string) *TriggerPollWorker {
	interval := time.Duration(cfg.TriggerPollInterval) * time.Second
	if interval < time.Second {
		interval = 10 * time.Second
	}
	batchSize := int64(cfg.TriggerPollBatch)
	if batchSize <= 0 {
		batchSize = 5
	}
	activityCap := cfg.TriggerActivityCap
	if activityCap <= 0 {
		activityCap = 50
	}
	return &TriggerPollWorker{
		triggers:    triggers,
		coordinator: coordinator,
		camera:      cam,
		locations:   locations,
		instanceID:  instanceID,
		sensorID:    cfg.CameraSensorID,
		interval:    interval,
		batchSize:   batchSize,
		activityCap: activityCap,
	}
}

// Start chạy poller trong vòng lặp.
func (w *TriggerPollWorker) Start(ctx context.Context) {
	log := logger.GetAppLogger()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	log.WithFields(logrus.Fields{
		"worker":     "trigger_poll",
		"interval":   w.interval.String(),
		"batchSize":  w.batchSize,
		"instanceId": w.instanceID,
	}).Info("🔔 [TRIGGER_POLL] Starting Trigger Poll Worker...")

	for {
		select {
		case <-ctx.Done():
			log.WithField("worker", "trigger_poll").Info("🔔 [TRIGGER_POLL] Trigger Poll Worker stopped")
			return
		case <-ticker.C:
			w.pollOnce(ctx, log)
		}
	}
}

// Activity trả về nhật ký hoạt động, mới nhất trước.
func (w *TriggerPollWorker) Activity() []TriggerActivity {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]TriggerActivity, len(w.activity))
	copy(out, w.activity)
	return out
}

// record thêm một dòng vào nhật ký, giữ tối đa activityCap dòng.
func (w *TriggerPollWorker) record(triggerID string, outcome string, detail string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	entry := TriggerActivity{
		At:        time.Now().UnixMilli(),
		TriggerID: triggerID,
		Outcome:   outcome,
		Detail:    detail,
	}
	w.activity = append([]TriggerActivity{entry}, w.activity...)
	if len(w.activity) > w.activityCap {
		w.activity = w.activity[:w.activityCap]
	}
}

// pollOnce chạy một tick: lấy batch trigger chưa consumed và xử lý
// tuần tự từng trigger.
func (w *TriggerPollWorker) pollOnce(ctx context.Context, log *logrus.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(logrus.Fields{
				"worker": "trigger_poll",
				"panic":  r,
			}).Error("🔔 [TRIGGER_POLL] Panic khi xử lý, sẽ tiếp tục tick tiếp theo")
		}
	}()

	pending, err := w.triggers.FindPending(ctx, w.batchSize)
	if err != nil {
		log.WithFields(logrus.Fields{
			"worker": "trigger_poll",
			"error":  err.Error(),
		}).Warn("🔔 [TRIGGER_POLL] Không đọc được trigger, bỏ qua tick này")
		return
	}

	for _, trigger := range pending {
		if ctx.Err() != nil {
			return
		}
		w.handleTrigger(ctx, log, trigger)
	}
}

// handleTrigger claim rồi chụp + upload cho một trigger.
func (w *TriggerPollWorker) handleTrigger(ctx context.Context, log *logrus.Logger, trigger models.CaptureTrigger) {
	triggerID := trigger.ID.Hex()

	// FindPending chỉ trả về ứng viên; claim mới là điểm quyết định.
	// Thua claim không phải là lỗi: instance khác đã xử lý trigger này.
	if err := w.triggers.Claim(ctx, trigger.ID, w.instanceID); err != nil {
		if errors.Is(err, common.ErrClaimLost) {
			w.record(triggerID, "claim-lost", "")
			return
		}
		w.record(triggerID, "claim-failed", err.Error())
		log.WithFields(logrus.Fields{
			"worker":    "trigger_poll",
			"triggerId": triggerID,
			"error":     err.Error(),
		}).Warn("🔔 [TRIGGER_POLL] Lỗi claim trigger")
		return
	}
	w.record(triggerID, "claimed", "")

	// Vị trí phải có trước khi mở camera: thiếu vị trí thì không chụp,
	// đỡ tốn một frame chắc chắn sẽ bị pipeline từ chối.
	if _, err := w.locations.CurrentFix(ctx); err != nil {
		w.record(triggerID, "location-failed", err.Error())
		log.WithFields(logrus.Fields{
			"worker":    "trigger_poll",
			"triggerId": triggerID,
			"error":     err.Error(),
		}).Warn("🔔 [TRIGGER_POLL] Không lấy được vị trí cho trigger")
		return
	}

	frame, err := w.camera.Capture(ctx)
	if err != nil {
		// Trigger đã consumed, không trả lại: claim là một chiều để
		// tránh hai instance cùng chụp cho một tín hiệu.
		w.record(triggerID, "capture-failed", err.Error())
		log.WithFields(logrus.Fields{
			"worker":    "trigger_poll",
			"triggerId": triggerID,
			"error":     err.Error(),
		}).Warn("🔔 [TRIGGER_POLL] Không chụp được frame cho trigger")
		return
	}

	file := mediasvc.BatchFile{
		Meta: mediasvc.IncomingFile{
			Name:     frameFileName(frame),
			Size:     int64(len(frame.Data)),
			MimeType: frame.MimeType,
		},
		Data: frame.Data,
	}

	sensorID := trigger.SensorID
	if sensorID == "" {
		sensorID = w.sensorID
	}

	result := w.coordinator.ProcessBatchSync(ctx, []mediasvc.BatchFile{file}, models.CaptureTypeTriggered, sensorID, triggerID)
	if result.Accepted > 0 {
		w.record(triggerID, "captured", "")
	} else {
		detail := ""
		if len(result.Items) > 0 {
			detail = result.Items[0].Status
			if result.Items[0].FailureCode != "" {
				detail += ": " + result.Items[0].FailureCode
			}
		}
		w.record(triggerID, "upload-failed", detail)
	}

	log.WithFields(logrus.Fields{
		"worker":    "trigger_poll",
		"triggerId": triggerID,
		"accepted":  result.Accepted,
	}).Info("🔔 [TRIGGER_POLL] Trigger xử lý xong")
}
