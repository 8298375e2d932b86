// Package worker - SensorCaptureWorker chụp ảnh mẫu cát tự động theo
// chu kỳ cố định và đẩy qua pipeline upload như một batch một file.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"sand_score/config"
	"sand_score/internal/api/media/models"
	mediasvc "sand_score/internal/api/media/service"
	"sand_score/internal/camera"
	"sand_score/internal/common"
	"sand_score/internal/location"
	"sand_score/internal/logger"
)

// CaptureIntervalMenu là các chu kỳ chụp hợp lệ. Người dùng chỉ được
// chọn trong menu này, không nhập chu kỳ tùy ý.
var CaptureIntervalMenu = []time.Duration{
	30 * time.Second,
	time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	time.Hour,
}

// defaultCaptureInterval dùng khi cấu hình không thuộc menu.
const defaultCaptureInterval = 5 * time.Minute

// SensorCaptureStatus trạng thái hiện tại của worker, trả cho client.
type SensorCaptureStatus struct {
	Running          bool   `json:"running"`                  // Worker có đang chạy không
	IntervalSeconds  int    `json:"intervalSeconds"`          // Chu kỳ chụp hiện tại (giây)
	RemainingSeconds int    `json:"remainingSeconds"`         // Số giây còn lại đến lần chụp sau
	LastCaptureAt    int64  `json:"lastCaptureAt,omitempty"`  // Lần chụp gần nhất (UnixMilli)
	LastOutcome      string `json:"lastOutcome,omitempty"`    // Kết quả lần chụp gần nhất
	SensorID         string `json:"sensorId"`                 // Sensor gắn với worker
}

// SensorCaptureWorker chụp ảnh tự động theo chu kỳ.
//
// Đồng hồ đếm ngược chạy bằng ticker 1 giây: remaining giảm dần về 0
// thì chụp và reset. Cách này cho phép client hỏi "còn bao lâu đến lần
// chụp sau" bất kỳ lúc nào, điều một ticker theo chu kỳ không làm được.
type SensorCaptureWorker struct {
	coordinator BatchProcessor
	camera      camera.Camera
	locations   location.Source
	sensorID    string

	mu          sync.Mutex
	running     bool
	interval    time.Duration
	remaining   int
	lastCapture int64
	lastOutcome string
	cancel      context.CancelFunc
}

// NewSensorCaptureWorker tạo worker mới từ cấu hình.
// Chu kỳ cấu hình không thuộc menu bị thay bằng chu kỳ mặc định.
func NewSensorCaptureWorker(cfg *config.Configuration, coordinator BatchProcessor, cam camera.Camera, locations location.Source) *SensorCaptureWorker {
	interval := normalizeInterval(time.Duration(cfg.SensorCaptureInterval) * time.Second)
	return &SensorCaptureWorker{
		coordinator: coordinator,
		camera:      cam,
		locations:   locations,
		sensorID:    cfg.CameraSensorID,
		interval:    interval,
		remaining:   int(interval / time.Second),
	}
}

// normalizeInterval ép chu kỳ về menu hợp lệ.
func normalizeInterval(d time.Duration) time.Duration {
	for _, allowed := range CaptureIntervalMenu {
		if d == allowed {
			return d
		}
	}
	return defaultCaptureInterval
}

// IsAllowedInterval kiểm tra chu kỳ có thuộc menu không.
func IsAllowedInterval(d time.Duration) bool {
	for _, allowed := range CaptureIntervalMenu {
		if d == allowed {
			return true
		}
	}
	return false
}

// Start bắt đầu chu trình chụp tự động.
// Trả về lỗi BIZ_001 nếu worker đã chạy.
func (w *SensorCaptureWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return common.NewError(common.ErrCodeBusinessState, "Chu trình chụp tự động đã chạy", common.StatusConflict, nil)
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.running = true
	w.cancel = cancel
	w.remaining = int(w.interval / time.Second)
	w.mu.Unlock()

	go w.run(runCtx)
	return nil
}

// Stop dừng chu trình chụp. Lần chụp đang dở được chạy nốt.
func (w *SensorCaptureWorker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		w.cancel()
	}
}

// SetInterval đổi chu kỳ chụp. Chu kỳ mới phải thuộc menu; đồng hồ
// đếm ngược reset về chu kỳ mới ngay lập tức.
func (w *SensorCaptureWorker) SetInterval(d time.Duration) error {
	if !IsAllowedInterval(d) {
		return common.NewError(common.ErrCodeValidationInput, "Chu kỳ chụp không thuộc danh sách cho phép", common.StatusBadRequest, d.String())
	}
	w.mu.Lock()
	w.interval = d
	w.remaining = int(d / time.Second)
	w.mu.Unlock()
	return nil
}

// Status trả về trạng thái hiện tại của worker.
func (w *SensorCaptureWorker) Status() SensorCaptureStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return SensorCaptureStatus{
		Running:          w.running,
		IntervalSeconds:  int(w.interval / time.Second),
		RemainingSeconds: w.remaining,
		LastCaptureAt:    w.lastCapture,
		LastOutcome:      w.lastOutcome,
		SensorID:         w.sensorID,
	}
}

// run là vòng lặp chính: ticker 1 giây giảm remaining, chạm 0 thì chụp.
func (w *SensorCaptureWorker) run(ctx context.Context) {
	log := logger.GetAppLogger()

	w.mu.Lock()
	interval := w.interval
	w.mu.Unlock()

	log.WithFields(logrus.Fields{
		"worker":   "sensor_capture",
		"interval": interval.String(),
		"sensorId": w.sensorID,
	}).Info("📷 [SENSOR_CAPTURE] Starting Sensor Capture Worker...")

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			w.running = false
			w.cancel = nil
			w.mu.Unlock()
			log.WithField("worker", "sensor_capture").Info("📷 [SENSOR_CAPTURE] Sensor Capture Worker stopped")
			return
		case <-ticker.C:
			w.mu.Lock()
			w.remaining--
			due := w.remaining <= 0
			if due {
				w.remaining = int(w.interval / time.Second)
			}
			w.mu.Unlock()

			if due {
				if stop := w.captureCycle(ctx, log); stop {
					w.Stop()
				}
			}
		}
	}
}

// captureCycle chạy một chu kỳ chụp + upload.
// Trả về true nếu worker phải dừng hẳn (mất quyền camera).
// Lỗi thiết bị tạm thời chỉ hủy chu kỳ hiện tại, chu kỳ sau vẫn chạy.
func (w *SensorCaptureWorker) captureCycle(ctx context.Context, log *logrus.Logger) (stop bool) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(logrus.Fields{
				"worker": "sensor_capture",
				"panic":  r,
			}).Error("📷 [SENSOR_CAPTURE] Panic khi chụp, sẽ tiếp tục chu kỳ tiếp theo")
		}
	}()

	// Thiếu vị trí thì bỏ nguyên chu kỳ, không mở camera:
	// pipeline sẽ từ chối upload không có vị trí.
	if _, err := w.locations.CurrentFix(ctx); err != nil {
		w.setOutcome("location-failed: " + err.Error())
		log.WithFields(logrus.Fields{
			"worker": "sensor_capture",
			"error":  err.Error(),
		}).Warn("📷 [SENSOR_CAPTURE] Không lấy được vị trí, bỏ qua chu kỳ này")
		return false
	}

	frame, err := w.camera.Capture(ctx)
	if err != nil {
		w.setOutcome("capture-failed: " + err.Error())
		if errors.Is(err, common.ErrCameraPermissionDenied) {
			log.WithField("worker", "sensor_capture").Error("📷 [SENSOR_CAPTURE] Mất quyền camera, dừng chu trình chụp tự động")
			return true
		}
		log.WithFields(logrus.Fields{
			"worker": "sensor_capture",
			"error":  err.Error(),
		}).Warn("📷 [SENSOR_CAPTURE] Không chụp được frame, bỏ qua chu kỳ này")
		return false
	}

	file := mediasvc.BatchFile{
		Meta: mediasvc.IncomingFile{
			Name:     frameFileName(frame),
			Size:     int64(len(frame.Data)),
			MimeType: frame.MimeType,
		},
		Data: frame.Data,
	}

	result := w.coordinator.ProcessBatchSync(ctx, []mediasvc.BatchFile{file}, models.CaptureTypeSensor, w.sensorID, "")

	outcome := "done"
	if result.Accepted == 0 && len(result.Items) > 0 {
		outcome = result.Items[0].Status
		if result.Items[0].FailureCode != "" {
			outcome += ": " + result.Items[0].FailureCode
		}
	}
	w.setOutcome(outcome)

	log.WithFields(logrus.Fields{
		"worker":   "sensor_capture",
		"step":     "cycle_done",
		"outcome":  outcome,
		"sensorId": w.sensorID,
	}).Info("📷 [SENSOR_CAPTURE] Chu kỳ chụp hoàn tất")
	return false
}

// setOutcome ghi kết quả chu kỳ gần nhất.
func (w *SensorCaptureWorker) setOutcome(outcome string) {
	w.mu.Lock()
	w.lastCapture = time.Now().UnixMilli()
	w.lastOutcome = outcome
	w.mu.Unlock()
}

// frameFileName sinh tên file từ frame theo thời điểm chụp.
func frameFileName(frame *camera.Frame) string {
	return time.UnixMilli(frame.CapturedAt).UTC().Format("20060102_150405") + "_" + frame.SensorID + ".jpg"
}
