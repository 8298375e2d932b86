package logger

import (
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// FilterHook lọc log entries theo các thuộc tính của pipeline:
// - Worker (sensor_capture, trigger_poll)
// - Step (bước của upload coordinator: uploading-object, persisting-metadata...)
// - Log Type (trace, debug, info, warn, error, fatal)
type FilterHook struct {
	allowedWorkers  map[string]bool
	allowedSteps    map[string]bool
	allowedLogTypes map[string]bool

	hasWorkerFilter  bool
	hasStepFilter    bool
	hasLogTypeFilter bool

	mu sync.RWMutex
}

// NewFilterHook tạo một filter hook mới với cấu hình
func NewFilterHook(cfg *LogConfig) *FilterHook {
	hook := &FilterHook{
		allowedWorkers:  make(map[string]bool),
		allowedSteps:    make(map[string]bool),
		allowedLogTypes: make(map[string]bool),
	}
	hook.updateFilters(cfg)
	return hook
}

func (h *FilterHook) updateFilters(cfg *LogConfig) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.allowedWorkers = parseFilter(cfg.FilterWorkers)
	h.hasWorkerFilter = len(h.allowedWorkers) > 0 && !h.allowedWorkers["*"]

	h.allowedSteps = parseFilter(cfg.FilterSteps)
	h.hasStepFilter = len(h.allowedSteps) > 0 && !h.allowedSteps["*"]

	h.allowedLogTypes = parseFilter(cfg.FilterLogTypes)
	h.hasLogTypeFilter = len(h.allowedLogTypes) > 0 && !h.allowedLogTypes["*"]
}

// parseFilter parse filter string "value1,value2" thành map; "" hoặc "*" = tất cả
func parseFilter(filterStr string) map[string]bool {
	result := make(map[string]bool)

	if filterStr == "" || filterStr == "*" {
		result["*"] = true
		return result
	}

	values := strings.Split(filterStr, ",")
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			result[strings.ToLower(v)] = true
		}
	}

	return result
}

// Levels trả về các log levels mà hook này xử lý
func (h *FilterHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire đánh dấu entry bị filter bằng field "_filtered" = true;
// AsyncHook sẽ kiểm tra field này và bỏ qua entry.
func (h *FilterHook) Fire(entry *logrus.Entry) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.hasLogTypeFilter {
		levelStr := strings.ToLower(entry.Level.String())
		if !h.allowedLogTypes[levelStr] {
			entry.Data["_filtered"] = true
			return nil
		}
	}

	if h.hasWorkerFilter {
		worker, ok := entry.Data["worker"].(string)
		// Nếu entry không gắn worker field thì không filter theo worker
		if ok && worker != "" {
			if !h.allowedWorkers[strings.ToLower(worker)] {
				entry.Data["_filtered"] = true
				return nil
			}
		}
	}

	if h.hasStepFilter {
		step, ok := entry.Data["step"].(string)
		if ok && step != "" {
			if !h.allowedSteps[strings.ToLower(step)] {
				entry.Data["_filtered"] = true
				return nil
			}
		}
	}

	return nil
}

// UpdateFilters cập nhật filters từ config mới (có thể gọi runtime)
func (h *FilterHook) UpdateFilters(cfg *LogConfig) {
	h.updateFilters(cfg)
}
