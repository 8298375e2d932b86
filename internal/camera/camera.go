// Package camera quản lý snapshot camera dùng chung cho capture tự động
// và capture theo trigger. Camera chỉ có một handle duy nhất: mọi lần
// chụp phải giữ được handle, và handle luôn được trả lại kể cả khi lỗi.
package camera

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"sand_score/config"
	"sand_score/internal/common"
)

// Frame là một frame ảnh chụp được từ camera.
type Frame struct {
	Data       []byte // Nội dung ảnh (JPEG)
	MimeType   string // MIME type của frame
	SensorID   string // Định danh sensor gắn với camera
	CapturedAt int64  // Thời điểm chụp (UnixMilli)
}

// Camera là interface chụp frame mà các worker sử dụng.
type Camera interface {
	// Capture chụp một frame. Trả về ErrCameraBusy nếu camera đang bị
	// giữ bởi thao tác khác, ErrCameraTimeout nếu quá hard timeout.
	Capture(ctx context.Context) (*Frame, error)
}

// SnapshotCamera chụp frame từ một snapshot endpoint HTTP.
// mu đóng vai trò handle duy nhất của thiết bị: TryLock thất bại
// nghĩa là camera đang bận, caller không chờ mà báo lỗi ngay.
type SnapshotCamera struct {
	endpoint       string
	sensorID       string
	stabilizeDelay time.Duration
	captureTimeout time.Duration
	httpClient     *http.Client

	mu sync.Mutex
}

// NewSnapshotCamera khởi tạo camera từ cấu hình.
func NewSnapshotCamera(cfg *config.Configuration) *SnapshotCamera {
	return &SnapshotCamera{
		endpoint:       cfg.CameraSnapshotURL,
		sensorID:       cfg.CameraSensorID,
		stabilizeDelay: time.Duration(cfg.CameraStabilizeMs) * time.Millisecond,
		captureTimeout: time.Duration(cfg.CameraCaptureTimeout) * time.Second,
		httpClient:     &http.Client{},
	}
}

// Capture chụp một frame từ camera.
// Quy trình: giữ handle -> chờ ổn định -> lấy frame -> trả handle.
// Hard timeout bao trùm toàn bộ quy trình, kể cả thời gian chờ ổn định.
func (c *SnapshotCamera) Capture(ctx context.Context) (*Frame, error) {
	if !c.mu.TryLock() {
		return nil, common.ErrCameraBusy
	}
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.captureTimeout)
	defer cancel()

	// Chờ camera ổn định (auto-exposure, focus) trước khi chụp
	if c.stabilizeDelay > 0 {
		select {
		case <-time.After(c.stabilizeDelay):
		case <-ctx.Done():
			return nil, c.ctxError(ctx)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, common.NewError(common.ErrCodeDeviceCamera, "Không tạo được request chụp frame", common.StatusInternalServerError, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return nil, c.ctxError(ctx)
		}
		return nil, common.NewError(common.ErrCodeDeviceCamera, "Không kết nối được camera", common.StatusServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return nil, common.ErrCameraPermissionDenied
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, common.NewError(common.ErrCodeDeviceCamera,
			fmt.Sprintf("Camera trả về status %d", resp.StatusCode),
			common.StatusBadGateway, nil)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, c.ctxError(ctx)
		}
		return nil, common.NewError(common.ErrCodeDeviceCamera, "Lỗi đọc frame từ camera", common.StatusBadGateway, err)
	}
	if len(data) == 0 {
		return nil, common.NewError(common.ErrCodeDeviceCamera, "Camera trả về frame rỗng", common.StatusBadGateway, nil)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	return &Frame{
		Data:       data,
		MimeType:   mimeType,
		SensorID:   c.sensorID,
		CapturedAt: time.Now().UnixMilli(),
	}, nil
}

// ctxError phân biệt timeout cứng với cancel chủ động.
func (c *SnapshotCamera) ctxError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return common.ErrCameraTimeout
	}
	return common.NewError(common.ErrCodeDeviceCamera, "Thao tác chụp bị hủy", common.StatusBadRequest, ctx.Err())
}
