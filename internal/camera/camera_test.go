// Package camera - Test SnapshotCamera: handle độc quyền, hard timeout,
// phân loại lỗi quyền và lỗi thiết bị.
package camera

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"sand_score/config"
	"sand_score/internal/common"
)

func newTestCamera(url string, timeoutSeconds int) *SnapshotCamera {
	return NewSnapshotCamera(&config.Configuration{
		CameraSnapshotURL:    url,
		CameraSensorID:       "sensor-01",
		CameraStabilizeMs:    0,
		CameraCaptureTimeout: timeoutSeconds,
	})
}

func TestCapture_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-frame-bytes"))
	}))
	defer server.Close()

	cam := newTestCamera(server.URL, 5)
	frame, err := cam.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture lỗi: %v", err)
	}
	if string(frame.Data) != "png-frame-bytes" {
		t.Errorf("data = %q", frame.Data)
	}
	if frame.MimeType != "image/png" {
		t.Errorf("mimeType = %q, muốn lấy từ Content-Type", frame.MimeType)
	}
	if frame.SensorID != "sensor-01" || frame.CapturedAt == 0 {
		t.Errorf("frame = %+v", frame)
	}
}

func TestCapture_DefaultMimeType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Không set Content-Type (chặn auto-sniffing của net/http)
		w.Header()["Content-Type"] = nil
		_, _ = w.Write([]byte("raw"))
	}))
	defer server.Close()

	cam := newTestCamera(server.URL, 5)
	frame, err := cam.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture lỗi: %v", err)
	}
	if frame.MimeType != "image/jpeg" {
		t.Errorf("mimeType = %q, muốn mặc định image/jpeg", frame.MimeType)
	}
}

func TestCapture_BusyWhileHeld(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release // giữ request đầu tiên đứng yên
		_, _ = w.Write([]byte("frame"))
	}))
	defer server.Close()
	defer close(release)

	cam := newTestCamera(server.URL, 5)

	started := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		close(started)
		_, _ = cam.Capture(context.Background())
	}()
	<-started

	// Chờ goroutine chiếm được handle
	deadline := time.Now().Add(2 * time.Second)
	var err error
	for time.Now().Before(deadline) {
		_, err = cam.Capture(context.Background())
		if errors.Is(err, common.ErrCameraBusy) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !errors.Is(err, common.ErrCameraBusy) {
		t.Fatalf("err = %v, muốn ErrCameraBusy khi handle đang bị giữ", err)
	}
	release <- struct{}{}
	wg.Wait()
}

func TestCapture_HandleReleasedAfterError(t *testing.T) {
	var failFirst sync.Once
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		failed := false
		failFirst.Do(func() {
			w.WriteHeader(http.StatusInternalServerError)
			failed = true
		})
		if !failed {
			_, _ = w.Write([]byte("frame"))
		}
	}))
	defer server.Close()

	cam := newTestCamera(server.URL, 5)

	if _, err := cam.Capture(context.Background()); err == nil {
		t.Fatal("lần chụp đầu phải lỗi (500)")
	}
	// Handle phải được trả lại sau lỗi
	if _, err := cam.Capture(context.Background()); err != nil {
		t.Fatalf("lần chụp sau phải chiếm được handle: %v", err)
	}
}

func TestCapture_ForbiddenIsPermissionDenied(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	cam := newTestCamera(server.URL, 5)
	_, err := cam.Capture(context.Background())
	if !errors.Is(err, common.ErrCameraPermissionDenied) {
		t.Fatalf("err = %v, muốn ErrCameraPermissionDenied", err)
	}
}

func TestCapture_EmptyFrameRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK) // body rỗng
	}))
	defer server.Close()

	cam := newTestCamera(server.URL, 5)
	_, err := cam.Capture(context.Background())
	if err == nil {
		t.Fatal("frame rỗng phải bị từ chối")
	}
}

func TestCapture_HardTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(5 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	cam := newTestCamera(server.URL, 1)
	start := time.Now()
	_, err := cam.Capture(context.Background())
	if !errors.Is(err, common.ErrCameraTimeout) {
		t.Fatalf("err = %v, muốn ErrCameraTimeout", err)
	}
	if time.Since(start) > 3*time.Second {
		t.Error("timeout cứng không được chờ lâu hơn cấu hình")
	}
}

func TestCapture_StabilizeDelayCountsTowardTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("frame"))
	}))
	defer server.Close()

	cam := NewSnapshotCamera(&config.Configuration{
		CameraSnapshotURL:    server.URL,
		CameraSensorID:       "sensor-01",
		CameraStabilizeMs:    5000, // chờ ổn định dài hơn hard timeout
		CameraCaptureTimeout: 1,
	})

	_, err := cam.Capture(context.Background())
	if !errors.Is(err, common.ErrCameraTimeout) {
		t.Fatalf("err = %v, muốn timeout trong lúc chờ ổn định", err)
	}
}
