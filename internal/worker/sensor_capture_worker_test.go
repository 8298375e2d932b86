// Package worker - Test SensorCaptureWorker: menu chu kỳ, vòng đời
// start/stop, xử lý lỗi camera trong chu kỳ chụp.
package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"sand_score/config"
	"sand_score/internal/api/media/models"
	"sand_score/internal/camera"
	"sand_score/internal/common"
)

func newTestCaptureWorker(cam *fakeCamera, proc *fakeProcessor) *SensorCaptureWorker {
	cfg := &config.Configuration{
		SensorCaptureInterval: 300,
		CameraSensorID:        "sensor-01",
	}
	return NewSensorCaptureWorker(cfg, proc, cam, &fakeFix{})
}

func TestNormalizeInterval(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want time.Duration
	}{
		{30 * time.Second, 30 * time.Second},
		{time.Minute, time.Minute},
		{5 * time.Minute, 5 * time.Minute},
		{15 * time.Minute, 15 * time.Minute},
		{time.Hour, time.Hour},
		{45 * time.Second, defaultCaptureInterval}, // không thuộc menu
		{0, defaultCaptureInterval},
		{2 * time.Hour, defaultCaptureInterval},
	}
	for _, c := range cases {
		if got := normalizeInterval(c.in); got != c.want {
			t.Errorf("normalizeInterval(%v) = %v, muốn %v", c.in, got, c.want)
		}
	}
}

func TestIsAllowedInterval(t *testing.T) {
	for _, d := range CaptureIntervalMenu {
		if !IsAllowedInterval(d) {
			t.Errorf("%v thuộc menu nhưng bị từ chối", d)
		}
	}
	if IsAllowedInterval(7 * time.Second) {
		t.Error("7s không thuộc menu nhưng được chấp nhận")
	}
}

func TestSetInterval_RejectsOffMenu(t *testing.T) {
	w := newTestCaptureWorker(&fakeCamera{}, &fakeProcessor{})

	err := w.SetInterval(42 * time.Second)
	if err == nil {
		t.Fatal("chu kỳ ngoài menu phải bị từ chối")
	}
	var appErr *common.Error
	if !errors.As(err, &appErr) || appErr.Code.Code != common.ErrCodeValidationInput.Code {
		t.Errorf("mã lỗi = %v, muốn %s", err, common.ErrCodeValidationInput.Code)
	}
	// Chu kỳ hiện tại không đổi
	if w.Status().IntervalSeconds != 300 {
		t.Errorf("interval = %d, muốn giữ 300", w.Status().IntervalSeconds)
	}
}

func TestSetInterval_ResetsCountdown(t *testing.T) {
	w := newTestCaptureWorker(&fakeCamera{}, &fakeProcessor{})

	if err := w.SetInterval(30 * time.Second); err != nil {
		t.Fatalf("SetInterval lỗi: %v", err)
	}
	st := w.Status()
	if st.IntervalSeconds != 30 || st.RemainingSeconds != 30 {
		t.Errorf("interval/remaining = %d/%d, muốn 30/30", st.IntervalSeconds, st.RemainingSeconds)
	}
}

func TestStart_TwiceReturnsBusy(t *testing.T) {
	w := newTestCaptureWorker(&fakeCamera{}, &fakeProcessor{})

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start lần đầu lỗi: %v", err)
	}
	defer w.Stop()

	err := w.Start(context.Background())
	if err == nil {
		t.Fatal("start lần hai phải trả về lỗi")
	}
	var appErr *common.Error
	if !errors.As(err, &appErr) || appErr.Code.Code != common.ErrCodeBusinessState.Code {
		t.Errorf("mã lỗi = %v, muốn %s", err, common.ErrCodeBusinessState.Code)
	}
}

func TestStop_ThenStartAgain(t *testing.T) {
	w := newTestCaptureWorker(&fakeCamera{}, &fakeProcessor{})

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start lỗi: %v", err)
	}
	w.Stop()

	// Goroutine cần một nhịp để thoát vòng lặp
	deadline := time.Now().Add(2 * time.Second)
	for w.Status().Running && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if w.Status().Running {
		t.Fatal("worker không dừng sau Stop")
	}

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start lại sau khi dừng phải được: %v", err)
	}
	w.Stop()
}

func TestCaptureCycle_HappyPath(t *testing.T) {
	cam := &fakeCamera{}
	proc := &fakeProcessor{accepted: true}
	w := newTestCaptureWorker(cam, proc)

	stop := w.captureCycle(context.Background(), testLog())
	if stop {
		t.Fatal("chu kỳ thành công không được dừng worker")
	}
	if proc.batches != 1 || proc.lastType != models.CaptureTypeSensor {
		t.Errorf("batches = %d type = %q, muốn 1/sensor", proc.batches, proc.lastType)
	}
	st := w.Status()
	if st.LastOutcome != "done" || st.LastCaptureAt == 0 {
		t.Errorf("outcome = %q lastCaptureAt = %d", st.LastOutcome, st.LastCaptureAt)
	}
}

func TestCaptureCycle_PermissionDeniedStopsWorker(t *testing.T) {
	cam := &fakeCamera{err: common.ErrCameraPermissionDenied}
	proc := &fakeProcessor{}
	w := newTestCaptureWorker(cam, proc)

	stop := w.captureCycle(context.Background(), testLog())
	if !stop {
		t.Fatal("mất quyền camera phải dừng hẳn worker")
	}
	if proc.batches != 0 {
		t.Errorf("không có frame thì không được upload, batches = %d", proc.batches)
	}
}

func TestCaptureCycle_TransientErrorContinues(t *testing.T) {
	cam := &fakeCamera{err: common.ErrCameraTimeout}
	w := newTestCaptureWorker(cam, &fakeProcessor{})

	stop := w.captureCycle(context.Background(), testLog())
	if stop {
		t.Fatal("lỗi thiết bị tạm thời chỉ bỏ qua chu kỳ này, không dừng worker")
	}
	st := w.Status()
	if st.LastOutcome == "" {
		t.Error("kết quả chu kỳ lỗi phải được ghi lại")
	}
}

func TestCaptureCycle_LocationFailureSkipsCycle(t *testing.T) {
	cam := &fakeCamera{}
	proc := &fakeProcessor{accepted: true}
	w := newTestCaptureWorker(cam, proc)
	w.locations = &fakeFix{err: common.ErrLocationTimeout}

	stop := w.captureCycle(context.Background(), testLog())
	if stop {
		t.Fatal("thiếu vị trí chỉ bỏ qua chu kỳ này, không dừng worker")
	}
	if cam.calls != 0 {
		t.Errorf("không có vị trí thì không được mở camera, calls = %d", cam.calls)
	}
	if proc.batches != 0 {
		t.Errorf("không có frame thì không được upload, batches = %d", proc.batches)
	}
	st := w.Status()
	if st.LastOutcome == "" || st.LastOutcome == "done" {
		t.Errorf("outcome = %q, muốn ghi nhận lỗi vị trí", st.LastOutcome)
	}
}

func TestCaptureCycle_UploadFailureRecordsOutcome(t *testing.T) {
	w := newTestCaptureWorker(&fakeCamera{}, &fakeProcessor{accepted: false})

	stop := w.captureCycle(context.Background(), testLog())
	if stop {
		t.Fatal("upload lỗi không được dừng worker")
	}
	st := w.Status()
	if st.LastOutcome == "done" || st.LastOutcome == "" {
		t.Errorf("outcome = %q, muốn trạng thái lỗi kèm mã", st.LastOutcome)
	}
}

func TestFrameFileName(t *testing.T) {
	frame := &camera.Frame{
		SensorID:   "sensor-01",
		CapturedAt: time.Date(2026, 8, 29, 10, 30, 45, 0, time.UTC).UnixMilli(),
	}
	got := frameFileName(frame)
	want := "20260829_103045_sensor-01.jpg"
	if got != want {
		t.Errorf("frameFileName = %q, muốn %q", got, want)
	}
}
