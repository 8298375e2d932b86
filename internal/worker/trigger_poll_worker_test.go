// Package worker - Test TriggerPollWorker: CAS claim chỉ một instance
// thắng, claim một chiều, nhật ký hoạt động có giới hạn.
package worker

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"sand_score/config"
	"sand_score/internal/api/media/dto"
	"sand_score/internal/api/media/models"
	mediasvc "sand_score/internal/api/media/service"
	"sand_score/internal/camera"
	"sand_score/internal/common"
	"sand_score/internal/location"
)

// ===== FAKES =====

// memTriggerSource giữ trigger trong bộ nhớ với đúng ngữ nghĩa CAS của
// Claim: compare-and-set consumed false -> true, thua trả ErrClaimLost.
type memTriggerSource struct {
	mu       sync.Mutex
	triggers map[primitive.ObjectID]*models.CaptureTrigger
	claimErr error
}

func newMemTriggerSource() *memTriggerSource {
	return &memTriggerSource{triggers: make(map[primitive.ObjectID]*models.CaptureTrigger)}
}

func (s *memTriggerSource) add(sensorID string) primitive.ObjectID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := primitive.NewObjectID()
	s.triggers[id] = &models.CaptureTrigger{ID: id, Signal: models.TriggerSignalYes, SensorID: sensorID}
	return id
}

func (s *memTriggerSource) FindPending(ctx context.Context, limit int64) ([]models.CaptureTrigger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.CaptureTrigger
	for _, t := range s.triggers {
		if !t.Consumed && int64(len(out)) < limit {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *memTriggerSource) Claim(ctx context.Context, id primitive.ObjectID, claimedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimErr != nil {
		return s.claimErr
	}
	t, ok := s.triggers[id]
	if !ok || t.Consumed {
		return common.ErrClaimLost
	}
	t.Consumed = true
	t.ConsumedBy = claimedBy
	return nil
}

func (s *memTriggerSource) consumed(id primitive.ObjectID) (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.triggers[id]
	return t.Consumed, t.ConsumedBy
}

type fakeCamera struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (c *fakeCamera) Capture(ctx context.Context) (*camera.Frame, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return &camera.Frame{Data: []byte("frame"), MimeType: "image/jpeg", SensorID: "sensor-01", CapturedAt: 1700000000000}, nil
}

func (c *fakeCamera) captureCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// fakeFix là nguồn vị trí trong bộ nhớ cho test worker.
type fakeFix struct {
	err   error
	calls int
}

func (f *fakeFix) CurrentFix(ctx context.Context) (*location.GeoFix, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &location.GeoFix{Latitude: 12.9, Longitude: 74.8, FixedAt: 1}, nil
}

type fakeProcessor struct {
	mu       sync.Mutex
	batches  int
	accepted bool
	lastType string
	lastTrig string
}

func (p *fakeProcessor) ProcessBatchSync(ctx context.Context, files []mediasvc.BatchFile, captureType string, sensorID string, triggerID string) *dto.UploadBatchResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches++
	p.lastType = captureType
	p.lastTrig = triggerID
	if p.accepted {
		return &dto.UploadBatchResult{
			Items:    []dto.UploadResultItem{{Status: models.UploadStatusDone}},
			Accepted: 1,
		}
	}
	return &dto.UploadBatchResult{
		Items:  []dto.UploadResultItem{{Status: models.UploadStatusFailed, FailureCode: common.ErrCodeNetworkStorage.Code}},
		Failed: 1,
	}
}

// ===== HELPERS =====

// testLog tạo logger câm cho test, không chạm vào file log.
func testLog() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestPoller(src *memTriggerSource, cam *fakeCamera, proc *fakeProcessor, instanceID string) *TriggerPollWorker {
	cfg := &config.Configuration{
		TriggerPollInterval: 10,
		TriggerPollBatch:    5,
		TriggerActivityCap:  5,
		CameraSensorID:      "default-sensor",
	}
	return NewTriggerPollWorker(cfg, src, proc, cam, &fakeFix{}, instanceID)
}

func hasOutcome(activity []TriggerActivity, triggerID string, outcome string) bool {
	for _, a := range activity {
		if a.TriggerID == triggerID && a.Outcome == outcome {
			return true
		}
	}
	return false
}

// ===== TESTS =====

func TestHandleTrigger_HappyPath(t *testing.T) {
	src := newMemTriggerSource()
	cam := &fakeCamera{}
	proc := &fakeProcessor{accepted: true}
	w := newTestPoller(src, cam, proc, "instance-a")

	id := src.add("sensor-01")
	w.pollOnce(context.Background(), testLog())

	done, by := src.consumed(id)
	if !done || by != "instance-a" {
		t.Fatalf("trigger phải được consumed bởi instance-a, được %v/%q", done, by)
	}
	if proc.batches != 1 || proc.lastType != models.CaptureTypeTriggered || proc.lastTrig != id.Hex() {
		t.Errorf("batch = %d type = %q trigger = %q", proc.batches, proc.lastType, proc.lastTrig)
	}
	activity := w.Activity()
	if !hasOutcome(activity, id.Hex(), "claimed") || !hasOutcome(activity, id.Hex(), "captured") {
		t.Errorf("nhật ký thiếu claimed/captured: %+v", activity)
	}
}

func TestHandleTrigger_ExactlyOneWinner(t *testing.T) {
	src := newMemTriggerSource()
	id := src.add("sensor-01")
	trigger := models.CaptureTrigger{ID: id, Signal: models.TriggerSignalYes, SensorID: "sensor-01"}

	camA, camB := &fakeCamera{}, &fakeCamera{}
	wA := newTestPoller(src, camA, &fakeProcessor{accepted: true}, "instance-a")
	wB := newTestPoller(src, camB, &fakeProcessor{accepted: true}, "instance-b")

	// Hai instance cùng thấy một trigger chưa consumed
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		wA.handleTrigger(context.Background(), testLog(), trigger)
	}()
	go func() {
		defer wg.Done()
		wB.handleTrigger(context.Background(), testLog(), trigger)
	}()
	wg.Wait()

	// Đúng một instance chụp, instance thua ghi claim-lost và không chụp
	captures := camA.captureCount() + camB.captureCount()
	if captures != 1 {
		t.Fatalf("có %d lần chụp, muốn đúng 1", captures)
	}
	lostA := hasOutcome(wA.Activity(), id.Hex(), "claim-lost")
	lostB := hasOutcome(wB.Activity(), id.Hex(), "claim-lost")
	if lostA == lostB {
		t.Errorf("đúng một instance phải thua claim: a=%v b=%v", lostA, lostB)
	}
}

func TestHandleTrigger_CaptureFailureKeepsClaim(t *testing.T) {
	src := newMemTriggerSource()
	cam := &fakeCamera{err: common.ErrCameraTimeout}
	proc := &fakeProcessor{}
	w := newTestPoller(src, cam, proc, "instance-a")

	id := src.add("sensor-01")
	w.pollOnce(context.Background(), testLog())

	// Claim một chiều: chụp lỗi không trả lại trigger
	done, _ := src.consumed(id)
	if !done {
		t.Fatal("trigger phải vẫn consumed sau khi chụp lỗi")
	}
	if proc.batches != 0 {
		t.Errorf("không có frame thì không được gọi upload, batches = %d", proc.batches)
	}
	if !hasOutcome(w.Activity(), id.Hex(), "capture-failed") {
		t.Errorf("nhật ký thiếu capture-failed: %+v", w.Activity())
	}

	// Tick sau không thấy lại trigger này
	pending, _ := src.FindPending(context.Background(), 10)
	if len(pending) != 0 {
		t.Errorf("trigger consumed không được xuất hiện lại, pending = %d", len(pending))
	}
}

func TestHandleTrigger_LocationFailureSkipsCapture(t *testing.T) {
	src := newMemTriggerSource()
	cam := &fakeCamera{}
	proc := &fakeProcessor{accepted: true}
	w := newTestPoller(src, cam, proc, "instance-a")
	w.locations = &fakeFix{err: common.ErrLocationTimeout}

	id := src.add("sensor-01")
	w.pollOnce(context.Background(), testLog())

	// Thiếu vị trí thì không mở camera, không upload; claim vẫn một chiều
	if cam.captureCount() != 0 {
		t.Errorf("camera bị gọi %d lần, muốn 0", cam.captureCount())
	}
	if proc.batches != 0 {
		t.Errorf("upload bị gọi %d lần, muốn 0", proc.batches)
	}
	done, _ := src.consumed(id)
	if !done {
		t.Error("trigger phải vẫn consumed sau lỗi vị trí")
	}
	if !hasOutcome(w.Activity(), id.Hex(), "location-failed") {
		t.Errorf("nhật ký thiếu location-failed: %+v", w.Activity())
	}
}

func TestHandleTrigger_UploadFailureRecorded(t *testing.T) {
	src := newMemTriggerSource()
	w := newTestPoller(src, &fakeCamera{}, &fakeProcessor{accepted: false}, "instance-a")

	id := src.add("sensor-01")
	w.pollOnce(context.Background(), testLog())

	activity := w.Activity()
	if !hasOutcome(activity, id.Hex(), "upload-failed") {
		t.Fatalf("nhật ký thiếu upload-failed: %+v", activity)
	}
}

func TestActivity_CapAndOrder(t *testing.T) {
	w := newTestPoller(newMemTriggerSource(), &fakeCamera{}, &fakeProcessor{}, "instance-a")

	// Cap = 5 (config test): ghi 8 dòng thì chỉ giữ 5 dòng mới nhất
	for i := 0; i < 8; i++ {
		w.record(fmt.Sprintf("trigger-%d", i), "claimed", "")
	}

	activity := w.Activity()
	if len(activity) != 5 {
		t.Fatalf("nhật ký có %d dòng, muốn 5", len(activity))
	}
	// Mới nhất trước: trigger-7 đứng đầu, trigger-3 cuối
	if activity[0].TriggerID != "trigger-7" {
		t.Errorf("dòng đầu = %q, muốn trigger-7", activity[0].TriggerID)
	}
	if activity[4].TriggerID != "trigger-3" {
		t.Errorf("dòng cuối = %q, muốn trigger-3", activity[4].TriggerID)
	}
}

func TestActivity_ReturnsCopy(t *testing.T) {
	w := newTestPoller(newMemTriggerSource(), &fakeCamera{}, &fakeProcessor{}, "instance-a")
	w.record("trigger-x", "claimed", "")

	activity := w.Activity()
	activity[0].Outcome = "đã sửa"

	if w.Activity()[0].Outcome != "claimed" {
		t.Error("Activity phải trả về bản copy, không phải slice nội bộ")
	}
}

func TestHandleTrigger_ClaimErrorRecorded(t *testing.T) {
	src := newMemTriggerSource()
	src.claimErr = common.ErrMongoWrite
	w := newTestPoller(src, &fakeCamera{}, &fakeProcessor{}, "instance-a")

	id := src.add("sensor-01")
	w.pollOnce(context.Background(), testLog())

	if !hasOutcome(w.Activity(), id.Hex(), "claim-failed") {
		t.Errorf("lỗi DB khi claim phải ghi claim-failed: %+v", w.Activity())
	}
}
