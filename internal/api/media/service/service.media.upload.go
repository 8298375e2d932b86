package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"sand_score/config"
	"sand_score/internal/api/media/dto"
	"sand_score/internal/api/media/models"
	"sand_score/internal/common"
	"sand_score/internal/location"
	"sand_score/internal/logger"
	"sand_score/internal/storage"
)

// Trọng số tiến độ của từng bước trong pipeline một file.
// Upload object chiếm nửa tiến độ vì là bước nặng nhất.
const (
	progressAfterUpload   = 50.0
	progressAfterURL      = 62.5
	progressAfterLocation = 75.0
	progressAfterMetadata = 100.0
)

// BatchFile là một file đã qua được bước kiểm tra, kèm nội dung.
type BatchFile struct {
	Meta IncomingFile
	Data []byte
}

// AssetStore là phần của asset service mà coordinator cần.
type AssetStore interface {
	Create(ctx context.Context, asset models.MediaAsset) error
	SetStatus(ctx context.Context, assetID string, status string) error
	AttachObject(ctx context.Context, assetID string, objectKey string, downloadURL string) error
	AttachLocation(ctx context.Context, assetID string, fix *location.GeoFix) error
	MarkDone(ctx context.Context, assetID string) error
	MarkFailed(ctx context.Context, assetID string, stage string, code string) error
	FindByAssetID(ctx context.Context, assetID string) (models.MediaAsset, error)
	Delete(ctx context.Context, assetID string) error
}

// AnalysisRequester yêu cầu phân tích một ảnh đã upload.
type AnalysisRequester interface {
	RequestAnalysis(ctx context.Context, uploadID string, imageURL string, captureType string) (string, *models.GrainStats, error)
	RetryAnalysis(ctx context.Context, uploadID string) (string, *models.GrainStats, error)
}

// AnalysisRecorder ghi lại các lượt phân tích vào database.
type AnalysisRecorder interface {
	RecordRequested(ctx context.Context, uploadID string, captureType string) error
	RecordOutcome(ctx context.Context, uploadID string, status string, result *models.GrainStats, errMsg string) error
	MarkRetry(ctx context.Context, uploadID string) error
	DeleteByUploadID(ctx context.Context, uploadID string) error
}

// UploadCoordinator điều phối pipeline upload cho một batch file.
// Các file xử lý tuần tự; pipeline ghi theo từng bước và không
// rollback: bước sau lỗi thì các bước trước vẫn giữ nguyên kết quả.
type UploadCoordinator struct {
	validator *MediaValidator
	assets    AssetStore
	storage   storage.ObjectStorage
	locations location.Source
	analysis  AnalysisRequester
	records   AnalysisRecorder
	log       *logrus.Logger
}

// NewUploadCoordinator khởi tạo coordinator với đầy đủ dependencies.
func NewUploadCoordinator(
	cfg *config.Configuration,
	assets AssetStore,
	objStorage storage.ObjectStorage,
	locations location.Source,
	analysisClient AnalysisRequester,
	records AnalysisRecorder,
) *UploadCoordinator {
	return &UploadCoordinator{
		validator: NewMediaValidator(cfg),
		assets:    assets,
		storage:   objStorage,
		locations: locations,
		analysis:  analysisClient,
		records:   records,
		log:       logger.GetAppLogger(),
	}
}

// BatchRun là handle theo dõi một batch đang chạy.
type BatchRun struct {
	events chan dto.ProgressEvent
	done   chan struct{}
	result *dto.UploadBatchResult
}

// Events trả về kênh sự kiện tiến độ. Kênh được đóng khi batch xong.
func (r *BatchRun) Events() <-chan dto.ProgressEvent {
	return r.events
}

// Wait chờ batch hoàn tất và trả về kết quả tổng hợp.
func (r *BatchRun) Wait() *dto.UploadBatchResult {
	<-r.done
	return r.result
}

// emit gửi sự kiện tiến độ không chặn: batch không bao giờ chờ consumer
// đọc kịp, sự kiện bị bỏ khi buffer đầy.
func (r *BatchRun) emit(ev dto.ProgressEvent) {
	select {
	case r.events <- ev:
	default:
	}
}

// StartBatch bắt đầu xử lý batch trong goroutine riêng.
// ctx hủy là tín hiệu hủy hợp tác: file đang xử lý dở được chạy nốt,
// các file chưa bắt đầu bị đánh dấu cancelled.
func (c *UploadCoordinator) StartBatch(ctx context.Context, files []BatchFile, captureType string, sensorID string, triggerID string) *BatchRun {
	run := &BatchRun{
		events: make(chan dto.ProgressEvent, 64),
		done:   make(chan struct{}),
	}

	go func() {
		defer close(run.done)
		defer close(run.events)
		run.result = c.processBatch(ctx, run, files, captureType, sensorID, triggerID)
	}()

	return run
}

// ProcessBatchSync xử lý batch đồng bộ, bỏ qua sự kiện tiến độ.
// Dùng cho các worker capture tự động (không có ai xem tiến độ).
func (c *UploadCoordinator) ProcessBatchSync(ctx context.Context, files []BatchFile, captureType string, sensorID string, triggerID string) *dto.UploadBatchResult {
	run := c.StartBatch(ctx, files, captureType, sensorID, triggerID)
	for range run.Events() {
		// drain
	}
	return run.Wait()
}

// processBatch chạy toàn bộ batch: lấy vị trí, kiểm tra, rồi xử lý
// tuần tự từng file.
func (c *UploadCoordinator) processBatch(ctx context.Context, run *BatchRun, files []BatchFile, captureType string, sensorID string, triggerID string) *dto.UploadBatchResult {
	// Vị trí là bắt buộc cho mọi ảnh: lấy fix một lần cho cả batch
	// trước khi đụng tới file nào. Không có fix thì batch dừng tại
	// đây — không tạo bản ghi, không chạy bước kiểm tra file.
	fix, fixErr := c.locations.CurrentFix(ctx)
	if fixErr != nil {
		code := errorCode(fixErr)
		result := &dto.UploadBatchResult{}
		for _, f := range files {
			run.emit(dto.ProgressEvent{
				FileName: f.Meta.Name, Stage: models.UploadStatusFailed,
				Total: len(files), Message: fixErr.Error(),
			})
			result.Items = append(result.Items, dto.UploadResultItem{
				FileName:     f.Meta.Name,
				Status:       models.UploadStatusFailed,
				FailureStage: models.UploadStatusAcquiringLocation,
				FailureCode:  code,
			})
			result.Failed++
		}
		c.log.WithFields(logrus.Fields{
			"step": "location", "code": code, "files": len(files), "error": fixErr.Error(),
		}).Warn("📤 [UPLOAD_BATCH] Không lấy được vị trí, toàn bộ batch dừng")
		return result
	}

	metas := make([]IncomingFile, len(files))
	for i, f := range files {
		metas[i] = f.Meta
	}
	batchVerdict := c.validator.ValidateBatch(metas)

	result := &dto.UploadBatchResult{Warning: batchVerdict.Warning}
	total := len(batchVerdict.Verdicts)

	// permissionLost bật khi gặp lỗi quyền: các file còn lại bị hủy
	// vì quyền không tự quay lại giữa batch.
	permissionLost := false

	for i, verdict := range batchVerdict.Verdicts {
		item := dto.UploadResultItem{FileName: verdict.File.Name}

		if !verdict.Accepted {
			item.Status = models.UploadStatusRejected
			item.RejectReason = verdict.Reason
			result.Items = append(result.Items, item)
			result.Rejected++
			run.emit(dto.ProgressEvent{
				FileName: verdict.File.Name, Stage: models.UploadStatusRejected,
				Index: i, Total: total, Message: verdict.Reason,
			})
			continue
		}

		if permissionLost || ctx.Err() != nil {
			item.Status = "cancelled"
			result.Items = append(result.Items, item)
			result.Cancelled++
			continue
		}

		// File đang xử lý dở luôn được chạy nốt kể cả khi batch bị hủy:
		// hủy giữa chừng một file sẽ để lại trạng thái khó đoán hơn là
		// chờ thêm vài giây.
		fileCtx := context.WithoutCancel(ctx)
		processed := c.processFile(fileCtx, run, files[i], fix, captureType, sensorID, triggerID, i, total)

		result.Items = append(result.Items, processed)
		switch processed.Status {
		case models.UploadStatusDone:
			result.Accepted++
		default:
			result.Failed++
			if isPermissionError(processed.FailureCode) {
				permissionLost = true
			}
		}
	}

	c.log.WithFields(logrus.Fields{
		"step":      "batch_done",
		"accepted":  result.Accepted,
		"rejected":  result.Rejected,
		"failed":    result.Failed,
		"cancelled": result.Cancelled,
	}).Info("📤 [UPLOAD_BATCH] Batch hoàn tất")

	return result
}

// processFile chạy pipeline đầy đủ cho một file đã qua kiểm tra.
// fix là vị trí đã lấy sẵn ở đầu batch, không bao giờ nil.
func (c *UploadCoordinator) processFile(ctx context.Context, run *BatchRun, file BatchFile, fix *location.GeoFix, captureType string, sensorID string, triggerID string, index int, total int) dto.UploadResultItem {
	assetID := uuid.NewString()
	item := dto.UploadResultItem{AssetID: assetID, FileName: file.Meta.Name}

	checksum := sha256.Sum256(file.Data)
	asset := models.MediaAsset{
		AssetID:     assetID,
		FileName:    file.Meta.Name,
		FileSize:    file.Meta.Size,
		MimeType:    file.Meta.MimeType,
		Checksum:    hex.EncodeToString(checksum[:]),
		CaptureType: captureType,
		SensorID:    sensorID,
		TriggerID:   triggerID,
		Status:      models.UploadStatusUploadingObject,
	}

	emit := func(stage string, percent float64, msg string) {
		run.emit(dto.ProgressEvent{
			AssetID: assetID, FileName: file.Meta.Name,
			Stage: stage, Percent: percent, Index: index, Total: total, Message: msg,
		})
	}

	fail := func(stage string, err error) dto.UploadResultItem {
		code := errorCode(err)
		item.Status = models.UploadStatusFailed
		item.FailureStage = stage
		item.FailureCode = code
		emit(models.UploadStatusFailed, 0, err.Error())

		if dbErr := c.assets.MarkFailed(ctx, assetID, stage, code); dbErr != nil {
			c.log.WithFields(logrus.Fields{
				"step": "mark_failed", "assetId": assetID, "error": dbErr.Error(),
			}).Error("📤 [UPLOAD_BATCH] Không ghi được trạng thái lỗi của asset")
		}

		c.log.WithFields(logrus.Fields{
			"step": stage, "assetId": assetID, "code": code, "error": err.Error(),
		}).Warn("📤 [UPLOAD_BATCH] File dừng giữa pipeline")
		return item
	}

	if err := c.assets.Create(ctx, asset); err != nil {
		// Chưa có bản ghi asset thì không có gì để đánh dấu failed
		item.Status = models.UploadStatusFailed
		item.FailureStage = models.UploadStatusPersistingMetadata
		item.FailureCode = errorCode(err)
		emit(models.UploadStatusFailed, 0, err.Error())
		return item
	}

	// Bước 1: ghi object lên storage
	emit(models.UploadStatusUploadingObject, 0, "")
	objectKey := objectKeyFor(assetID, file.Meta)
	if err := c.storage.Upload(ctx, objectKey, file.Meta.MimeType, bytes.NewReader(file.Data)); err != nil {
		return fail(models.UploadStatusUploadingObject, err)
	}
	emit(models.UploadStatusUploadingObject, progressAfterUpload, "")

	// Bước 2: resolve download URL
	if err := c.assets.SetStatus(ctx, assetID, models.UploadStatusResolvingURL); err != nil {
		return fail(models.UploadStatusResolvingURL, err)
	}
	downloadURL, err := c.storage.PublicURL(objectKey)
	if err != nil {
		return fail(models.UploadStatusResolvingURL, err)
	}
	if err := c.assets.AttachObject(ctx, assetID, objectKey, downloadURL); err != nil {
		return fail(models.UploadStatusResolvingURL, err)
	}
	item.DownloadURL = downloadURL
	emit(models.UploadStatusResolvingURL, progressAfterURL, "")

	// Bước 3: gắn vị trí GPS đã lấy sẵn ở đầu batch
	if err := c.assets.SetStatus(ctx, assetID, models.UploadStatusAcquiringLocation); err != nil {
		return fail(models.UploadStatusAcquiringLocation, err)
	}
	if err := c.assets.AttachLocation(ctx, assetID, fix); err != nil {
		return fail(models.UploadStatusAcquiringLocation, err)
	}
	emit(models.UploadStatusAcquiringLocation, progressAfterLocation, "")

	// Bước 4: hoàn tất metadata
	if err := c.assets.SetStatus(ctx, assetID, models.UploadStatusPersistingMetadata); err != nil {
		return fail(models.UploadStatusPersistingMetadata, err)
	}
	emit(models.UploadStatusPersistingMetadata, progressAfterMetadata, "")

	// Bước 5: yêu cầu phân tích. Analysis service không tin cậy:
	// lỗi ở đây không làm mất ảnh đã lưu, chỉ ghi record failed để
	// người dùng retry sau.
	c.requestAnalysis(ctx, assetID, downloadURL, captureType)

	if err := c.assets.MarkDone(ctx, assetID); err != nil {
		return fail(models.UploadStatusTriggeringAnalysis, err)
	}

	item.Status = models.UploadStatusDone
	emit(models.UploadStatusDone, progressAfterMetadata, "")
	return item
}

// requestAnalysis gọi analysis service và ghi record kết quả.
func (c *UploadCoordinator) requestAnalysis(ctx context.Context, assetID string, downloadURL string, captureType string) {
	if err := c.records.RecordRequested(ctx, assetID, captureType); err != nil {
		c.log.WithFields(logrus.Fields{
			"step": "analysis_record", "assetId": assetID, "error": err.Error(),
		}).Error("📤 [UPLOAD_BATCH] Không tạo được analysis record")
		return
	}

	status, stats, err := c.analysis.RequestAnalysis(ctx, assetID, downloadURL, captureType)
	if err != nil {
		if recErr := c.records.RecordOutcome(ctx, assetID, models.AnalysisStatusFailed, nil, err.Error()); recErr != nil {
			c.log.WithFields(logrus.Fields{
				"step": "analysis_record", "assetId": assetID, "error": recErr.Error(),
			}).Error("📤 [UPLOAD_BATCH] Không ghi được kết quả phân tích lỗi")
		}
		c.log.WithFields(logrus.Fields{
			"step": "analysis", "assetId": assetID, "error": err.Error(),
		}).Warn("📤 [UPLOAD_BATCH] Yêu cầu phân tích thất bại, ảnh vẫn được lưu")
		return
	}

	recordStatus := models.AnalysisStatusPending
	switch status {
	case models.AnalysisStatusCompleted, models.AnalysisStatusProcessing, models.AnalysisStatusFailed:
		recordStatus = status
	}
	if stats != nil {
		recordStatus = models.AnalysisStatusCompleted
	}

	if err := c.records.RecordOutcome(ctx, assetID, recordStatus, stats, ""); err != nil {
		c.log.WithFields(logrus.Fields{
			"step": "analysis_record", "assetId": assetID, "error": err.Error(),
		}).Error("📤 [UPLOAD_BATCH] Không ghi được kết quả phân tích")
	}
}

// RetryAnalysis yêu cầu phân tích lại một upload đã hoàn tất.
// Record hiện tại được reset về pending và tăng retryCount trước khi
// gọi service; kết quả (thành công hay lỗi) ghi đè lên record đó.
func (c *UploadCoordinator) RetryAnalysis(ctx context.Context, assetID string) (string, *models.GrainStats, error) {
	asset, err := c.assets.FindByAssetID(ctx, assetID)
	if err != nil {
		return "", nil, err
	}
	if asset.DownloadURL == "" {
		return "", nil, common.NewError(common.ErrCodeBusinessState, "Upload chưa có ảnh trên storage, không thể phân tích", common.StatusConflict, assetID)
	}

	if err := c.records.MarkRetry(ctx, assetID); err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			return "", nil, err
		}
		// Upload cũ chưa từng có record (lỗi trước khi kịp ghi): tạo mới
		if err := c.records.RecordRequested(ctx, assetID, asset.CaptureType); err != nil {
			return "", nil, err
		}
	}

	status, stats, err := c.analysis.RetryAnalysis(ctx, assetID)
	if err != nil {
		if recErr := c.records.RecordOutcome(ctx, assetID, models.AnalysisStatusFailed, nil, err.Error()); recErr != nil {
			c.log.WithFields(logrus.Fields{
				"step": "analysis_record", "assetId": assetID, "error": recErr.Error(),
			}).Error("📤 [UPLOAD_BATCH] Không ghi được kết quả phân tích lỗi")
		}
		return "", nil, err
	}

	recordStatus := models.AnalysisStatusPending
	switch status {
	case models.AnalysisStatusCompleted, models.AnalysisStatusProcessing, models.AnalysisStatusFailed:
		recordStatus = status
	}
	if stats != nil {
		recordStatus = models.AnalysisStatusCompleted
	}
	if err := c.records.RecordOutcome(ctx, assetID, recordStatus, stats, ""); err != nil {
		return "", nil, err
	}
	return recordStatus, stats, nil
}

// DeleteUpload xoá một upload theo yêu cầu người dùng: object trên
// storage trước, rồi mới tới bản ghi. Xoá object lỗi thì giữ nguyên
// bản ghi để người dùng thử lại, không để lại bản ghi trỏ vào object
// đã mất.
func (c *UploadCoordinator) DeleteUpload(ctx context.Context, assetID string) error {
	asset, err := c.assets.FindByAssetID(ctx, assetID)
	if err != nil {
		return err
	}

	if asset.ObjectKey != "" {
		if err := c.storage.Delete(ctx, asset.ObjectKey); err != nil {
			c.log.WithFields(logrus.Fields{
				"step": "delete_object", "assetId": assetID, "objectKey": asset.ObjectKey, "error": err.Error(),
			}).Error("📤 [UPLOAD_BATCH] Không xoá được object trên storage")
			return err
		}
	}

	if err := c.records.DeleteByUploadID(ctx, assetID); err != nil {
		c.log.WithFields(logrus.Fields{
			"step": "delete_record", "assetId": assetID, "error": err.Error(),
		}).Warn("📤 [UPLOAD_BATCH] Không xoá được analysis record của upload")
	}

	if err := c.assets.Delete(ctx, assetID); err != nil {
		return err
	}

	c.log.WithFields(logrus.Fields{
		"step": "delete_done", "assetId": assetID,
	}).Info("📤 [UPLOAD_BATCH] Đã xoá upload và object kèm theo")
	return nil
}

// objectKeyFor sinh object key ổn định từ assetID và tên file gốc.
func objectKeyFor(assetID string, meta IncomingFile) string {
	ext := strings.ToLower(filepath.Ext(meta.Name))
	if ext == "" {
		ext = extFromMime(meta.MimeType)
	}
	return fmt.Sprintf("uploads/%s%s", assetID, ext)
}

// extFromMime suy ra extension từ MIME type của các định dạng hỗ trợ.
func extFromMime(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ""
	}
}

// errorCode rút mã lỗi từ *common.Error, mặc định SYS_001.
func errorCode(err error) string {
	var appErr *common.Error
	if errors.As(err, &appErr) {
		return appErr.Code.Code
	}
	return common.ErrCodeInternalServer.Code
}

// isPermissionError kiểm tra mã lỗi thuộc nhóm quyền (PERM_xxx).
func isPermissionError(code string) bool {
	return strings.HasPrefix(code, "PERM")
}
