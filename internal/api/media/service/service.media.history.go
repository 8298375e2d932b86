package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"sand_score/config"
	"sand_score/internal/analysis"
	basemodels "sand_score/internal/api/base/models"
	"sand_score/internal/api/media/dto"
	"sand_score/internal/api/media/models"
	"sand_score/internal/common"
	"sand_score/internal/global"
	"sand_score/internal/logger"
)

// refreshListLimit là số record tối đa lấy từ analysis service khi
// client yêu cầu đồng bộ danh sách.
const refreshListLimit = 100

// AnalysisLister là phần của analysis client mà dashboard cần khi
// đồng bộ danh sách kết quả từ service.
type AnalysisLister interface {
	ListAnalyses(ctx context.Context, limit int) []analysis.AnalysisSummary
}

// HistoryService ghép lịch sử upload với kết quả phân tích tương ứng.
// Nguồn dữ liệu chính là database; analysis service chỉ được hỏi khi
// client chủ động yêu cầu refresh danh sách.
type HistoryService struct {
	assets   *MediaAssetService
	records  *AnalysisRecordService
	analysis AnalysisLister
	location *time.Location
	log      *logrus.Logger
}

// NewHistoryService khởi tạo history service.
// Timezone hiển thị cố định theo cấu hình, không theo máy chạy server.
func NewHistoryService(cfg *config.Configuration, assets *MediaAssetService, records *AnalysisRecordService, lister AnalysisLister) *HistoryService {
	loc, err := time.LoadLocation(cfg.DisplayTimezone)
	if err != nil {
		logger.GetAppLogger().WithFields(logrus.Fields{
			"timezone": cfg.DisplayTimezone, "error": err.Error(),
		}).Warn("Không load được display timezone, dùng UTC")
		loc = time.UTC
	}
	return &HistoryService{
		assets:   assets,
		records:  records,
		analysis: lister,
		location: loc,
		log:      logger.GetAppLogger(),
	}
}

// List trả về một trang lịch sử upload, mới nhất trước, mỗi dòng kèm
// kết quả phân tích nếu đã có. Lỗi đọc analysis record không làm fail
// cả trang: các dòng chỉ thiếu phần phân tích.
func (s *HistoryService) List(ctx context.Context, input *dto.HistoryQueryInput) (*basemodels.PaginateResult[dto.HistoryItem], error) {
	if input.CaptureType != "" {
		if err := global.Validate.Var(input.CaptureType, "capture_type"); err != nil {
			return nil, common.NewError(common.ErrCodeValidationInput, "captureType không hợp lệ", common.StatusBadRequest, input.CaptureType)
		}
	}

	page, err := s.assets.FindHistory(ctx, input.CaptureType, input.Status, input.Page, input.Limit)
	if err != nil {
		return nil, err
	}

	uploadIDs := make([]string, 0, len(page.Items))
	for _, asset := range page.Items {
		uploadIDs = append(uploadIDs, asset.AssetID)
	}

	recordsByUpload, err := s.records.FindByUploadIDs(ctx, uploadIDs)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"step": "history", "error": err.Error(),
		}).Warn("Không đọc được analysis records, lịch sử trả về không kèm phân tích")
		recordsByUpload = map[string]models.AnalysisRecord{}
	}

	items := make([]dto.HistoryItem, 0, len(page.Items))
	for _, asset := range page.Items {
		item := dto.HistoryItem{
			AssetID:      asset.AssetID,
			FileName:     asset.FileName,
			FileSize:     asset.FileSize,
			MimeType:     asset.MimeType,
			CaptureType:  asset.CaptureType,
			Status:       asset.Status,
			DownloadURL:  asset.DownloadURL,
			Location:     asset.Location,
			UploadedAt:   s.formatTimestamp(asset.CreatedAt),
			UploadedAtMs: asset.CreatedAt,
		}
		if record, ok := recordsByUpload[asset.AssetID]; ok {
			item.Analysis = record.Result
			item.AnalysisStatus = record.Status
		}
		items = append(items, item)
	}

	return &basemodels.PaginateResult[dto.HistoryItem]{
		Items:     items,
		Page:      page.Page,
		Limit:     page.Limit,
		ItemCount: int64(len(items)),
		Total:     page.Total,
		TotalPage: page.TotalPage,
	}, nil
}

// Detail trả về một dòng lịch sử theo assetId.
func (s *HistoryService) Detail(ctx context.Context, assetID string) (*dto.HistoryItem, error) {
	asset, err := s.assets.FindByAssetID(ctx, assetID)
	if err != nil {
		return nil, err
	}

	item := &dto.HistoryItem{
		AssetID:      asset.AssetID,
		FileName:     asset.FileName,
		FileSize:     asset.FileSize,
		MimeType:     asset.MimeType,
		CaptureType:  asset.CaptureType,
		Status:       asset.Status,
		DownloadURL:  asset.DownloadURL,
		Location:     asset.Location,
		UploadedAt:   s.formatTimestamp(asset.CreatedAt),
		UploadedAtMs: asset.CreatedAt,
	}

	record, err := s.records.FindByUploadID(ctx, assetID)
	if err == nil {
		item.Analysis = record.Result
		item.AnalysisStatus = record.Status
	}
	return item, nil
}

// Analyses trả về trang kết quả phân tích cho dashboard, cập nhật gần
// nhất trước, mỗi dòng kèm thông tin upload tương ứng.
// refresh=true thì đồng bộ trạng thái từ analysis service trước khi
// đọc; service chết không làm fail trang, dữ liệu database vẫn trả về.
func (s *HistoryService) Analyses(ctx context.Context, input *dto.AnalysisQueryInput) (*basemodels.PaginateResult[dto.AnalysisListItem], error) {
	if input.Refresh {
		s.refreshFromService(ctx)
	}

	page, err := s.records.FindRecent(ctx, input.Status, input.Page, input.Limit)
	if err != nil {
		return nil, err
	}

	uploadIDs := make([]string, 0, len(page.Items))
	for _, record := range page.Items {
		uploadIDs = append(uploadIDs, record.UploadID)
	}

	assetsByID, err := s.assets.FindByAssetIDs(ctx, uploadIDs)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"step": "analyses", "error": err.Error(),
		}).Warn("Không đọc được assets, danh sách phân tích trả về không kèm thông tin upload")
		assetsByID = map[string]models.MediaAsset{}
	}

	items := make([]dto.AnalysisListItem, 0, len(page.Items))
	for _, record := range page.Items {
		item := dto.AnalysisListItem{
			AssetID:      record.UploadID,
			Status:       record.Status,
			CaptureType:  record.CaptureType,
			Result:       record.Result,
			ErrorMessage: record.ErrorMessage,
			RetryCount:   record.RetryCount,
			AnalyzedAt:   record.AnalyzedAt,
			UpdatedAtMs:  record.UpdatedAt,
			UpdatedAt:    s.formatTimestamp(record.UpdatedAt),
		}
		if asset, ok := assetsByID[record.UploadID]; ok {
			item.FileName = asset.FileName
			item.DownloadURL = asset.DownloadURL
		}
		items = append(items, item)
	}

	return &basemodels.PaginateResult[dto.AnalysisListItem]{
		Items:     items,
		Page:      page.Page,
		Limit:     page.Limit,
		ItemCount: int64(len(items)),
		Total:     page.Total,
		TotalPage: page.TotalPage,
	}, nil
}

// AnalysisDetail trả về kết quả phân tích của một upload.
func (s *HistoryService) AnalysisDetail(ctx context.Context, assetID string) (*dto.AnalysisListItem, error) {
	record, err := s.records.FindByUploadID(ctx, assetID)
	if err != nil {
		return nil, err
	}

	item := &dto.AnalysisListItem{
		AssetID:      record.UploadID,
		Status:       record.Status,
		CaptureType:  record.CaptureType,
		Result:       record.Result,
		ErrorMessage: record.ErrorMessage,
		RetryCount:   record.RetryCount,
		AnalyzedAt:   record.AnalyzedAt,
		UpdatedAtMs:  record.UpdatedAt,
		UpdatedAt:    s.formatTimestamp(record.UpdatedAt),
	}
	if asset, err := s.assets.FindByAssetID(ctx, assetID); err == nil {
		item.FileName = asset.FileName
		item.DownloadURL = asset.DownloadURL
	}
	return item, nil
}

// refreshFromService kéo trạng thái mới nhất từ analysis service về
// database. Chỉ ghi đè khi service biết nhiều hơn database: trạng thái
// khác đi hoặc có kết quả mà database chưa có. Record không tồn tại
// trong database bị bỏ qua (upload có thể đã xoá phía mình).
func (s *HistoryService) refreshFromService(ctx context.Context) {
	summaries := s.analysis.ListAnalyses(ctx, refreshListLimit)
	if len(summaries) == 0 {
		return
	}

	synced := 0
	for _, summary := range summaries {
		if summary.UploadID == "" || summary.Status == "" {
			continue
		}
		record, err := s.records.FindByUploadID(ctx, summary.UploadID)
		if err != nil {
			continue
		}
		if record.Status == summary.Status && (summary.Result == nil || record.Result != nil) {
			continue
		}
		// Trạng thái chỉ tiến, không lùi: service trả dữ liệu cũ hơn
		// database (ví dụ ngay sau khi retry reset về pending) thì bỏ qua
		if analysisStatusRank(summary.Status) < analysisStatusRank(record.Status) {
			continue
		}
		if err := s.records.SyncStatus(ctx, summary.UploadID, summary.Status, summary.Result); err != nil {
			s.log.WithFields(logrus.Fields{
				"step": "refresh", "uploadId": summary.UploadID, "error": err.Error(),
			}).Warn("Không đồng bộ được trạng thái phân tích")
			continue
		}
		synced++
	}

	if synced > 0 {
		s.log.WithFields(logrus.Fields{
			"step": "refresh", "synced": synced,
		}).Info("Đã đồng bộ trạng thái phân tích từ service")
	}
}

// analysisStatusRank xếp hạng trạng thái theo chiều tiến của pipeline
// phân tích. Trạng thái lạ xếp thấp nhất để không ghi đè dữ liệu đã có.
func analysisStatusRank(status string) int {
	switch status {
	case models.AnalysisStatusPending:
		return 1
	case models.AnalysisStatusProcessing:
		return 2
	case models.AnalysisStatusCompleted, models.AnalysisStatusFailed:
		return 3
	default:
		return 0
	}
}

// formatTimestamp render UnixMilli theo display timezone cố định.
func (s *HistoryService) formatTimestamp(ms int64) string {
	return time.UnixMilli(ms).In(s.location).Format("02/01/2006 15:04:05")
}
