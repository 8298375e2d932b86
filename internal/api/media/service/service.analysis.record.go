package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	basemodels "sand_score/internal/api/base/models"
	baseservice "sand_score/internal/api/base/service"
	"sand_score/internal/api/media/models"
	"sand_score/internal/common"
	"sand_score/internal/global"
)

// AnalysisRecordService quản lý collection grain_analysis.
type AnalysisRecordService struct {
	*baseservice.BaseServiceMongo[models.AnalysisRecord]
}

// NewAnalysisRecordService khởi tạo service với collection grain_analysis.
func NewAnalysisRecordService() (*AnalysisRecordService, error) {
	collection, exist := global.RegistryCollections.Get(global.MongoDB_ColNames.GrainAnalysis)
	if !exist {
		return nil, fmt.Errorf("failed to get %s collection", global.MongoDB_ColNames.GrainAnalysis)
	}
	return &AnalysisRecordService{
		BaseServiceMongo: baseservice.NewBaseServiceMongo[models.AnalysisRecord](collection),
	}, nil
}

// newAnalysisRecordServiceWithCol dùng cho test với collection tùy ý.
func newAnalysisRecordServiceWithCol(col *mongo.Collection) *AnalysisRecordService {
	return &AnalysisRecordService{
		BaseServiceMongo: baseservice.NewBaseServiceMongo[models.AnalysisRecord](col),
	}
}

// RecordRequested tạo (hoặc reset) record pending cho một upload.
// Upsert theo uploadId: retry phân tích dùng lại record cũ và tăng
// retryCount thay vì tạo record mới.
func (s *AnalysisRecordService) RecordRequested(ctx context.Context, uploadID string, captureType string) error {
	if uploadID == "" {
		return common.ErrRequiredField
	}
	now := time.Now().UnixMilli()

	_, err := s.Collection().UpdateOne(ctx,
		bson.M{"uploadId": uploadID},
		bson.M{
			"$set": bson.M{
				"status":       models.AnalysisStatusPending,
				"captureType":  captureType,
				"errorMessage": "",
				"updatedAt":    now,
			},
			"$setOnInsert": bson.M{
				"uploadId":   uploadID,
				"retryCount": 0,
				"createdAt":  now,
			},
		},
		options.Update().SetUpsert(true),
	)
	return common.ConvertMongoError(err)
}

// RecordOutcome ghi kết quả của lượt phân tích hiện tại.
func (s *AnalysisRecordService) RecordOutcome(ctx context.Context, uploadID string, status string, result *models.GrainStats, errMsg string) error {
	if uploadID == "" {
		return common.ErrRequiredField
	}
	now := time.Now().UnixMilli()

	fields := bson.M{
		"status":       status,
		"errorMessage": errMsg,
		"updatedAt":    now,
	}
	if result != nil {
		fields["result"] = result
		fields["analyzedAt"] = now
	}

	updateResult, err := s.Collection().UpdateOne(ctx,
		bson.M{"uploadId": uploadID},
		bson.M{"$set": fields},
	)
	if err != nil {
		return common.ConvertMongoError(err)
	}
	if updateResult.MatchedCount == 0 {
		return common.ErrNotFound
	}
	return nil
}

// MarkRetry tăng retryCount và chuyển record về pending trước khi
// yêu cầu phân tích lại.
func (s *AnalysisRecordService) MarkRetry(ctx context.Context, uploadID string) error {
	now := time.Now().UnixMilli()

	result, err := s.Collection().UpdateOne(ctx,
		bson.M{"uploadId": uploadID},
		bson.M{
			"$set": bson.M{
				"status":       models.AnalysisStatusPending,
				"errorMessage": "",
				"updatedAt":    now,
			},
			"$inc": bson.M{"retryCount": 1},
		},
	)
	if err != nil {
		return common.ConvertMongoError(err)
	}
	if result.MatchedCount == 0 {
		return common.ErrNotFound
	}
	return nil
}

// FindRecent trả về trang record phân tích, cập nhật gần nhất trước.
// Lọc được theo status để dashboard xem riêng các lượt failed.
func (s *AnalysisRecordService) FindRecent(ctx context.Context, status string, page int64, limit int64) (*basemodels.PaginateResult[models.AnalysisRecord], error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}

	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}})
	return s.FindWithPagination(ctx, filter, page, limit, opts)
}

// SyncStatus cập nhật trạng thái record theo dữ liệu từ analysis
// service. Không đụng tới errorMessage: đây là đồng bộ trạng thái,
// không phải ghi kết quả một lượt gọi.
func (s *AnalysisRecordService) SyncStatus(ctx context.Context, uploadID string, status string, result *models.GrainStats) error {
	if uploadID == "" {
		return common.ErrRequiredField
	}
	now := time.Now().UnixMilli()

	fields := bson.M{
		"status":    status,
		"updatedAt": now,
	}
	if result != nil {
		fields["result"] = result
		fields["analyzedAt"] = now
	}

	updateResult, err := s.Collection().UpdateOne(ctx,
		bson.M{"uploadId": uploadID},
		bson.M{"$set": fields},
	)
	if err != nil {
		return common.ConvertMongoError(err)
	}
	if updateResult.MatchedCount == 0 {
		return common.ErrNotFound
	}
	return nil
}

// DeleteByUploadID xoá record phân tích của một upload.
// Upload chưa từng có record thì không phải lỗi.
func (s *AnalysisRecordService) DeleteByUploadID(ctx context.Context, uploadID string) error {
	if uploadID == "" {
		return common.ErrRequiredField
	}
	err := s.DeleteOne(ctx, bson.M{"uploadId": uploadID})
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return err
	}
	return nil
}

// FindByUploadID tìm record phân tích của một upload.
func (s *AnalysisRecordService) FindByUploadID(ctx context.Context, uploadID string) (models.AnalysisRecord, error) {
	return s.FindOne(ctx, bson.M{"uploadId": uploadID}, nil)
}

// FindByUploadIDs tìm record của nhiều upload một lượt (cho history view).
func (s *AnalysisRecordService) FindByUploadIDs(ctx context.Context, uploadIDs []string) (map[string]models.AnalysisRecord, error) {
	if len(uploadIDs) == 0 {
		return map[string]models.AnalysisRecord{}, nil
	}

	records, err := s.Find(ctx, bson.M{"uploadId": bson.M{"$in": uploadIDs}}, nil)
	if err != nil {
		return nil, err
	}

	byUpload := make(map[string]models.AnalysisRecord, len(records))
	for _, r := range records {
		byUpload[r.UploadID] = r
	}
	return byUpload, nil
}
