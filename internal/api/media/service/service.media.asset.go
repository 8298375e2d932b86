package service

import (
	"context"
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
	"sand_score/internal/location"
)

// MediaAssetService quản lý collection uploads.
type MediaAssetService struct {
	*baseservice.BaseServiceMongo[models.MediaAsset]
}

// NewMediaAssetService khởi tạo service với collection uploads.
func NewMediaAssetService() (*MediaAssetService, error) {
	collection, exist := global.RegistryCollections.Get(global.MongoDB_ColNames.Uploads)
	if !exist {
		return nil, fmt.Errorf("failed to get %s collection", global.MongoDB_ColNames.Uploads)
	}
	return &MediaAssetService{
		BaseServiceMongo: baseservice.NewBaseServiceMongo[models.MediaAsset](collection),
	}, nil
}

// newMediaAssetServiceWithCol dùng cho test với collection tùy ý.
func newMediaAssetServiceWithCol(col *mongo.Collection) *MediaAssetService {
	return &MediaAssetService{
		BaseServiceMongo: baseservice.NewBaseServiceMongo[models.MediaAsset](col),
	}
}

// Create thêm một asset mới vào database.
func (s *MediaAssetService) Create(ctx context.Context, asset models.MediaAsset) error {
	_, err := s.InsertOne(ctx, asset)
	return err
}

// SetStatus cập nhật trạng thái pipeline của asset.
func (s *MediaAssetService) SetStatus(ctx context.Context, assetID string, status string) error {
	return s.updateFields(ctx, assetID, bson.M{"status": status})
}

// AttachObject ghi object key và download URL sau khi upload storage xong.
func (s *MediaAssetService) AttachObject(ctx context.Context, assetID string, objectKey string, downloadURL string) error {
	return s.updateFields(ctx, assetID, bson.M{
		"objectKey":   objectKey,
		"downloadUrl": downloadURL,
	})
}

// AttachLocation ghi vị trí GPS vào asset.
func (s *MediaAssetService) AttachLocation(ctx context.Context, assetID string, fix *location.GeoFix) error {
	return s.updateFields(ctx, assetID, bson.M{"location": fix})
}

// MarkDone đánh dấu asset hoàn tất toàn bộ pipeline.
func (s *MediaAssetService) MarkDone(ctx context.Context, assetID string) error {
	return s.updateFields(ctx, assetID, bson.M{"status": models.UploadStatusDone})
}

// MarkFailed đánh dấu asset lỗi kèm bước lỗi và mã lỗi.
// Dữ liệu đã ghi ở các bước trước (object key, URL, vị trí) giữ nguyên.
func (s *MediaAssetService) MarkFailed(ctx context.Context, assetID string, stage string, code string) error {
	return s.updateFields(ctx, assetID, bson.M{
		"status":       models.UploadStatusFailed,
		"failureStage": stage,
		"failureCode":  code,
	})
}

// updateFields cập nhật một số field của asset theo assetId.
func (s *MediaAssetService) updateFields(ctx context.Context, assetID string, fields bson.M) error {
	if assetID == "" {
		return common.ErrRequiredField
	}
	fields["updatedAt"] = time.Now().UnixMilli()

	result, err := s.Collection().UpdateOne(ctx, bson.M{"assetId": assetID}, bson.M{"$set": fields})
	if err != nil {
		return common.ConvertMongoError(err)
	}
	if result.MatchedCount == 0 {
		return common.ErrNotFound
	}
	return nil
}

// FindByAssetID tìm asset theo định danh ổn định.
func (s *MediaAssetService) FindByAssetID(ctx context.Context, assetID string) (models.MediaAsset, error) {
	return s.FindOne(ctx, bson.M{"assetId": assetID}, nil)
}

// FindByAssetIDs tìm nhiều asset một lượt, trả về map theo assetId.
func (s *MediaAssetService) FindByAssetIDs(ctx context.Context, assetIDs []string) (map[string]models.MediaAsset, error) {
	if len(assetIDs) == 0 {
		return map[string]models.MediaAsset{}, nil
	}

	assets, err := s.Find(ctx, bson.M{"assetId": bson.M{"$in": assetIDs}}, nil)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]models.MediaAsset, len(assets))
	for _, a := range assets {
		byID[a.AssetID] = a
	}
	return byID, nil
}

// Delete xoá bản ghi asset theo assetId.
func (s *MediaAssetService) Delete(ctx context.Context, assetID string) error {
	if assetID == "" {
		return common.ErrRequiredField
	}
	return s.DeleteOne(ctx, bson.M{"assetId": assetID})
}

// FindHistory trả về trang lịch sử upload, mới nhất trước.
func (s *MediaAssetService) FindHistory(ctx context.Context, captureType string, status string, page int64, limit int64) (*basemodels.PaginateResult[models.MediaAsset], error) {
	filter := bson.M{}
	if captureType != "" {
		filter["captureType"] = captureType
	}
	if status != "" {
		filter["status"] = status
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return s.FindWithPagination(ctx, filter, page, limit, opts)
}
