package service

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	baseservice "sand_score/internal/api/base/service"
	"sand_score/internal/api/media/dto"
	"sand_score/internal/api/media/models"
	"sand_score/internal/common"
	"sand_score/internal/global"
)

// CaptureTriggerService quản lý collection sensor_data.
type CaptureTriggerService struct {
	*baseservice.BaseServiceMongo[models.CaptureTrigger]
}

// NewCaptureTriggerService khởi tạo service với collection sensor_data.
func NewCaptureTriggerService() (*CaptureTriggerService, error) {
	collection, exist := global.RegistryCollections.Get(global.MongoDB_ColNames.SensorData)
	if !exist {
		return nil, fmt.Errorf("failed to get %s collection", global.MongoDB_ColNames.SensorData)
	}
	return &CaptureTriggerService{
		BaseServiceMongo: baseservice.NewBaseServiceMongo[models.CaptureTrigger](collection),
	}, nil
}

// newCaptureTriggerServiceWithCol dùng cho test với collection tùy ý.
func newCaptureTriggerServiceWithCol(col *mongo.Collection) *CaptureTriggerService {
	return &CaptureTriggerService{
		BaseServiceMongo: baseservice.NewBaseServiceMongo[models.CaptureTrigger](col),
	}
}

// Create ghi một trigger mới từ cảm biến.
func (s *CaptureTriggerService) Create(ctx context.Context, input *dto.TriggerCreateInput) (models.CaptureTrigger, error) {
	var zero models.CaptureTrigger

	if err := global.Validate.Struct(input); err != nil {
		return zero, common.NewError(common.ErrCodeValidationInput, common.MsgValidationError, common.StatusBadRequest, err.Error())
	}

	trigger := models.CaptureTrigger{
		Signal:   input.Signal,
		SensorID: input.SensorID,
		Source:   input.Source,
		Consumed: false,
	}
	return s.InsertOne(ctx, trigger)
}

// FindPending trả về các trigger "yes" chưa consumed, cũ nhất trước,
// tối đa limit phần tử. Kết quả chỉ là ứng viên: trạng thái consumed
// phải được xác nhận lại bằng Claim trước khi xử lý.
func (s *CaptureTriggerService) FindPending(ctx context.Context, limit int64) ([]models.CaptureTrigger, error) {
	filter := bson.M{
		"signal":   models.TriggerSignalYes,
		"consumed": false,
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}}).
		SetLimit(limit)

	return s.Find(ctx, filter, opts)
}

// Claim thử claim một trigger bằng conditional update consumed
// false -> true. Chỉ đúng một caller thắng: ModifiedCount == 0 nghĩa
// là instance khác đã claim trước, trả về ErrClaimLost để caller bỏ
// qua trigger này trong im lặng.
func (s *CaptureTriggerService) Claim(ctx context.Context, id primitive.ObjectID, claimedBy string) error {
	now := time.Now().UnixMilli()

	result, err := s.Collection().UpdateOne(ctx,
		bson.M{"_id": id, "consumed": false},
		bson.M{"$set": bson.M{
			"consumed":   true,
			"consumedAt": now,
			"consumedBy": claimedBy,
			"updatedAt":  now,
		}},
	)
	if err != nil {
		return common.ConvertMongoError(err)
	}
	if result.ModifiedCount == 0 {
		return common.ErrClaimLost
	}
	return nil
}

// CountPending đếm số trigger "yes" chưa consumed.
func (s *CaptureTriggerService) CountPending(ctx context.Context) (int64, error) {
	return s.CountDocuments(ctx, bson.M{
		"signal":   models.TriggerSignalYes,
		"consumed": false,
	})
}
