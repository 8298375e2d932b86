// Package baseservice cung cấp lớp CRUD generic trên MongoDB.
// Các service nghiệp vụ nhúng BaseServiceMongo và bổ sung các hàm riêng.
package baseservice

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	basemodels "sand_score/internal/api/base/models"
	"sand_score/internal/common"
	"sand_score/internal/utility"
)

// BaseServiceMongo là service CRUD generic cho một collection MongoDB.
// T là kiểu model của collection (vd: models.MediaAsset).
type BaseServiceMongo[T any] struct {
	collection *mongo.Collection
}

// NewBaseServiceMongo khởi tạo base service với collection tương ứng.
func NewBaseServiceMongo[T any](collection *mongo.Collection) *BaseServiceMongo[T] {
	return &BaseServiceMongo[T]{collection: collection}
}

// Collection trả về collection gốc cho các truy vấn đặc thù.
func (s *BaseServiceMongo[T]) Collection() *mongo.Collection {
	return s.collection
}

// prepareInsert chuyển model thành map và gắn timestamps (UnixMilli).
func prepareInsert(data interface{}) (map[string]interface{}, error) {
	doc, err := utility.ToMap(data)
	if err != nil {
		return nil, common.NewError(common.ErrCodeValidationFormat, common.MsgValidationError, common.StatusBadRequest, err)
	}

	now := time.Now().UnixMilli()
	if v, ok := doc["createdAt"]; !ok || v == nil || v == int64(0) {
		doc["createdAt"] = now
	}
	doc["updatedAt"] = now
	return doc, nil
}

// InsertOne thêm một document mới, tự động gắn createdAt/updatedAt.
func (s *BaseServiceMongo[T]) InsertOne(ctx context.Context, data T) (T, error) {
	var zero T

	doc, err := prepareInsert(data)
	if err != nil {
		return zero, err
	}

	result, err := s.collection.InsertOne(ctx, doc)
	if err != nil {
		return zero, common.ConvertMongoError(err)
	}

	return s.FindOneById(ctx, result.InsertedID.(primitive.ObjectID))
}

// InsertMany thêm nhiều document, trả về danh sách đã insert.
func (s *BaseServiceMongo[T]) InsertMany(ctx context.Context, data []T) ([]T, error) {
	if len(data) == 0 {
		return nil, common.NewError(common.ErrCodeValidationInput, common.MsgValidationError, common.StatusBadRequest, nil)
	}

	docs := make([]interface{}, 0, len(data))
	for _, item := range data {
		doc, err := prepareInsert(item)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	result, err := s.collection.InsertMany(ctx, docs)
	if err != nil {
		return nil, common.ConvertMongoError(err)
	}

	inserted := make([]T, 0, len(result.InsertedIDs))
	for _, id := range result.InsertedIDs {
		item, err := s.FindOneById(ctx, id.(primitive.ObjectID))
		if err != nil {
			return nil, err
		}
		inserted = append(inserted, item)
	}
	return inserted, nil
}

// FindOne tìm một document theo filter.
func (s *BaseServiceMongo[T]) FindOne(ctx context.Context, filter interface{}, opts *options.FindOneOptions) (T, error) {
	var result T

	if filter == nil {
		filter = bson.D{}
	}

	err := s.collection.FindOne(ctx, filter, opts).Decode(&result)
	if err != nil {
		return result, common.ConvertMongoError(err)
	}
	return result, nil
}

// FindOneById tìm một document theo _id.
func (s *BaseServiceMongo[T]) FindOneById(ctx context.Context, id primitive.ObjectID) (T, error) {
	return s.FindOne(ctx, bson.M{"_id": id}, nil)
}

// Find tìm nhiều document theo filter.
func (s *BaseServiceMongo[T]) Find(ctx context.Context, filter interface{}, opts *options.FindOptions) ([]T, error) {
	if filter == nil {
		filter = bson.D{}
	}

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, common.ConvertMongoError(err)
	}
	defer cursor.Close(ctx)

	var results []T
	if err := cursor.All(ctx, &results); err != nil {
		return nil, common.ConvertMongoError(err)
	}
	return results, nil
}

// FindWithPagination tìm document có phân trang, trả về kèm tổng số trang.
func (s *BaseServiceMongo[T]) FindWithPagination(ctx context.Context, filter interface{}, page int64, limit int64, opts *options.FindOptions) (*basemodels.PaginateResult[T], error) {
	if filter == nil {
		filter = bson.D{}
	}
	if limit <= 0 {
		limit = 10
	}
	if page < 0 {
		page = 0
	}

	total, err := s.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, common.ConvertMongoError(err)
	}

	if opts == nil {
		opts = options.Find()
	}
	opts.SetSkip(page * limit)
	opts.SetLimit(limit)

	items, err := s.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}

	totalPage := total / limit
	if total%limit != 0 {
		totalPage++
	}

	return &basemodels.PaginateResult[T]{
		Items:     items,
		Page:      page,
		Limit:     limit,
		ItemCount: int64(len(items)),
		Total:     total,
		TotalPage: totalPage,
	}, nil
}

// UpdateOne cập nhật một document theo filter, tự động gắn updatedAt.
func (s *BaseServiceMongo[T]) UpdateOne(ctx context.Context, filter interface{}, update interface{}) (T, error) {
	var zero T

	updateDoc, err := utility.ToMap(update)
	if err != nil {
		return zero, common.NewError(common.ErrCodeValidationFormat, common.MsgValidationError, common.StatusBadRequest, err)
	}

	setDoc, ok := updateDoc["$set"].(map[string]interface{})
	if !ok {
		setDoc = map[string]interface{}{}
		for k, v := range updateDoc {
			if len(k) > 0 && k[0] == '$' {
				continue
			}
			setDoc[k] = v
		}
	}
	setDoc["updatedAt"] = time.Now().UnixMilli()
	updateDoc["$set"] = setDoc
	for k := range updateDoc {
		if len(k) > 0 && k[0] != '$' {
			delete(updateDoc, k)
		}
	}

	result, err := s.collection.UpdateOne(ctx, filter, updateDoc)
	if err != nil {
		return zero, common.ConvertMongoError(err)
	}
	if result.MatchedCount == 0 {
		return zero, common.ErrNotFound
	}

	return s.FindOne(ctx, filter, nil)
}

// FindOneAndUpdate tìm và cập nhật, trả về document sau khi cập nhật.
func (s *BaseServiceMongo[T]) FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}, opts *options.FindOneAndUpdateOptions) (T, error) {
	var result T

	if opts == nil {
		opts = options.FindOneAndUpdate().SetReturnDocument(options.After)
	}

	err := s.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&result)
	if err != nil {
		return result, common.ConvertMongoError(err)
	}
	return result, nil
}

// CountDocuments đếm số document thỏa filter.
func (s *BaseServiceMongo[T]) CountDocuments(ctx context.Context, filter interface{}) (int64, error) {
	if filter == nil {
		filter = bson.D{}
	}

	count, err := s.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, common.ConvertMongoError(err)
	}
	return count, nil
}

// DocumentExists kiểm tra document có tồn tại theo filter hay không.
func (s *BaseServiceMongo[T]) DocumentExists(ctx context.Context, filter interface{}) (bool, error) {
	count, err := s.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, common.ConvertMongoError(err)
	}
	return count > 0, nil
}

// DeleteOne xoá một document theo filter.
func (s *BaseServiceMongo[T]) DeleteOne(ctx context.Context, filter interface{}) error {
	result, err := s.collection.DeleteOne(ctx, filter)
	if err != nil {
		return common.ConvertMongoError(err)
	}
	if result.DeletedCount == 0 {
		return common.ErrNotFound
	}
	return nil
}

// DeleteById xoá một document theo _id.
func (s *BaseServiceMongo[T]) DeleteById(ctx context.Context, id primitive.ObjectID) error {
	return s.DeleteOne(ctx, bson.M{"_id": id})
}
