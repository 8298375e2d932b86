// Package database - Index cho các collection của pipeline media
// (uploads, sensor_data, grain_analysis).
package database

import (
	"context"
	"strings"

	"sand_score/internal/global"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CreateMediaIndexes tạo index cho các collection media. Gọi một lần lúc startup.
func CreateMediaIndexes(ctx context.Context, db *mongo.Database) error {
	// uploads: assetId unique — định danh opaque của MediaAsset
	uploads := db.Collection(global.MongoDB_ColNames.Uploads)
	if _, err := uploads.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "assetId", Value: 1}},
		Options: options.Index().SetName("upload_asset_id").SetUnique(true),
	}); err != nil && !isIndexExistsError(err) {
		return err
	}

	// uploads: createdAt desc — history newest-first
	if _, err := uploads.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "createdAt", Value: -1}},
		Options: options.Index().SetName("upload_created_desc"),
	}); err != nil && !isIndexExistsError(err) {
		return err
	}

	// sensor_data: (signal, consumed, createdAt) — query poll tick: signal=yes,
	// consumed=false, oldest-first
	sensorData := db.Collection(global.MongoDB_ColNames.SensorData)
	if _, err := sensorData.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "signal", Value: 1},
			{Key: "consumed", Value: 1},
			{Key: "createdAt", Value: 1},
		},
		Options: options.Index().SetName("sensor_signal_consumed_created"),
	}); err != nil && !isIndexExistsError(err) {
		return err
	}

	// grain_analysis: uploadId — join với uploads, lookup theo FK
	grainAnalysis := db.Collection(global.MongoDB_ColNames.GrainAnalysis)
	if _, err := grainAnalysis.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "uploadId", Value: 1}},
		Options: options.Index().SetName("analysis_upload_id"),
	}); err != nil && !isIndexExistsError(err) {
		return err
	}

	// grain_analysis: (status, updatedAt) — dashboard lọc theo trạng thái
	if _, err := grainAnalysis.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "status", Value: 1},
			{Key: "updatedAt", Value: -1},
		},
		Options: options.Index().SetName("analysis_status_updated"),
	}); err != nil && !isIndexExistsError(err) {
		return err
	}

	return nil
}

func isIndexExistsError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "already exists") || strings.Contains(s, "duplicate")
}
