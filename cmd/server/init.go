package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"sand_score/config"
	"sand_score/internal/database"
	"sand_score/internal/global"
	"sand_score/internal/logger"
)

// InitGlobal khởi tạo các biến toàn cục.
func InitGlobal() {
	initColNames()         // Khởi tạo tên các collection trong database
	initValidator()        // Khởi tạo validator
	initConfig()           // Khởi tạo cấu hình server
	initDatabase_MongoDB() // Khởi tạo kết nối database
}

// initColNames khởi tạo tên các collection trong database.
func initColNames() {
	global.MongoDB_ColNames.Uploads = "uploads"
	global.MongoDB_ColNames.SensorData = "sensor_data"
	global.MongoDB_ColNames.GrainAnalysis = "grain_analysis"
}

// initValidator khởi tạo validator với các custom rule.
func initValidator() {
	global.InitValidator()
}

// initConfig khởi tạo cấu hình server từ file env.
func initConfig() {
	cfg := config.NewConfig()
	if cfg == nil {
		logrus.Fatal("Không load được cấu hình server")
	}
	global.ServerConfig = cfg
}

// initDatabase_MongoDB khởi tạo kết nối MongoDB.
func initDatabase_MongoDB() {
	client, err := database.GetInstance(global.ServerConfig)
	if err != nil {
		logrus.Fatalf("Không kết nối được MongoDB: %v", err)
	}
	global.MongoDB_Session = client

	log := logger.GetAppLogger()
	log.Info("MongoDB connected successfully")
}

// InitIndexes tạo các index cần thiết cho các collection media.
// Chạy idempotent: index đã tồn tại không gây lỗi.
func InitIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := global.MongoDB_Session.Database(global.ServerConfig.MongoDB_DBName)
	if err := database.CreateMediaIndexes(ctx, db); err != nil {
		logrus.Fatalf("Không tạo được index: %v", err)
	}

	log := logger.GetAppLogger()
	log.Info("Database indexes initialized successfully")
}
