package global

import (
	"sand_score/config"
	"sand_score/internal/registry"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/mongo"
)

// MediaCollectionName chứa tên các collection trong MongoDB
type MediaCollectionName struct {
	Uploads       string // Tên collection cho MediaAsset (ảnh đã upload + metadata)
	SensorData    string // Tên collection cho CaptureTrigger (tín hiệu chụp từ bên ngoài)
	GrainAnalysis string // Tên collection cho AnalysisRecord (kết quả phân tích cỡ hạt)
}

// Các biến toàn cục
var Validate *validator.Validate                 // Biến để xác thực dữ liệu
var MongoDB_Session *mongo.Client                // Phiên kết nối tới MongoDB
var ServerConfig *config.Configuration           // Cấu hình của server
var MongoDB_ColNames = *new(MediaCollectionName) // Tên các collection

// Các Registry
var RegistryCollections = registry.NewRegistry[*mongo.Collection]() // Registry chứa các collections
var RegistryDatabase = registry.NewRegistry[*mongo.Database]()      // Registry chứa các databases
