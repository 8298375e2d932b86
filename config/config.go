package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
)

// Configuration chứa thông tin tĩnh cần thiết để chạy ứng dụng.
// Tất cả được load một lần lúc khởi động, không reload runtime.
type Configuration struct {
	Address               string `env:"ADDRESS" envDefault:":8080"`                // Địa chỉ server
	CORS_Origins          string `env:"CORS_ORIGINS" envDefault:"*"`               // Các origins được phép (phân cách bởi dấu phẩy, * = tất cả)
	CORS_AllowCredentials bool   `env:"CORS_ALLOW_CREDENTIALS" envDefault:"false"` // Cho phép gửi credentials
	RateLimit_Max         int    `env:"RATE_LIMIT_MAX" envDefault:"100"`           // Số request tối đa trong window (0 = disable rate limit)
	RateLimit_Window      int    `env:"RATE_LIMIT_WINDOW" envDefault:"60"`         // Thời gian window (giây)
	RateLimit_Enabled     bool   `env:"RATE_LIMIT_ENABLED" envDefault:"true"`      // Bật/tắt rate limiting

	// MongoDB
	MongoDB_ConnectionURI string `env:"MONGODB_CONNECTION_URI,required"` // URL kết nối cơ sở dữ liệu
	MongoDB_DBName        string `env:"MONGODB_DBNAME,required"`         // Tên cơ sở dữ liệu chính

	// Object Storage (GCS)
	GCS_Bucket           string `env:"GCS_BUCKET,required"`                                                  // Tên bucket chứa ảnh upload
	GCS_CredentialsPath  string `env:"GCS_CREDENTIALS_PATH"`                                                 // Đường dẫn service account JSON (rỗng = Application Default Credentials)
	StoragePublicBaseURL string `env:"STORAGE_PUBLIC_BASE_URL" envDefault:"https://storage.googleapis.com"` // Base URL để resolve public URL từ object key

	// Analysis API (dịch vụ phân tích cỡ hạt bên ngoài, coi như không tin cậy)
	AnalysisAPIURL     string  `env:"ANALYSIS_API_URL" envDefault:"http://localhost:8000"` // Base URL của analysis service
	AnalysisAPITimeout int     `env:"ANALYSIS_API_TIMEOUT" envDefault:"8"`                 // Timeout request (giây)
	MinParticleMM      float64 `env:"MIN_PARTICLE_MM" envDefault:"0.1"`                    // Cận dưới kích thước hạt (mm)
	MaxParticleMM      float64 `env:"MAX_PARTICLE_MM" envDefault:"4.0"`                    // Cận trên kích thước hạt (mm)

	// Location provider (dịch vụ cung cấp vị trí GPS)
	LocationProviderURL string `env:"LOCATION_PROVIDER_URL,required"`       // URL endpoint trả về fix hiện tại
	LocationFixTimeout  int    `env:"LOCATION_FIX_TIMEOUT" envDefault:"10"` // Thời gian chờ tối đa một fix (giây)
	LocationMaxAge      int    `env:"LOCATION_MAX_AGE" envDefault:"300"`    // Tuổi tối đa của fix cache (giây)

	// Camera (snapshot camera qua HTTP, một handle duy nhất)
	CameraSnapshotURL    string `env:"CAMERA_SNAPSHOT_URL,required"`           // URL lấy một frame JPEG
	CameraStabilizeMs    int    `env:"CAMERA_STABILIZE_MS" envDefault:"2000"`  // Thời gian chờ ổn định trước khi chụp (ms)
	CameraCaptureTimeout int    `env:"CAMERA_CAPTURE_TIMEOUT" envDefault:"15"` // Hard timeout cho một lần chụp (giây)
	CameraSensorID       string `env:"CAMERA_SENSOR_ID" envDefault:"cam-01"`   // Định danh sensor gắn với camera này

	// Upload limits
	UploadMaxFileSize  int64  `env:"UPLOAD_MAX_FILE_SIZE" envDefault:"10485760"`                                  // Kích thước file tối đa (bytes, mặc định 10MB)
	UploadMaxBatchSize int    `env:"UPLOAD_MAX_BATCH" envDefault:"10"`                                            // Số file tối đa một batch
	UploadAllowedTypes string `env:"UPLOAD_ALLOWED_TYPES" envDefault:"image/jpeg,image/png,image/webp,image/gif"` // MIME allow-list (phân cách bởi dấu phẩy)

	// Workers
	SensorCaptureInterval int `env:"SENSOR_CAPTURE_INTERVAL" envDefault:"300"` // Chu kỳ chụp tự động (giây, phải thuộc menu cố định)
	TriggerPollInterval   int `env:"TRIGGER_POLL_INTERVAL" envDefault:"10"`    // Chu kỳ poll trigger (giây)
	TriggerPollBatch      int `env:"TRIGGER_POLL_BATCH" envDefault:"5"`        // Số trigger tối đa xử lý mỗi tick
	TriggerActivityCap    int `env:"TRIGGER_ACTIVITY_CAP" envDefault:"50"`     // Độ dài tối đa của activity log

	// Display
	DisplayTimezone string `env:"DISPLAY_TIMEZONE" envDefault:"Asia/Kolkata"` // Timezone cố định để render timestamp cho client
}

// AllowedMimeTypes tách UploadAllowedTypes thành slice.
func (c *Configuration) AllowedMimeTypes() []string {
	parts := strings.Split(c.UploadAllowedTypes, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getEnvPath trả về đường dẫn đến file env dựa trên môi trường
func getEnvPath() string {
	// Mặc định sử dụng môi trường development
	env := os.Getenv("GO_ENV")
	if env == "" {
		env = "development"
	}

	currentDir, err := os.Getwd()
	if err != nil {
		// Sử dụng fmt.Printf vì logger có thể chưa được init ở đây
		fmt.Printf("Không thể lấy được thư mục hiện tại: %v\n", err)
		return ""
	}

	// Tìm thư mục config/env bằng cách đi lên từ working directory
	for {
		envDir := filepath.Join(currentDir, "config", "env")
		if _, err := os.Stat(envDir); err == nil {
			return filepath.Join(envDir, fmt.Sprintf("%s.env", env))
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return ""
		}
		currentDir = parentDir
	}
}

// NewConfig sẽ đọc dữ liệu cấu hình từ file env được cung cấp
func NewConfig(files ...string) *Configuration {
	envPath := getEnvPath()
	if envPath == "" {
		fmt.Printf("Không tìm thấy thư mục config/env\n")
		return nil
	}

	err := godotenv.Load(envPath)
	if err != nil {
		fmt.Printf("Không thể load file env tại %s: %v\n", envPath, err)
		return nil
	}

	cfg := Configuration{}
	err = env.Parse(&cfg)
	if err != nil {
		fmt.Printf("Lỗi khi parse config: %+v\n", err)
		return nil
	}

	return &cfg
}
