// Package analysis chứa client gọi sang grain-analysis service.
// Mọi request đều có timeout cứng; lỗi mạng được phân loại NET_002
// để pipeline upload coi là lỗi tạm thời (ảnh vẫn được lưu).
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"sand_score/config"
	"sand_score/internal/api/media/models"
	"sand_score/internal/common"
	"sand_score/internal/logger"
)

// Client gọi HTTP sang analysis service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	minSizeMM  float64
	maxSizeMM  float64
	log        *logrus.Logger
}

// NewClient khởi tạo analysis client từ cấu hình.
func NewClient(cfg *config.Configuration) *Client {
	return &Client{
		baseURL: cfg.AnalysisAPIURL,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.AnalysisAPITimeout) * time.Second,
		},
		minSizeMM: cfg.MinParticleMM,
		maxSizeMM: cfg.MaxParticleMM,
		log:       logger.GetAppLogger(),
	}
}

// analyzeRequest là payload gửi sang POST /analyze.
type analyzeRequest struct {
	UploadID    string  `json:"upload_id"`
	ImageURL    string  `json:"image_url"`
	MinSizeMM   float64 `json:"min_size_mm"`
	MaxSizeMM   float64 `json:"max_size_mm"`
	CaptureType string  `json:"capture_type,omitempty"`
}

// analyzeResponse là body trả về từ POST /analyze.
type analyzeResponse struct {
	Status string             `json:"status"`
	Result *models.GrainStats `json:"result,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// listEnvelope hỗ trợ dạng response bọc object {"analyses": [...]}.
// Service có hai version API: version cũ trả mảng trần, version mới
// bọc trong object. Client chấp nhận cả hai.
type listEnvelope struct {
	Analyses []AnalysisSummary `json:"analyses"`
}

// AnalysisSummary là một dòng trong danh sách kết quả phân tích.
type AnalysisSummary struct {
	UploadID    string             `json:"upload_id"`
	Status      string             `json:"status"`
	Result      *models.GrainStats `json:"result,omitempty"`
	AnalyzedAt  int64              `json:"analyzed_at"`
	CaptureType string             `json:"capture_type,omitempty"`
}

// RequestAnalysis yêu cầu phân tích ảnh đã upload.
// Trả về status và kết quả (nếu service phân tích đồng bộ).
func (c *Client) RequestAnalysis(ctx context.Context, uploadID string, imageURL string, captureType string) (string, *models.GrainStats, error) {
	reqBody := analyzeRequest{
		UploadID:    uploadID,
		ImageURL:    imageURL,
		MinSizeMM:   c.minSizeMM,
		MaxSizeMM:   c.maxSizeMM,
		CaptureType: captureType,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", nil, common.NewError(common.ErrCodeValidationFormat, common.MsgInvalidFormat, common.StatusBadRequest, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", nil, common.NewError(common.ErrCodeNetworkAnalysis, "Không tạo được request phân tích", common.StatusInternalServerError, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", nil, common.NewError(common.ErrCodeNetworkAnalysis, "Lỗi gọi analysis service", common.StatusServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", nil, common.NewError(common.ErrCodeNetworkAnalysis,
			fmt.Sprintf("Analysis service trả về status %d", resp.StatusCode),
			common.StatusBadGateway, string(body))
	}

	var result analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", nil, common.NewError(common.ErrCodeNetworkAnalysis, "Response phân tích không hợp lệ", common.StatusBadGateway, err)
	}

	if result.Error != "" {
		return result.Status, nil, common.NewError(common.ErrCodeNetworkAnalysis, result.Error, common.StatusBadGateway, nil)
	}
	return result.Status, result.Result, nil
}

// RetryAnalysis yêu cầu phân tích lại một upload đã có.
func (c *Client) RetryAnalysis(ctx context.Context, uploadID string) (string, *models.GrainStats, error) {
	endpoint := fmt.Sprintf("%s/analyze/%s", c.baseURL, url.PathEscape(uploadID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return "", nil, common.NewError(common.ErrCodeNetworkAnalysis, "Không tạo được request phân tích lại", common.StatusInternalServerError, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", nil, common.NewError(common.ErrCodeNetworkAnalysis, "Lỗi gọi analysis service", common.StatusServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil, common.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", nil, common.NewError(common.ErrCodeNetworkAnalysis,
			fmt.Sprintf("Analysis service trả về status %d", resp.StatusCode),
			common.StatusBadGateway, nil)
	}

	var result analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", nil, common.NewError(common.ErrCodeNetworkAnalysis, "Response phân tích không hợp lệ", common.StatusBadGateway, err)
	}
	return result.Status, result.Result, nil
}

// ListAnalyses lấy danh sách kết quả phân tích từ service.
// Chấp nhận cả hai dạng response: mảng trần hoặc bọc {"analyses": [...]}.
// Lỗi mạng/parse không làm fail history view: trả về danh sách rỗng
// và log warning, vì dữ liệu chính vẫn đọc được từ database.
func (c *Client) ListAnalyses(ctx context.Context, limit int) []AnalysisSummary {
	endpoint := fmt.Sprintf("%s/analyses?limit=%d", c.baseURL, limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.log.WithField("error", err.Error()).Warn("Không tạo được request danh sách phân tích")
		return []AnalysisSummary{}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.WithField("error", err.Error()).Warn("Lỗi lấy danh sách phân tích, trả về danh sách rỗng")
		return []AnalysisSummary{}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.WithField("status", resp.StatusCode).Warn("Analysis service trả về lỗi, trả về danh sách rỗng")
		return []AnalysisSummary{}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		c.log.WithField("error", err.Error()).Warn("Lỗi đọc response danh sách phân tích")
		return []AnalysisSummary{}
	}

	// Thử dạng mảng trần trước
	var bare []AnalysisSummary
	if err := json.Unmarshal(body, &bare); err == nil {
		return bare
	}

	// Dạng bọc object
	var envelope listEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Analyses != nil {
		return envelope.Analyses
	}

	c.log.Warn("Response danh sách phân tích không đúng định dạng, trả về danh sách rỗng")
	return []AnalysisSummary{}
}

// Health kiểm tra analysis service có sẵn sàng không.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return common.NewError(common.ErrCodeNetworkAnalysis, "Không tạo được request health check", common.StatusInternalServerError, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return common.NewError(common.ErrCodeNetworkAnalysis, "Analysis service không phản hồi", common.StatusServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return common.NewError(common.ErrCodeNetworkAnalysis,
			fmt.Sprintf("Analysis service health trả về status %d", resp.StatusCode),
			common.StatusServiceUnavailable, nil)
	}
	return nil
}
