// Package location cung cấp nguồn vị trí GPS cho pipeline upload.
// Mô hình lỗi: bị từ chối quyền (PERM_001) là lỗi phải dừng ngay,
// không bao giờ tự retry; timeout (DEV_002) là lỗi tạm thời.
package location

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"sand_score/config"
	"sand_score/internal/common"
)

// GeoFix là một fix vị trí tại một thời điểm.
type GeoFix struct {
	Latitude  float64 `json:"latitude" bson:"latitude"`   // Vĩ độ
	Longitude float64 `json:"longitude" bson:"longitude"` // Kinh độ
	AccuracyM float64 `json:"accuracyM" bson:"accuracyM"` // Độ chính xác (mét)
	FixedAt   int64   `json:"fixedAt" bson:"fixedAt"`     // Thời điểm fix (UnixMilli)
}

// Source là interface nguồn vị trí mà upload coordinator sử dụng.
type Source interface {
	// CurrentFix trả về fix hiện tại, chấp nhận fix cache còn đủ mới.
	CurrentFix(ctx context.Context) (*GeoFix, error)
}

// HTTPProvider lấy vị trí từ một location service qua HTTP.
// Fix được cache: trong vòng maxAge kể từ fix gần nhất, các request
// mới dùng lại fix cũ thay vì gọi lại service.
type HTTPProvider struct {
	endpoint   string
	httpClient *http.Client
	maxAge     time.Duration

	mu     sync.Mutex
	cached *GeoFix
}

// NewHTTPProvider khởi tạo provider từ cấu hình.
func NewHTTPProvider(cfg *config.Configuration) *HTTPProvider {
	return &HTTPProvider{
		endpoint: cfg.LocationProviderURL,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.LocationFixTimeout) * time.Second,
		},
		maxAge: time.Duration(cfg.LocationMaxAge) * time.Second,
	}
}

// fixResponse là body trả về từ location service.
type fixResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	AccuracyM float64 `json:"accuracy_m"`
}

// CurrentFix trả về fix hiện tại.
// Fix cache còn trong maxAge được dùng lại ngay, không gọi service.
// 403 từ service nghĩa là quyền vị trí bị thu hồi: trả về lỗi
// permission-denied để caller dừng pipeline, không retry.
func (p *HTTPProvider) CurrentFix(ctx context.Context) (*GeoFix, error) {
	p.mu.Lock()
	if p.cached != nil {
		age := time.Since(time.UnixMilli(p.cached.FixedAt))
		if age < p.maxAge {
			fix := *p.cached
			p.mu.Unlock()
			return &fix, nil
		}
	}
	p.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint, nil)
	if err != nil {
		return nil, common.NewError(common.ErrCodeDeviceLocation, "Không tạo được request vị trí", common.StatusInternalServerError, err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, common.ErrLocationTimeout
		}
		return nil, common.NewError(common.ErrCodeDeviceLocation, "Không kết nối được location service", common.StatusServiceUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return nil, common.ErrLocationPermissionDenied
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout:
		return nil, common.ErrLocationTimeout
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, common.NewError(common.ErrCodeDeviceLocation, "Location service trả về lỗi", common.StatusBadGateway, resp.StatusCode)
	}

	var body fixResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, common.NewError(common.ErrCodeDeviceLocation, "Response vị trí không hợp lệ", common.StatusBadGateway, err)
	}

	fix := &GeoFix{
		Latitude:  body.Latitude,
		Longitude: body.Longitude,
		AccuracyM: body.AccuracyM,
		FixedAt:   time.Now().UnixMilli(),
	}

	p.mu.Lock()
	p.cached = fix
	p.mu.Unlock()

	result := *fix
	return &result, nil
}

// Invalidate xoá fix cache, buộc lần gọi sau lấy fix mới.
func (p *HTTPProvider) Invalidate() {
	p.mu.Lock()
	p.cached = nil
	p.mu.Unlock()
}

// isTimeout kiểm tra lỗi timeout từ net layer.
func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
