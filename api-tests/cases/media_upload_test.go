package tests

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestMediaUploadModule kiểm tra các API upload và lịch sử media.
func TestMediaUploadModule(t *testing.T) {
	baseURL := requireAPIServer(t)

	var assetID string

	// ============================================
	// TEST UPLOAD BATCH
	// ============================================
	t.Run("📤 Upload batch với file hợp lệ và file bị loại", func(t *testing.T) {
		files := []uploadFile{
			{name: fmt.Sprintf("mau-cat-%d.jpg", time.Now().UnixNano()), mimeType: "image/jpeg", data: jpegBytes("sample-1")},
			{name: "tai-lieu.pdf", mimeType: "application/pdf", data: []byte("not an image")},
		}

		resp, env := postMultipart(t, baseURL+"/media/uploads", files)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("❌ Upload batch thất bại (status: %d, message: %s)", resp.StatusCode, env.Message)
		}
		assert.Equal(t, "success", env.Status, "Status phải là success")

		var result struct {
			Items []struct {
				AssetID      string `json:"assetId"`
				FileName     string `json:"fileName"`
				Status       string `json:"status"`
				RejectReason string `json:"rejectReason"`
				DownloadURL  string `json:"downloadUrl"`
			} `json:"items"`
			Accepted int `json:"accepted"`
			Rejected int `json:"rejected"`
			Failed   int `json:"failed"`
		}
		assert.NoError(t, json.Unmarshal(env.Data, &result), "Phải parse được batch result")
		assert.Len(t, result.Items, 2, "Mỗi file trong batch phải có một item kết quả")

		// Không có location service thì batch dừng trước cả bước kiểm
		// tra file: mọi item đều failed, không item nào bị rejected
		if result.Failed == len(result.Items) {
			t.Logf("⚠️ Batch dừng vì thiếu vị trí — location service có thể chưa chạy")
		} else {
			assert.Equal(t, 1, result.Rejected, "File PDF phải bị loại")
		}

		for _, item := range result.Items {
			switch item.Status {
			case "done":
				assetID = item.AssetID
				assert.NotEmpty(t, item.DownloadURL, "File hoàn tất phải có downloadUrl")
				fmt.Printf("✅ Upload thành công, assetId: %s\n", item.AssetID)
			case "rejected":
				assert.Equal(t, "not-an-image", item.RejectReason, "PDF phải bị loại vì không phải ảnh")
			default:
				// Storage/analysis bên ngoài có thể không chạy trong môi
				// trường test: coi là cảnh báo, không phải lỗi của API
				t.Logf("⚠️ File %s ở trạng thái %s", item.FileName, item.Status)
			}
		}
	})

	t.Run("📤 Upload batch rỗng phải bị từ chối", func(t *testing.T) {
		resp, env := postMultipart(t, baseURL+"/media/uploads", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "Batch không có file phải trả về 400")
		assert.Equal(t, "error", env.Status)
	})

	// ============================================
	// TEST HISTORY
	// ============================================
	t.Run("📜 Lịch sử upload có phân trang", func(t *testing.T) {
		resp, env := getJSON(t, baseURL+"/media/history?page=0&limit=5")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("❌ Đọc lịch sử thất bại (status: %d, message: %s)", resp.StatusCode, env.Message)
		}
		assert.Equal(t, "success", env.Status)

		var page struct {
			Items []struct {
				AssetID     string `json:"assetId"`
				CaptureType string `json:"captureType"`
				UploadedAt  string `json:"uploadedAt"`
			} `json:"items"`
			Limit int64 `json:"limit"`
			Total int64 `json:"total"`
		}
		assert.NoError(t, json.Unmarshal(env.Data, &page), "Phải parse được trang lịch sử")
		assert.LessOrEqual(t, len(page.Items), 5, "Số item không vượt limit")
		fmt.Printf("✅ Lịch sử có %d bản ghi, trang đầu %d item\n", page.Total, len(page.Items))
	})

	t.Run("📜 Lọc lịch sử theo captureType không hợp lệ", func(t *testing.T) {
		resp, env := getJSON(t, baseURL+"/media/history?captureType=không-tồn-tại")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "captureType lạ phải trả về 400")
		assert.Equal(t, "error", env.Status)
	})

	t.Run("📜 Chi tiết một upload", func(t *testing.T) {
		if assetID == "" {
			t.Skip("Bỏ qua: chưa có upload thành công ở bước trước")
		}

		resp, env := getJSON(t, baseURL+"/media/history/"+assetID)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("❌ Đọc chi tiết thất bại (status: %d, message: %s)", resp.StatusCode, env.Message)
		}
		assert.Equal(t, "success", env.Status)

		var detail struct {
			AssetID  string `json:"assetId"`
			FileName string `json:"fileName"`
			Status   string `json:"status"`
		}
		assert.NoError(t, json.Unmarshal(env.Data, &detail))
		assert.Equal(t, assetID, detail.AssetID, "Chi tiết phải trả về đúng asset")
		fmt.Printf("✅ Chi tiết upload %s: %s (%s)\n", detail.AssetID, detail.FileName, detail.Status)
	})

	t.Run("📜 Chi tiết upload không tồn tại", func(t *testing.T) {
		resp, env := getJSON(t, baseURL+"/media/history/khong-ton-tai-0000")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, "Asset không tồn tại phải trả về 404")
		assert.Equal(t, "error", env.Status)
	})

	// ============================================
	// TEST RETRY ANALYSIS
	// ============================================
	t.Run("🔬 Retry phân tích cho upload đã hoàn tất", func(t *testing.T) {
		if assetID == "" {
			t.Skip("Bỏ qua: chưa có upload thành công ở bước trước")
		}

		resp, env := postJSON(t, baseURL+"/media/uploads/"+assetID+"/analysis/retry", nil)
		// Analysis service có thể không chạy trong môi trường test:
		// chấp nhận cả thành công lẫn lỗi NET, chỉ cấm lỗi hệ thống
		if resp.StatusCode == http.StatusOK {
			assert.Equal(t, "success", env.Status)
			fmt.Printf("✅ Retry phân tích thành công\n")
		} else {
			assert.NotEqual(t, http.StatusInternalServerError, resp.StatusCode,
				"Retry khi analysis service down không được là lỗi 500, body: %s", env.Message)
			t.Logf("⚠️ Retry trả về status %d (%s) — analysis service có thể chưa chạy", resp.StatusCode, env.Message)
		}
	})

	t.Run("🔬 Retry phân tích cho upload không tồn tại", func(t *testing.T) {
		resp, env := postJSON(t, baseURL+"/media/uploads/khong-ton-tai-0000/analysis/retry", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "error", env.Status)
	})

	// ============================================
	// TEST ANALYSES DASHBOARD
	// ============================================
	t.Run("🔬 Dashboard kết quả phân tích", func(t *testing.T) {
		resp, env := getJSON(t, baseURL+"/media/analyses?page=0&limit=5")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("❌ Đọc dashboard thất bại (status: %d, message: %s)", resp.StatusCode, env.Message)
		}
		assert.Equal(t, "success", env.Status)

		var page struct {
			Items []struct {
				AssetID string `json:"assetId"`
				Status  string `json:"status"`
			} `json:"items"`
			Total int64 `json:"total"`
		}
		assert.NoError(t, json.Unmarshal(env.Data, &page), "Phải parse được trang dashboard")
		assert.LessOrEqual(t, len(page.Items), 5, "Số item không vượt limit")
		for _, item := range page.Items {
			assert.NotEmpty(t, item.Status, "Mỗi record phải có trạng thái")
		}
		fmt.Printf("✅ Dashboard có %d record phân tích\n", page.Total)
	})

	t.Run("🔬 Dashboard có refresh từ analysis service", func(t *testing.T) {
		// Service chết thì refresh degrade về dữ liệu database, vẫn 200
		resp, env := getJSON(t, baseURL+"/media/analyses?refresh=true&limit=5")
		assert.Equal(t, http.StatusOK, resp.StatusCode, "Refresh không được fail khi analysis service down, message: %s", env.Message)
		assert.Equal(t, "success", env.Status)
	})

	t.Run("🔬 Kết quả phân tích của upload không tồn tại", func(t *testing.T) {
		resp, env := getJSON(t, baseURL+"/media/analyses/khong-ton-tai-0000")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "error", env.Status)
	})

	// ============================================
	// TEST DELETE (chạy cuối: các bước trước còn dùng assetID)
	// ============================================
	t.Run("🗑 Xoá một upload", func(t *testing.T) {
		if assetID == "" {
			t.Skip("Bỏ qua: chưa có upload thành công ở bước trước")
		}

		resp, env := deleteJSON(t, baseURL+"/media/uploads/"+assetID)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("❌ Xoá upload thất bại (status: %d, message: %s)", resp.StatusCode, env.Message)
		}
		assert.Equal(t, "success", env.Status)

		// Bản ghi biến mất khỏi lịch sử
		detailResp, _ := getJSON(t, baseURL+"/media/history/"+assetID)
		assert.Equal(t, http.StatusNotFound, detailResp.StatusCode, "Upload đã xoá không được còn trong lịch sử")
		fmt.Printf("✅ Đã xoá upload %s\n", assetID)
	})

	t.Run("🗑 Xoá upload không tồn tại", func(t *testing.T) {
		resp, env := deleteJSON(t, baseURL+"/media/uploads/khong-ton-tai-0000")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "error", env.Status)
	})
}
