package tests

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestCaptureControlModule kiểm tra các API điều khiển chụp tự động
// và trigger từ cảm biến ngoài.
func TestCaptureControlModule(t *testing.T) {
	baseURL := requireAPIServer(t)

	// ============================================
	// TEST MENU CHU KỲ
	// ============================================
	t.Run("⏱️ Menu chu kỳ chụp", func(t *testing.T) {
		resp, env := getJSON(t, baseURL+"/capture/intervals")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("❌ Đọc menu chu kỳ thất bại (status: %d)", resp.StatusCode)
		}
		assert.Equal(t, "success", env.Status)

		var menu struct {
			IntervalSeconds []int `json:"intervalSeconds"`
		}
		assert.NoError(t, json.Unmarshal(env.Data, &menu))
		assert.Equal(t, []int{30, 60, 300, 900, 3600}, menu.IntervalSeconds, "Menu phải đúng các chu kỳ cho phép (giây)")
		fmt.Printf("✅ Menu chu kỳ: %v\n", menu.IntervalSeconds)
	})

	// ============================================
	// TEST ĐỔI CHU KỲ
	// ============================================
	t.Run("⏱️ Đổi chu kỳ ngoài menu phải bị từ chối", func(t *testing.T) {
		resp, env := putJSON(t, baseURL+"/capture/interval", map[string]any{"intervalSeconds": 42})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "error", env.Status)
	})

	t.Run("⏱️ Đổi chu kỳ hợp lệ", func(t *testing.T) {
		resp, env := putJSON(t, baseURL+"/capture/interval", map[string]any{"intervalSeconds": 30})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("❌ Đổi chu kỳ thất bại (status: %d, message: %s)", resp.StatusCode, env.Message)
		}
		assert.Equal(t, "success", env.Status)

		_, statusEnv := getJSON(t, baseURL+"/capture/status")
		var st struct {
			IntervalSeconds  int `json:"intervalSeconds"`
			RemainingSeconds int `json:"remainingSeconds"`
		}
		assert.NoError(t, json.Unmarshal(statusEnv.Data, &st))
		assert.Equal(t, 30, st.IntervalSeconds, "Chu kỳ mới phải hiện trong status")
		assert.LessOrEqual(t, st.RemainingSeconds, 30, "Đồng hồ đếm ngược phải reset theo chu kỳ mới")
	})

	// ============================================
	// TEST VÒNG ĐỜI START/STOP
	// ============================================
	t.Run("▶️ Start rồi stop chu trình chụp", func(t *testing.T) {
		resp, env := postJSON(t, baseURL+"/capture/start", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("❌ Start thất bại (status: %d, message: %s)", resp.StatusCode, env.Message)
		}
		assert.Equal(t, "success", env.Status)

		// Start lần hai khi đang chạy phải bị từ chối
		resp, env = postJSON(t, baseURL+"/capture/start", nil)
		assert.Equal(t, http.StatusConflict, resp.StatusCode, "Start khi đang chạy phải trả về 409")
		assert.Equal(t, "error", env.Status)

		_, statusEnv := getJSON(t, baseURL+"/capture/status")
		var st struct {
			Running bool `json:"running"`
		}
		assert.NoError(t, json.Unmarshal(statusEnv.Data, &st))
		assert.True(t, st.Running, "Status phải báo đang chạy")

		resp, env = postJSON(t, baseURL+"/capture/stop", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("❌ Stop thất bại (status: %d, message: %s)", resp.StatusCode, env.Message)
		}

		// Worker dừng bất đồng bộ, chờ status chuyển về không chạy
		stopped := false
		for i := 0; i < 20; i++ {
			_, statusEnv = getJSON(t, baseURL+"/capture/status")
			_ = json.Unmarshal(statusEnv.Data, &st)
			if !st.Running {
				stopped = true
				break
			}
			time.Sleep(200 * time.Millisecond)
		}
		assert.True(t, stopped, "Worker phải dừng sau khi stop")
		fmt.Printf("✅ Vòng đời start/stop hoạt động đúng\n")
	})

	// ============================================
	// TEST TRIGGER TỪ CẢM BIẾN
	// ============================================
	t.Run("🔔 Tạo trigger và đếm trigger chờ xử lý", func(t *testing.T) {
		resp, env := postJSON(t, baseURL+"/sensor/triggers", map[string]any{
			"signal":   "yes",
			"sensorId": "sensor-api-test",
			"source":   "api-test",
		})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("❌ Tạo trigger thất bại (status: %d, message: %s)", resp.StatusCode, env.Message)
		}
		assert.Equal(t, "success", env.Status)
		fmt.Printf("✅ Tạo trigger thành công\n")

		resp, env = getJSON(t, baseURL+"/sensor/triggers/pending")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("❌ Đếm trigger thất bại (status: %d)", resp.StatusCode)
		}
		var count struct {
			Pending int64 `json:"pending"`
		}
		assert.NoError(t, json.Unmarshal(env.Data, &count))
		assert.GreaterOrEqual(t, count.Pending, int64(0))
		fmt.Printf("✅ Trigger chờ xử lý: %d\n", count.Pending)
	})

	t.Run("🔔 Trigger với signal không hợp lệ", func(t *testing.T) {
		resp, env := postJSON(t, baseURL+"/sensor/triggers", map[string]any{
			"signal": "maybe",
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "Signal ngoài yes/no phải trả về 400")
		assert.Equal(t, "error", env.Status)
	})

	t.Run("🔔 Nhật ký hoạt động của poller", func(t *testing.T) {
		resp, env := getJSON(t, baseURL+"/sensor/triggers/activity")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("❌ Đọc nhật ký thất bại (status: %d)", resp.StatusCode)
		}
		assert.Equal(t, "success", env.Status)

		var activity []struct {
			At      int64  `json:"at"`
			Outcome string `json:"outcome"`
		}
		assert.NoError(t, json.Unmarshal(env.Data, &activity), "Nhật ký phải là mảng")
		// Mới nhất trước
		for i := 1; i < len(activity); i++ {
			assert.GreaterOrEqual(t, activity[i-1].At, activity[i].At, "Nhật ký phải sắp xếp mới nhất trước")
		}
		fmt.Printf("✅ Nhật ký có %d dòng\n", len(activity))
	})
}

// TestHealthEndpoint kiểm tra health check tổng hợp.
// Health không dùng envelope chung: body là trạng thái phẳng để các
// hệ thống monitoring đọc trực tiếp.
func TestHealthEndpoint(t *testing.T) {
	baseURL := requireAPIServer(t)

	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		t.Fatalf("❌ Lỗi gọi health: %v", err)
	}
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health struct {
		Status   string `json:"status"`
		Database string `json:"database"`
		Analysis string `json:"analysis"`
		Time     int64  `json:"time"`
	}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Contains(t, []string{"ok", "degraded"}, health.Status, "Server trả 200 thì status phải là ok hoặc degraded")
	assert.Equal(t, "ok", health.Database, "Server trả 200 thì database phải ok")
	assert.NotZero(t, health.Time)
	fmt.Printf("✅ Health: %s (db: %s, analysis: %s)\n", health.Status, health.Database, health.Analysis)
}
