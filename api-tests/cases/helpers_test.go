// Package tests chứa API test cho server đang chạy thật.
// Chạy bằng: SANDSCORE_API_TEST=1 go test ./api-tests/cases/...
// Server phải được start trước (kèm MongoDB); base URL đổi qua
// biến môi trường SANDSCORE_API_URL.
package tests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"testing"
	"time"
)

const defaultBaseURL = "http://localhost:8080/api/v1"

// requireAPIServer bỏ qua test nếu không bật chế độ API test hoặc
// server không trả lời health check.
func requireAPIServer(t *testing.T) string {
	t.Helper()
	if os.Getenv("SANDSCORE_API_TEST") == "" {
		t.Skip("Bỏ qua: set SANDSCORE_API_TEST=1 để chạy API test với server thật")
	}
	baseURL := os.Getenv("SANDSCORE_API_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	waitForHealth(t, baseURL, 10, time.Second)
	return baseURL
}

// waitForHealth chờ server sẵn sàng, fail test nếu hết số lần thử.
func waitForHealth(t *testing.T, baseURL string, attempts int, delay time.Duration) {
	t.Helper()
	client := &http.Client{Timeout: 3 * time.Second}
	for i := 0; i < attempts; i++ {
		resp, err := client.Get(baseURL + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(delay)
	}
	t.Fatalf("❌ Server không sẵn sàng tại %s sau %d lần thử", baseURL, attempts)
}

// envelope là format response thống nhất của server.
type envelope struct {
	Code    any             `json:"code"`
	Message string          `json:"message"`
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
}

func httpDo(t *testing.T, method string, url string, contentType string, body io.Reader) (*http.Response, envelope) {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("❌ Không tạo được request %s %s: %v", method, url, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("❌ Lỗi gọi %s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("❌ Lỗi đọc response body: %v", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("❌ Response không phải JSON envelope (status %d): %s", resp.StatusCode, raw)
	}
	return resp, env
}

func getJSON(t *testing.T, url string) (*http.Response, envelope) {
	return httpDo(t, http.MethodGet, url, "", nil)
}

func postJSON(t *testing.T, url string, payload any) (*http.Response, envelope) {
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("❌ Không marshal được payload: %v", err)
	}
	return httpDo(t, http.MethodPost, url, "application/json", bytes.NewReader(data))
}

func deleteJSON(t *testing.T, url string) (*http.Response, envelope) {
	return httpDo(t, http.MethodDelete, url, "", nil)
}

func putJSON(t *testing.T, url string, payload any) (*http.Response, envelope) {
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("❌ Không marshal được payload: %v", err)
	}
	return httpDo(t, http.MethodPut, url, "application/json", bytes.NewReader(data))
}

// uploadFile là một file trong multipart upload request.
type uploadFile struct {
	name     string
	mimeType string
	data     []byte
}

// postMultipart gửi batch file qua POST dạng multipart/form-data.
func postMultipart(t *testing.T, url string, files []uploadFile) (*http.Response, envelope) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, f := range files {
		header := make(map[string][]string)
		header["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name="files"; filename="%s"`, f.name)}
		header["Content-Type"] = []string{f.mimeType}
		part, err := writer.CreatePart(header)
		if err != nil {
			t.Fatalf("❌ Không tạo được multipart part: %v", err)
		}
		if _, err := part.Write(f.data); err != nil {
			t.Fatalf("❌ Không ghi được nội dung file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("❌ Không đóng được multipart writer: %v", err)
	}
	return httpDo(t, http.MethodPost, url, writer.FormDataContentType(), &buf)
}

// jpegBytes sinh nội dung giả có magic bytes JPEG cho test upload.
func jpegBytes(seed string) []byte {
	return append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, []byte(seed)...)
}
