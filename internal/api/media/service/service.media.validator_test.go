// Package service - Test MediaValidator: thứ tự check, cắt batch, trùng lặp.
package service

import (
	"fmt"
	"testing"

	"sand_score/config"
)

func newTestValidator() *MediaValidator {
	cfg := &config.Configuration{
		UploadMaxFileSize:  1024,
		UploadMaxBatchSize: 3,
		UploadAllowedTypes: "image/jpeg,image/png,image/webp,image/gif",
	}
	return NewMediaValidator(cfg)
}

func TestValidateBatch_RejectReasonOrder(t *testing.T) {
	v := newTestValidator()

	cases := []struct {
		name   string
		file   IncomingFile
		reason string
	}{
		{"không phải ảnh", IncomingFile{Name: "doc.pdf", Size: 100, MimeType: "application/pdf"}, RejectNotAnImage},
		{"ảnh nhưng không thuộc allow-list", IncomingFile{Name: "x.tiff", Size: 100, MimeType: "image/tiff"}, RejectUnsupportedType},
		{"quá kích thước", IncomingFile{Name: "big.jpg", Size: 2048, MimeType: "image/jpeg"}, RejectTooLarge},
		{"file rỗng", IncomingFile{Name: "empty.jpg", Size: 0, MimeType: "image/jpeg"}, RejectEmptyFile},
	}

	for _, tc := range cases {
		verdict := v.ValidateBatch([]IncomingFile{tc.file})
		if verdict.Verdicts[0].Accepted {
			t.Errorf("%s: file phải bị loại", tc.name)
		}
		if verdict.Verdicts[0].Reason != tc.reason {
			t.Errorf("%s: reason = %q, muốn %q", tc.name, verdict.Verdicts[0].Reason, tc.reason)
		}
	}
}

func TestValidateBatch_NotAnImageWinsOverSize(t *testing.T) {
	v := newTestValidator()

	// File vừa không phải ảnh vừa quá lớn: chỉ nhận lý do đầu tiên
	verdict := v.ValidateBatch([]IncomingFile{
		{Name: "huge.bin", Size: 999999, MimeType: "application/octet-stream"},
	})
	if verdict.Verdicts[0].Reason != RejectNotAnImage {
		t.Errorf("reason = %q, muốn %q (check chạy theo thứ tự cố định)", verdict.Verdicts[0].Reason, RejectNotAnImage)
	}
}

func TestValidateBatch_DuplicateWithinBatch(t *testing.T) {
	v := newTestValidator()

	verdict := v.ValidateBatch([]IncomingFile{
		{Name: "sand.jpg", Size: 100, MimeType: "image/jpeg"},
		{Name: "sand.jpg", Size: 100, MimeType: "image/jpeg"},
	})

	if !verdict.Verdicts[0].Accepted {
		t.Error("file xuất hiện trước phải được nhận")
	}
	if verdict.Verdicts[1].Accepted || verdict.Verdicts[1].Reason != RejectDuplicate {
		t.Errorf("bản sao phải bị loại với reason %q, được %+v", RejectDuplicate, verdict.Verdicts[1])
	}
}

func TestValidateBatch_SameNameDifferentSizeNotDuplicate(t *testing.T) {
	v := newTestValidator()

	verdict := v.ValidateBatch([]IncomingFile{
		{Name: "sand.jpg", Size: 100, MimeType: "image/jpeg"},
		{Name: "sand.jpg", Size: 200, MimeType: "image/jpeg"},
	})
	if !verdict.Verdicts[1].Accepted {
		t.Error("cùng tên nhưng khác kích thước không phải trùng lặp")
	}
}

func TestValidateBatch_RejectedFileNotRememberedForDuplicate(t *testing.T) {
	v := newTestValidator()

	// File bị loại không được tính vào danh sách đã thấy
	verdict := v.ValidateBatch([]IncomingFile{
		{Name: "a.jpg", Size: 0, MimeType: "image/jpeg"},   // rỗng, bị loại
		{Name: "a.jpg", Size: 0, MimeType: "image/jpeg"},   // vẫn là empty-file, không phải duplicate
	})
	if verdict.Verdicts[1].Reason != RejectEmptyFile {
		t.Errorf("reason = %q, muốn %q", verdict.Verdicts[1].Reason, RejectEmptyFile)
	}
}

func TestValidateBatch_TruncateWithSingleWarning(t *testing.T) {
	v := newTestValidator()

	files := make([]IncomingFile, 5)
	for i := range files {
		files[i] = IncomingFile{Name: fmt.Sprintf("f%d.jpg", i), Size: 10, MimeType: "image/jpeg"}
	}

	verdict := v.ValidateBatch(files)
	if len(verdict.Verdicts) != 3 {
		t.Fatalf("batch phải bị cắt về 3 file, được %d", len(verdict.Verdicts))
	}
	if verdict.Warning == "" {
		t.Error("batch bị cắt phải có đúng một cảnh báo")
	}
	// 3 file đầu tiên được giữ theo thứ tự
	for i, vd := range verdict.Verdicts {
		if vd.File.Name != fmt.Sprintf("f%d.jpg", i) {
			t.Errorf("vị trí %d: file %q, muốn f%d.jpg", i, vd.File.Name, i)
		}
	}
}

func TestValidateBatch_WithinLimitNoWarning(t *testing.T) {
	v := newTestValidator()

	verdict := v.ValidateBatch([]IncomingFile{
		{Name: "a.jpg", Size: 10, MimeType: "image/jpeg"},
	})
	if verdict.Warning != "" {
		t.Errorf("batch trong giới hạn không được có cảnh báo, được %q", verdict.Warning)
	}
}

func TestValidateBatch_MimeCaseInsensitive(t *testing.T) {
	v := newTestValidator()

	verdict := v.ValidateBatch([]IncomingFile{
		{Name: "a.jpg", Size: 10, MimeType: "IMAGE/JPEG"},
	})
	if !verdict.Verdicts[0].Accepted {
		t.Errorf("MIME viết hoa phải được nhận, bị loại với %q", verdict.Verdicts[0].Reason)
	}
}
