// Package basemodels định nghĩa các kiểu kết quả chung cho tầng service.
package basemodels

// PaginateResult chứa kết quả phân trang cho một truy vấn Find.
type PaginateResult[T any] struct {
	Items     []T   `json:"items" bson:"items"`         // Danh sách dữ liệu của trang hiện tại
	Page      int64 `json:"page" bson:"page"`           // Trang hiện tại (bắt đầu từ 0)
	Limit     int64 `json:"limit" bson:"limit"`         // Số lượng phần tử mỗi trang
	ItemCount int64 `json:"itemCount" bson:"itemCount"` // Số phần tử thực tế của trang này
	Total     int64 `json:"total" bson:"total"`         // Tổng số phần tử thỏa điều kiện
	TotalPage int64 `json:"totalPage" bson:"totalPage"` // Tổng số trang
}

// CountResult chứa kết quả đếm số lượng document.
type CountResult struct {
	TotalCount int64 `json:"totalCount" bson:"totalCount"`
}
