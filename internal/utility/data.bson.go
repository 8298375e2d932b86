// Package utility chứa các helper dùng chung (chuyển đổi bson, format).
package utility

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// ToMap chuyển một struct (theo bson tags) thành map[string]interface{}.
// Dùng bởi base service để thêm timestamps trước khi insert/update.
func ToMap(s interface{}) (map[string]interface{}, error) {
	data, err := bson.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal to bson failed: %w", err)
	}

	var result map[string]interface{}
	if err := bson.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("unmarshal bson to map failed: %w", err)
	}

	return result, nil
}
