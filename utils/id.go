package utils

import (
	"github.com/segmentio/ksuid"
)

// GenerateID 生成会话/文件ID
func GenerateID() string {
	return ksuid.New().String()
}
