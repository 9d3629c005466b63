package model

import "image"

// Mask 单个候选掩码
// Data 为全幅二值缓冲区（0/1），长度恒等于其所属分辨率的 width*height，
// 经过归一化后即原图分辨率。BBox 仅作为元数据，始终为原图像素坐标。
type Mask struct {
	ID    int     `json:"id"`
	Score float64 `json:"score"`
	BBox  BBox    `json:"bbox"`
	Data  []byte  `json:"data"` // JSON 序列化时自动转为 base64
	Area  int     `json:"area"`
}

// BBox 边界框
type BBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// SegmentationResult 一次分割请求的完整结果，创建后不可变
type SegmentationResult struct {
	Masks       []Mask `json:"masks"`
	ImageWidth  int    `json:"image_width"`
	ImageHeight int    `json:"image_height"`
	Timestamp   int64  `json:"timestamp"`
}

// CompositeSpec 合成请求，随选择变化临时构建，不做持久化
type CompositeSpec struct {
	Image          image.Image
	Result         *SegmentationResult
	Selection      []int
	ShowBackground bool
}

// SegmentRequest 分割请求参数
type SegmentRequest struct {
	Points      [][]int `json:"points,omitempty"`
	PointLabels []int   `json:"point_labels,omitempty"`
	Box         []int   `json:"box,omitempty"` // [x1, y1, x2, y2]
	Mode        string  `json:"mode,omitempty"`
}

// ExportRequest 导出请求参数
type ExportRequest struct {
	MaskIDs        []int `json:"mask_ids"`
	ShowBackground bool  `json:"show_background"`
}

// UploadResponse 上传响应
type UploadResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ImageID string `json:"image_id,omitempty"`
	MD5     string `json:"md5,omitempty"`
}

// SegmentResponse 分割响应
type SegmentResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    *SegmentationResult `json:"data,omitempty"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}
