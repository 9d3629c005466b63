package model

import "errors"

// 错误分类：终止当前请求的错误向上传播，单个掩码级别的异常在流水线内部吸收
var (
	// ErrModelUnavailable 模型后端无法初始化或调用
	ErrModelUnavailable = errors.New("model backend unavailable")
	// ErrInvalidInput 图片无法解码或参数非法
	ErrInvalidInput = errors.New("invalid input image")
	// ErrInputTooLarge 图片超过大小上限
	ErrInputTooLarge = errors.New("input image too large")
	// ErrMaskCorrupt 掩码缓冲区长度不满足不变量
	ErrMaskCorrupt = errors.New("mask data corrupt")
	// ErrSessionNotFound 会话不存在或已被删除
	ErrSessionNotFound = errors.New("session not found")
	// ErrNotSegmented 会话尚未执行分割
	ErrNotSegmented = errors.New("image has not been segmented yet")
	// ErrSuperseded 结果已被更新的请求取代
	ErrSuperseded = errors.New("request superseded by a newer one")
)
