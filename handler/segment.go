package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/darshanvss/image-clipper/config"
	"github.com/darshanvss/image-clipper/model"
	"github.com/darshanvss/image-clipper/service"
	"github.com/darshanvss/image-clipper/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type SegmentHandler struct {
	cfg          *config.Config
	sessions     *service.SessionStore
	redisService *service.RedisService
	segmenter    *service.Segmenter
	compositor   *service.Compositor
}

func NewSegmentHandler(cfg *config.Config, sessions *service.SessionStore, redis *service.RedisService,
	segmenter *service.Segmenter, compositor *service.Compositor) *SegmentHandler {
	return &SegmentHandler{
		cfg:          cfg,
		sessions:     sessions,
		redisService: redis,
		segmenter:    segmenter,
		compositor:   compositor,
	}
}

// Upload 处理图片上传，创建分割会话
func (h *SegmentHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		utils.Logger.Error("failed to get uploaded file", zap.Error(err))
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "请上传图片文件",
			Error:   err.Error(),
		})
		return
	}

	// 验证文件大小
	if file.Size > h.cfg.Upload.MaxSize {
		h.respondError(c, model.ErrInputTooLarge,
			fmt.Sprintf("文件大小超过限制 (%d MB)", h.cfg.Upload.MaxSize/(1024*1024)))
		return
	}

	// 验证文件类型
	contentType := file.Header.Get("Content-Type")
	if !h.isAllowedType(contentType) {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "不支持的文件类型，仅支持 JPEG/PNG",
		})
		return
	}

	// 保存文件
	imageID := utils.GenerateID()
	ext := filepath.Ext(file.Filename)
	savePath := filepath.Join(h.cfg.Upload.UploadDir, imageID+ext)
	if err := c.SaveUploadedFile(file, savePath); err != nil {
		utils.Logger.Error("failed to save file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "保存文件失败",
			Error:   err.Error(),
		})
		return
	}

	// 验证图片可解码并获取尺寸
	data, err := os.ReadFile(savePath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "读取文件失败",
			Error:   err.Error(),
		})
		return
	}
	img, err := utils.DecodeImage(data)
	if err != nil {
		_ = os.Remove(savePath)
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "图片无法解码",
			Error:   err.Error(),
		})
		return
	}

	md5 := utils.BytesMD5(data)
	h.sessions.Create(imageID, savePath, md5, img.Bounds().Dx(), img.Bounds().Dy())

	utils.Logger.Info("file uploaded",
		zap.String("image_id", imageID),
		zap.String("md5", md5),
		zap.Int64("size", file.Size))

	c.JSON(http.StatusCreated, model.UploadResponse{
		Success: true,
		Message: "上传成功",
		ImageID: imageID,
		MD5:     md5,
	})
}

// Segment 对已上传的图片执行分割
func (h *SegmentHandler) Segment(c *gin.Context) {
	imageID := c.Param("id")
	sess, err := h.sessions.Get(imageID)
	if err != nil {
		h.respondError(c, err, "查询会话失败")
		return
	}

	var req model.SegmentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, model.ErrorResponse{
				Success: false,
				Message: "分割参数非法",
				Error:   err.Error(),
			})
			return
		}
	}

	// 检查缓存（MD5 + 参数区分）
	ctx := c.Request.Context()
	cacheKey := h.cacheKey(sess.MD5, &req)
	cached, err := h.redisService.GetSegmentationResult(ctx, cacheKey)
	if err != nil {
		utils.Logger.Warn("failed to get cache", zap.Error(err))
	}
	if cached != nil {
		utils.Logger.Info("cache hit", zap.String("cache_key", cacheKey))
		token, err := h.sessions.BeginRequest(imageID)
		if err == nil {
			_ = h.sessions.Commit(imageID, token, cached)
		}
		c.JSON(http.StatusOK, model.SegmentResponse{
			Success: true,
			Message: "分割成功（来自缓存）",
			Data:    cached,
		})
		return
	}

	token, err := h.sessions.BeginRequest(imageID)
	if err != nil {
		h.respondError(c, err, "查询会话失败")
		return
	}

	data, err := os.ReadFile(sess.FilePath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "读取图片失败",
			Error:   err.Error(),
		})
		return
	}
	img, err := utils.DecodeImage(data)
	if err != nil {
		h.respondError(c, model.ErrInvalidInput, "图片无法解码")
		return
	}

	result, err := h.segmenter.Segment(ctx, img, &req)
	if err != nil {
		utils.Logger.Error("failed to segment image",
			zap.String("image_id", imageID), zap.Error(err))
		h.respondError(c, err, "图片分割失败")
		return
	}

	if err := h.sessions.Commit(imageID, token, result); err != nil {
		// 会话已被更新的请求取代或删除，丢弃本次结果
		h.respondError(c, err, "分割结果已失效")
		return
	}

	if err := h.redisService.SetSegmentationResult(ctx, cacheKey, result); err != nil {
		utils.Logger.Warn("failed to set cache", zap.Error(err))
	}

	c.JSON(http.StatusOK, model.SegmentResponse{
		Success: true,
		Message: "分割成功",
		Data:    result,
	})
}

// Export 把选中的掩码合成为 PNG 导出
func (h *SegmentHandler) Export(c *gin.Context) {
	imageID := c.Param("id")
	sess, err := h.sessions.Get(imageID)
	if err != nil {
		h.respondError(c, err, "查询会话失败")
		return
	}

	var req model.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "导出参数非法",
			Error:   err.Error(),
		})
		return
	}

	result, err := h.sessions.Result(imageID)
	if err != nil {
		h.respondError(c, err, "图片尚未分割")
		return
	}

	// 请求的掩码ID至少要命中一个
	if !anyValidID(result, req.MaskIDs) {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "请求的掩码ID均不存在",
		})
		return
	}

	data, err := os.ReadFile(sess.FilePath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "读取图片失败",
			Error:   err.Error(),
		})
		return
	}
	img, err := utils.DecodeImage(data)
	if err != nil {
		h.respondError(c, model.ErrInvalidInput, "图片无法解码")
		return
	}

	out, skipped, err := h.compositor.Composite(model.CompositeSpec{
		Image:          img,
		Result:         result,
		Selection:      req.MaskIDs,
		ShowBackground: req.ShowBackground,
	})
	if err != nil {
		h.respondError(c, err, "图片合成失败")
		return
	}

	pngData, err := utils.EncodePNG(out)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "编码导出图片失败",
			Error:   err.Error(),
		})
		return
	}

	if err := os.MkdirAll(h.cfg.Upload.ExportDir, 0755); err == nil {
		exportPath := filepath.Join(h.cfg.Upload.ExportDir, "export_"+imageID+".png")
		if err := os.WriteFile(exportPath, pngData, 0644); err != nil {
			utils.Logger.Warn("failed to persist export file", zap.Error(err))
		}
	}

	if len(skipped) > 0 {
		c.Header("X-Skipped-Masks", intsToCSV(skipped))
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=export_%s.png", imageID))
	c.Data(http.StatusOK, "image/png", pngData)
}

// Delete 删除会话及其文件
func (h *SegmentHandler) Delete(c *gin.Context) {
	imageID := c.Param("id")
	sess, err := h.sessions.Delete(imageID)
	if err != nil {
		h.respondError(c, err, "删除失败")
		return
	}

	if err := os.Remove(sess.FilePath); err != nil && !os.IsNotExist(err) {
		utils.Logger.Warn("failed to delete upload file",
			zap.String("file", sess.FilePath), zap.Error(err))
	}
	exportPath := filepath.Join(h.cfg.Upload.ExportDir, "export_"+imageID+".png")
	if err := os.Remove(exportPath); err != nil && !os.IsNotExist(err) {
		utils.Logger.Warn("failed to delete export file",
			zap.String("file", exportPath), zap.Error(err))
	}

	c.JSON(http.StatusOK, model.UploadResponse{
		Success: true,
		Message: "删除成功",
	})
}

// cacheKey 图片MD5与请求参数共同决定缓存键
func (h *SegmentHandler) cacheKey(md5 string, req *model.SegmentRequest) string {
	params, _ := json.Marshal(req)
	return md5 + ":" + utils.BytesMD5(params)
}

func (h *SegmentHandler) respondError(c *gin.Context, err error, message string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrNotSegmented), errors.Is(err, model.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrInputTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, model.ErrSuperseded):
		status = http.StatusConflict
	case errors.Is(err, model.ErrModelUnavailable):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, model.ErrorResponse{
		Success: false,
		Message: message,
		Error:   err.Error(),
	})
}

func (h *SegmentHandler) isAllowedType(contentType string) bool {
	for _, allowed := range h.cfg.Upload.AllowedTypes {
		if strings.EqualFold(contentType, allowed) {
			return true
		}
	}
	return false
}

func anyValidID(result *model.SegmentationResult, ids []int) bool {
	for _, id := range ids {
		for i := range result.Masks {
			if result.Masks[i].ID == id {
				return true
			}
		}
	}
	return false
}

func intsToCSV(ids []int) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%d", id))
	}
	return strings.Join(parts, ",")
}
