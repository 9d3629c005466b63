package service

import (
	"os"
	"path/filepath"
	"time"

	"github.com/darshanvss/image-clipper/config"
	"github.com/darshanvss/image-clipper/utils"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// CleanupService 定时清理过期会话及其上传/导出文件
type CleanupService struct {
	cfg       *config.CleanupConfig
	uploadDir string
	exportDir string
	sessions  *SessionStore
	cron      *cron.Cron
}

func NewCleanupService(cfg *config.Config, sessions *SessionStore) *CleanupService {
	return &CleanupService{
		cfg:       &cfg.Cleanup,
		uploadDir: cfg.Upload.UploadDir,
		exportDir: cfg.Upload.ExportDir,
		sessions:  sessions,
		cron:      cron.New(),
	}
}

// Start 按配置的调度表启动清理任务
func (s *CleanupService) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.Schedule, s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	utils.Logger.Info("cleanup worker started", zap.String("schedule", s.cfg.Schedule))
	return nil
}

func (s *CleanupService) Stop() {
	s.cron.Stop()
}

// sweep 删除超龄会话与目录中的孤儿文件
func (s *CleanupService) sweep() {
	removedSessions := 0
	for _, sess := range s.sessions.Expired(s.cfg.MaxAge) {
		if _, err := s.sessions.Delete(sess.ID); err != nil {
			continue
		}
		removeQuiet(sess.FilePath)
		removeQuiet(filepath.Join(s.exportDir, "export_"+sess.ID+".png"))
		removedSessions++
	}

	// 孤儿文件扫描可单独关闭，过期会话自己的文件总是清理
	removedFiles := 0
	if s.cfg.CleanupTempFiles {
		removedFiles = s.sweepDir(s.uploadDir) + s.sweepDir(s.exportDir)
	}

	if removedSessions > 0 || removedFiles > 0 {
		utils.Logger.Info("cleanup sweep finished",
			zap.Int("sessions", removedSessions),
			zap.Int("files", removedFiles))
	}
}

// sweepDir 删除目录下超过保存期限的普通文件
func (s *CleanupService) sweepDir(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}

	cutoff := time.Now().Add(-s.cfg.MaxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			utils.Logger.Warn("failed to remove stale file",
				zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		removed++
	}
	return removed
}

func removeQuiet(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		utils.Logger.Warn("failed to remove file", zap.String("file", path), zap.Error(err))
	}
}
