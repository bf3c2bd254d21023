// Package service 追番记录备份服务
package service

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/smysle/anitrack-go/internal/config"
	"github.com/smysle/anitrack-go/internal/database/models"
	"github.com/smysle/anitrack-go/internal/progress"
	"github.com/smysle/anitrack-go/pkg/logger"
)

const (
	backupVersion = "1.0"
	backupPrefix  = "backup_"
)

// ErrInvalidBackup 备份文件名不合法
var ErrInvalidBackup = errors.New("无效的备份文件")

// BackupService 备份服务
type BackupService struct {
	store     *progress.Store
	backupDir string
	now       func() time.Time
}

// BackupData 备份数据结构
type BackupData struct {
	Version   string            `json:"version"`
	CreatedAt time.Time         `json:"created_at"`
	Entries   models.Collection `json:"entries"`
}

// BackupResult 备份结果
type BackupResult struct {
	Filename   string        `json:"filename"`
	FilePath   string        `json:"file_path"`
	Size       int64         `json:"size"`
	Duration   time.Duration `json:"duration"`
	Records    int           `json:"records"`
	Compressed bool          `json:"compressed"`
}

// BackupInfo 备份信息
type BackupInfo struct {
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// NewBackupService 创建备份服务
func NewBackupService(cfg *config.BackupConfig, store *progress.Store) (*BackupService, error) {
	backupDir := cfg.Dir
	if backupDir == "" {
		backupDir = "./backups"
	}

	// 确保备份目录存在
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return nil, fmt.Errorf("创建备份目录失败: %w", err)
	}

	return &BackupService{
		store:     store,
		backupDir: backupDir,
		now:       time.Now,
	}, nil
}

// Backup 执行备份
func (s *BackupService) Backup(compress bool) (*BackupResult, error) {
	startTime := time.Now()
	createdAt := s.now()

	data := BackupData{
		Version:   backupVersion,
		CreatedAt: createdAt,
		Entries:   s.store.GetAll(),
	}

	// 生成文件名，同一秒内多次备份靠后缀区分
	filename := fmt.Sprintf("%s%s_%s.json", backupPrefix, createdAt.Format("20060102_150405"), uuid.NewString()[:8])
	if compress {
		filename += ".gz"
	}
	filePath := filepath.Join(s.backupDir, filename)

	// 序列化
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("序列化失败: %w", err)
	}

	// 写入文件
	var fileSize int64
	if compress {
		fileSize, err = writeCompressed(filePath, jsonData)
	} else {
		fileSize, err = writeRaw(filePath, jsonData)
	}
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("file", filename).
		Int64("size", fileSize).
		Int("records", len(data.Entries)).
		Msg("追番记录备份完成")

	return &BackupResult{
		Filename:   filename,
		FilePath:   filePath,
		Size:       fileSize,
		Duration:   time.Since(startTime),
		Records:    len(data.Entries),
		Compressed: compress,
	}, nil
}

// writeRaw 写入原始 JSON
func writeRaw(path string, data []byte) (int64, error) {
	if err := os.WriteFile(path, data, 0644); err != nil {
		return 0, fmt.Errorf("写入文件失败: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// writeCompressed 写入压缩文件
func writeCompressed(path string, data []byte) (int64, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("创建文件失败: %w", err)
	}
	defer file.Close()

	gz := gzip.NewWriter(file)
	if _, err := gz.Write(data); err != nil {
		return 0, fmt.Errorf("压缩写入失败: %w", err)
	}
	if err := gz.Close(); err != nil {
		return 0, fmt.Errorf("压缩写入失败: %w", err)
	}
	if err := file.Sync(); err != nil {
		return 0, fmt.Errorf("写入文件失败: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Restore 从备份恢复，整体替换当前记录
func (s *BackupService) Restore(filePath string) (int, error) {
	var data []byte
	var err error

	if filepath.Ext(filePath) == ".gz" {
		data, err = readCompressed(filePath)
	} else {
		data, err = os.ReadFile(filePath)
	}
	if err != nil {
		return 0, fmt.Errorf("读取备份文件失败: %w", err)
	}

	// 解析
	var backupData BackupData
	if err := json.Unmarshal(data, &backupData); err != nil {
		return 0, fmt.Errorf("解析备份数据失败: %w", err)
	}
	if backupData.Entries == nil {
		backupData.Entries = models.Collection{}
	}

	if err := s.store.Replace(backupData.Entries); err != nil {
		return 0, fmt.Errorf("恢复追番记录失败: %w", err)
	}

	logger.Info().
		Str("file", filepath.Base(filePath)).
		Str("version", backupData.Version).
		Int("records", len(backupData.Entries)).
		Msg("追番记录恢复完成")

	return len(backupData.Entries), nil
}

// readCompressed 读取压缩文件
func readCompressed(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	return io.ReadAll(gz)
}

// ListBackups 列出所有备份，按时间倒序
func (s *BackupService) ListBackups() ([]BackupInfo, error) {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		return nil, err
	}

	backups := make([]BackupInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !isBackupFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}

		backups = append(backups, BackupInfo{
			Filename:  entry.Name(),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}

	// 文件名包含时间戳，按文件名倒序即按时间倒序
	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Filename > backups[j].Filename
	})

	return backups, nil
}

// CleanOldBackups 只保留最近 maxCount 个备份
func (s *BackupService) CleanOldBackups(maxCount int) (int, error) {
	if maxCount <= 0 {
		maxCount = 7 // 默认保留 7 个
	}

	backups, err := s.ListBackups()
	if err != nil {
		return 0, err
	}
	if len(backups) <= maxCount {
		return 0, nil
	}

	deleted := 0
	for _, backup := range backups[maxCount:] {
		filePath := filepath.Join(s.backupDir, backup.Filename)
		if err := os.Remove(filePath); err != nil {
			logger.Warn().Err(err).Str("file", backup.Filename).Msg("删除旧备份失败")
			continue
		}
		deleted++
		logger.Debug().Str("file", backup.Filename).Msg("已删除旧备份")
	}

	return deleted, nil
}

// LatestBackup 获取最新备份，没有备份时返回 nil
func (s *BackupService) LatestBackup() (*BackupInfo, error) {
	backups, err := s.ListBackups()
	if err != nil {
		return nil, err
	}
	if len(backups) == 0 {
		return nil, nil
	}
	return &backups[0], nil
}

// BackupFilePath 获取备份文件完整路径，拒绝目录穿越
func (s *BackupService) BackupFilePath(filename string) (string, error) {
	if filename != filepath.Base(filename) || !isBackupFile(filename) {
		return "", fmt.Errorf("%w: %s", ErrInvalidBackup, filename)
	}
	return filepath.Join(s.backupDir, filename), nil
}

func isBackupFile(name string) bool {
	return strings.HasPrefix(name, backupPrefix) &&
		(strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".json.gz"))
}

// FormatSize 格式化文件大小
func FormatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
