package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"costamar/internal/config"
)

// BackupService copies the sqlite file to a timestamped backup on a fixed
// interval and prunes copies older than the retention window.
type BackupService struct {
	dbPath string
	cfg    config.Config
	logger *zerolog.Logger
}

// NewBackupService builds the backup service for the database at dbPath.
func NewBackupService(dbPath string, cfg *config.Config, logger *zerolog.Logger) *BackupService {
	return &BackupService{dbPath: dbPath, cfg: *cfg, logger: logger}
}

// Start runs the backup loop until the context is cancelled. The first
// backup runs immediately.
func (s *BackupService) Start(ctx context.Context) {
	if !s.cfg.Backup.Enabled {
		s.logger.Info().Msg("backup service disabled")
		return
	}

	interval := time.Duration(s.cfg.Backup.IntervalHours) * time.Hour
	s.logger.Info().
		Str("storage_path", s.cfg.Backup.StoragePath).
		Dur("interval", interval).
		Msg("backup service started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := s.Run(); err != nil {
		s.logger.Error().Err(err).Msg("initial backup failed")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Run(); err != nil {
				s.logger.Error().Err(err).Msg("scheduled backup failed")
			}
			s.pruneOld()
		}
	}
}

// Run performs one backup.
func (s *BackupService) Run() error {
	if err := os.MkdirAll(s.cfg.Backup.StoragePath, 0o755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}

	name := fmt.Sprintf("costamar_%s.db", time.Now().Format("20060102_150405"))
	backupPath := filepath.Join(s.cfg.Backup.StoragePath, name)

	source, err := os.Open(s.dbPath)
	if err != nil {
		return err
	}
	defer source.Close()

	destination, err := os.Create(backupPath)
	if err != nil {
		return err
	}
	defer destination.Close()

	if _, err := io.Copy(destination, source); err != nil {
		return err
	}

	s.logger.Info().Str("path", backupPath).Msg("database backup written")
	return nil
}

func (s *BackupService) pruneOld() {
	if s.cfg.Backup.RetentionDays <= 0 {
		return
	}

	files, err := os.ReadDir(s.cfg.Backup.StoragePath)
	if err != nil {
		s.logger.Error().Err(err).Msg("read backup directory failed")
		return
	}

	cutoff := time.Now().AddDate(0, 0, -s.cfg.Backup.RetentionDays)
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		info, err := file.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			s.logger.Info().Str("file", file.Name()).Msg("pruning old backup")
			os.Remove(filepath.Join(s.cfg.Backup.StoragePath, file.Name()))
		}
	}
}
