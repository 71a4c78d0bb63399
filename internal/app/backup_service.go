package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"birthday_notification_bot/internal/domain/notification"
	"birthday_notification_bot/internal/domain/user"

	"github.com/sirupsen/logrus"
)

const backupFilePrefix = "backup_"

// backupPayload is the on-disk shape of one export. Logs are deliberately
// excluded: they are append-only operational data, not configuration.
type backupPayload struct {
	CreatedAt time.Time                `json:"created_at"`
	Users     []*user.User             `json:"users"`
	Templates []*notification.Template `json:"templates"`
	Rules     []*notification.Rule     `json:"rules"`
}

// BackupService exports users, templates and rules to timestamped JSON files
// and prunes old exports down to a retention count. Runs daily via cron and
// on demand via the admin /backup command.
type BackupService struct {
	userRepo  user.Repository
	notifRepo notification.Repository
	logger    *logrus.Entry
	dir       string
	retention int
	location  *time.Location
}

func NewBackupService(ur user.Repository, nr notification.Repository, logger *logrus.Entry, dir string, retention int, location *time.Location) *BackupService {
	return &BackupService{
		userRepo:  ur,
		notifRepo: nr,
		logger:    logger,
		dir:       dir,
		retention: retention,
		location:  location,
	}
}

// CreateBackup writes a full export and returns the created file path.
func (s *BackupService) CreateBackup(ctx context.Context) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	payload := backupPayload{CreatedAt: time.Now().In(s.location)}
	var err error

	payload.Users, err = s.userRepo.ListAll(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to export users: %w", err)
	}
	payload.Templates, err = s.notifRepo.ListTemplates(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to export templates: %w", err)
	}
	payload.Rules, err = s.notifRepo.ListRules(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to export rules: %w", err)
	}

	name := backupFilePrefix + payload.CreatedAt.Format("20060102_150405") + ".json"
	path := filepath.Join(s.dir, name)

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode backup: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write backup file: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"path":      path,
		"users":     len(payload.Users),
		"templates": len(payload.Templates),
		"rules":     len(payload.Rules),
	}).Info("Backup created")

	if err := s.pruneOld(); err != nil {
		s.logger.WithError(err).Warn("Backup retention pruning failed")
	}
	return path, nil
}

// pruneOld keeps only the newest `retention` backup files. Timestamped names
// sort chronologically, so a name sort is enough.
func (s *BackupService) pruneOld() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read backup directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), backupFilePrefix) && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	if len(names) <= s.retention {
		return nil
	}

	sort.Strings(names)
	for _, name := range names[:len(names)-s.retention] {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
			return fmt.Errorf("failed to remove old backup %s: %w", name, err)
		}
		s.logger.WithField("file", name).Info("Old backup removed")
	}
	return nil
}
