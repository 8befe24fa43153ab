package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// BackupTimeFormat is the timestamp layout used in backup file names.
const BackupTimeFormat = "20060102_150405"

// CheckExists verifies if the datastore file exists at dbPath.
// Returns true if the store exists, false otherwise.
func CheckExists(dbPath string) (bool, error) {
	info, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check store existence: %w", err)
	}
	if info.IsDir() {
		return false, fmt.Errorf("datastore path is a directory, expected file: %s", dbPath)
	}
	return true, nil
}

// BackupPath returns the path of a backup of dbPath taken at t, inside dir.
// An empty dir means next to the datastore.
func BackupPath(dir, dbPath string, t time.Time) string {
	dir, stem, ext := backupParts(dir, dbPath)
	return filepath.Join(dir, fmt.Sprintf("%s_%s%s", stem, t.Format(BackupTimeFormat), ext))
}

// NextBackupPath is BackupPath for a file that does not exist yet. Backups
// taken within the same second get a _2, _3, ... suffix.
func NextBackupPath(dir, dbPath string, t time.Time) (string, error) {
	dir, stem, ext := backupParts(dir, dbPath)
	stamp := t.Format(BackupTimeFormat)
	for seq := 1; ; seq++ {
		name := fmt.Sprintf("%s_%s%s", stem, stamp, ext)
		if seq > 1 {
			name = fmt.Sprintf("%s_%s_%d%s", stem, stamp, seq, ext)
		}
		path := filepath.Join(dir, name)
		if _, err := os.Lstat(path); err != nil {
			if os.IsNotExist(err) {
				return path, nil
			}
			return "", fmt.Errorf("failed to check backup path: %w", err)
		}
	}
}

func backupParts(dir, dbPath string) (string, string, string) {
	if dir == "" {
		dir = filepath.Dir(dbPath)
	}
	base := filepath.Base(dbPath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if ext == "" {
		ext = ".db"
	}
	return dir, stem, ext
}

// parseStamp splits a backup name stamp into its time and same-second sequence.
func parseStamp(stamp string) (time.Time, int, error) {
	seq := 1
	if len(stamp) > len(BackupTimeFormat) {
		n, err := strconv.Atoi(strings.TrimPrefix(stamp[len(BackupTimeFormat):], "_"))
		if err != nil || stamp[len(BackupTimeFormat)] != '_' || n < 2 {
			return time.Time{}, 0, fmt.Errorf("bad backup suffix in %q", stamp)
		}
		seq, stamp = n, stamp[:len(BackupTimeFormat)]
	}
	t, err := time.ParseInLocation(BackupTimeFormat, stamp, time.Local)
	return t, seq, err
}

// Backup describes an existing backup file.
type Backup struct {
	Path    string
	Size    int64
	TakenAt time.Time
}

// ListBackups returns the backups of dbPath found in dir, newest first.
// Files whose names do not carry a backup timestamp are ignored.
func ListBackups(dir, dbPath string) ([]Backup, error) {
	dir, stem, ext := backupParts(dir, dbPath)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var backups []Backup
	seqs := map[string]int{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, stem+"_") || !strings.HasSuffix(name, ext) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, stem+"_"), ext)
		takenAt, seq, err := parseStamp(stamp)
		if err != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat backup %s: %w", name, err)
		}
		path := filepath.Join(dir, name)
		seqs[path] = seq
		backups = append(backups, Backup{Path: path, Size: info.Size(), TakenAt: takenAt})
	}

	sort.Slice(backups, func(i, j int) bool {
		if !backups[i].TakenAt.Equal(backups[j].TakenAt) {
			return backups[i].TakenAt.After(backups[j].TakenAt)
		}
		return seqs[backups[i].Path] > seqs[backups[j].Path]
	})
	return backups, nil
}
