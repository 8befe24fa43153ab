package report

import (
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/maloquacious/schemactl/internal/store"
)

type backupRow struct {
	Path    string    `json:"path" yaml:"path"`
	Size    int64     `json:"size" yaml:"size"`
	TakenAt time.Time `json:"taken_at" yaml:"taken_at"`
}

// WriteBackups renders a backup listing. Table output shows human-readable
// sizes and ages relative to now.
func WriteBackups(w io.Writer, format Format, backups []store.Backup, now time.Time) error {
	rows := make([]backupRow, len(backups))
	for i, b := range backups {
		rows[i] = backupRow{Path: b.Path, Size: b.Size, TakenAt: b.TakenAt}
	}
	switch DetectFormat(format) {
	case FormatJSON:
		return writeJSON(w, rows)
	case FormatYAML:
		return writeYAML(w, rows)
	}

	data := make([][]string, len(backups))
	for i, b := range backups {
		data[i] = []string{b.Path, humanize.Bytes(uint64(b.Size)), humanize.RelTime(b.TakenAt, now, "ago", "from now")}
	}
	return writeTable(w, []string{"Backup", "Size", "Taken"}, data)
}
