package quarantine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ruslano69/tdtp-migrator/pkg/session"
)

// Config - выгрузка карантина (секция quarantine конфигурации, без брокера)
type Config struct {
	// ExportDir - каталог для копий выгрузок; пустой - не сохранять
	ExportDir string   `yaml:"export_dir" json:"exportDir"`
	S3        S3Config `yaml:"s3" json:"s3"`
}

// Artifact - готовая выгрузка
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
	Count       int

	// Path - копия в ExportDir, Location - объект в S3 (если настроены)
	Path     string
	Location string
}

// Uploader - получатель выгрузок (S3Uploader)
type Uploader interface {
	Upload(ctx context.Context, name, contentType string, body io.Reader) (string, error)
}

// Exporter собирает выгрузку failed-строк сессии и раскладывает ее
// по настроенным местам хранения
type Exporter struct {
	dir      string
	uploader Uploader
	now      func() time.Time
}

// NewExporter; uploader может быть nil
func NewExporter(dir string, uploader Uploader) *Exporter {
	return &Exporter{dir: dir, uploader: uploader, now: time.Now}
}

// FileName - quarantine-<session>-<yyyymmddThhmmss>.<ext>
func FileName(sessionID uuid.UUID, format Format, at time.Time) string {
	return fmt.Sprintf("quarantine-%s-%s.%s", sessionID, at.UTC().Format("20060102T150405"), format)
}

// Export сериализует строки; ошибки сохранения копий возвращаются,
// так как вызывающий явно запросил выгрузку
func (e *Exporter) Export(ctx context.Context, sessionID uuid.UUID, format Format, rows []session.FailedRow) (Artifact, error) {
	records := FromSession(sessionID, rows)
	var buf bytes.Buffer
	if err := Write(&buf, format, records); err != nil {
		return Artifact{}, err
	}

	a := Artifact{
		Name:        FileName(sessionID, format, e.now()),
		ContentType: format.ContentType(),
		Data:        buf.Bytes(),
		Count:       len(records),
	}

	if e.dir != "" {
		if err := os.MkdirAll(e.dir, 0o755); err != nil {
			return a, fmt.Errorf("export dir: %w", err)
		}
		a.Path = filepath.Join(e.dir, a.Name)
		if err := os.WriteFile(a.Path, a.Data, 0o644); err != nil {
			return a, fmt.Errorf("write %s: %w", a.Path, err)
		}
	}

	if e.uploader != nil {
		loc, err := e.uploader.Upload(ctx, a.Name, a.ContentType, bytes.NewReader(a.Data))
		if err != nil {
			return a, err
		}
		a.Location = loc
	}

	log.Info().
		Str("session", sessionID.String()).
		Str("format", string(format)).
		Int("rows", a.Count).
		Str("path", a.Path).
		Str("location", a.Location).
		Msg("quarantine exported")
	return a, nil
}
