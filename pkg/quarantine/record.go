// Package quarantine - строки, исчерпавшие попытки загрузки: отпечаток,
// выгрузка в XLSX или сжатый JSONL, загрузка выгрузки в S3.
package quarantine

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"

	"github.com/ruslano69/tdtp-migrator/pkg/extract"
	"github.com/ruslano69/tdtp-migrator/pkg/session"
)

// Record - строка карантина вместе с сессией и отпечатком
type Record struct {
	Session     uuid.UUID   `json:"session"`
	Fingerprint string      `json:"fingerprint"`
	Row         extract.Row `json:"row"`
	Error       string      `json:"error"`
	Attempts    int         `json:"attempts"`
	FailedAt    time.Time   `json:"failedAt"`
}

// FromFailed строит запись карантина из строки сессии
func FromFailed(sessionID uuid.UUID, f session.FailedRow) Record {
	return Record{
		Session:     sessionID,
		Fingerprint: Fingerprint(f.Row),
		Row:         f.Row,
		Error:       f.Error,
		Attempts:    f.Attempts,
		FailedAt:    f.FailedAt,
	}
}

// FromSession переводит все строки failed сессии в записи карантина
func FromSession(sessionID uuid.UUID, rows []session.FailedRow) []Record {
	out := make([]Record, len(rows))
	for i, f := range rows {
		out[i] = FromFailed(sessionID, f)
	}
	return out
}

// Fingerprint - xxh3 (64-bit) от JSON строки, 16 hex-символов.
// Одинаковые строки источника дают одинаковый отпечаток, это ключ
// дедупликации у потребителей карантина.
func Fingerprint(row extract.Row) string {
	data, err := json.Marshal(row)
	if err != nil {
		data = []byte(fmt.Sprint(row.Map()))
	}
	return fmt.Sprintf("%016x", xxh3.Hash(data))
}
