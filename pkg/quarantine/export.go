package quarantine

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/xuri/excelize/v2"
)

// Format - формат выгрузки карантина
type Format string

const (
	FormatXLSX  Format = "xlsx"
	FormatJSONL Format = "jsonl.zst"
)

// ErrUnknownFormat - неподдерживаемый формат выгрузки
var ErrUnknownFormat = errors.New("unknown export format")

// ParseFormat: пустое значение - xlsx
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatXLSX, nil
	case FormatXLSX, FormatJSONL:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q (supported: xlsx, jsonl.zst)", ErrUnknownFormat, s)
}

// ContentType - MIME-тип выгрузки
func (f Format) ContentType() string {
	if f == FormatJSONL {
		return "application/zstd"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Write пишет записи в w в указанном формате
func Write(w io.Writer, format Format, records []Record) error {
	switch format {
	case FormatXLSX:
		return WriteXLSX(w, records)
	case FormatJSONL:
		return WriteJSONL(w, records)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

const sheetName = "failed"

var fixedHeaders = []string{"session", "fingerprint", "attempts", "failed_at", "error"}

// WriteXLSX - один лист: служебные колонки, затем колонки строк
// источника в порядке первого появления
func WriteXLSX(w io.Writer, records []Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("xlsx: %w", err)
	}

	var rowCols []string
	seen := make(map[string]struct{})
	for _, r := range records {
		for _, c := range r.Row.Columns() {
			if _, ok := seen[c]; !ok {
				seen[c] = struct{}{}
				rowCols = append(rowCols, c)
			}
		}
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#C0504D"}, Pattern: 1},
	})

	headers := append(append([]string{}, fixedHeaders...), rowCols...)
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return fmt.Errorf("xlsx header: %w", err)
		}
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for i, r := range records {
		line := i + 2
		values := []any{r.Session.String(), r.Fingerprint, r.Attempts, r.FailedAt.UTC().Format(time.RFC3339), r.Error}
		for _, c := range rowCols {
			v, _ := r.Row.Get(c)
			values = append(values, cellValue(v))
		}
		cell, _ := excelize.CoordinatesToCellName(1, line)
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("xlsx row %d: %w", line, err)
		}
	}

	for i := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, col, col, 18)
	}
	return f.Write(w)
}

// cellValue приводит значение драйвера к тому, что excelize пишет без потерь
func cellValue(v any) any {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return x.String()
	}
	return v
}

// WriteJSONL - по одной записи JSON на строку, поток сжат zstd
func WriteJSONL(w io.Writer, records []Record) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("zstd encoder: %w", err)
	}
	bw := bufio.NewWriter(enc)
	je := json.NewEncoder(bw)
	for _, r := range records {
		if err := je.Encode(r); err != nil {
			enc.Close()
			return fmt.Errorf("encode record %s: %w", r.Fingerprint, err)
		}
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// ReadJSONL читает выгрузку, записанную WriteJSONL
func ReadJSONL(r io.Reader) ([]Record, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	defer dec.Close()

	var out []Record
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return out, fmt.Errorf("line %d: %w", len(out)+1, err)
		}
		out = append(out, rec)
	}
	return out, sc.Err()
}
