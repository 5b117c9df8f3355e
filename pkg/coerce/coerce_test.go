package coerce

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ruslano69/tdtp-migrator/pkg/schema"
)

func col(name string, kind schema.Kind) schema.ColumnMeta {
	return schema.ColumnMeta{Name: name, Kind: kind, Nullable: true}
}

func TestConvertNull(t *testing.T) {
	for k := schema.KindOther; k <= schema.KindChar; k++ {
		got, err := Convert(col("c", k), nil)
		if err != nil || got != nil {
			t.Errorf("kind %s: Convert(nil) = %v, %v", k, got, err)
		}
	}
}

func TestConvertIntegerOverflow(t *testing.T) {
	_, err := Convert(col("cantidad", schema.KindInteger), "99999999999999999999")
	if err == nil {
		t.Fatal("expected overflow error")
	}
	var ce *ConversionError
	if !errors.As(err, &ce) || ce.Column != "cantidad" {
		t.Fatalf("expected *ConversionError for column cantidad, got %v", err)
	}
	if !errors.Is(err, ErrConversion) {
		t.Error("errors.Is(err, ErrConversion) must be true")
	}

	got, err := Convert(col("n", schema.KindInteger), "1.234")
	if err != nil || got != int32(1234) {
		t.Errorf("integer with thousands separator = %v, %v", got, err)
	}
	if _, err := Convert(col("n", schema.KindInteger), "12,5"); err == nil {
		t.Error("fractional value must not be truncated")
	}
}

func TestConvertNumeric(t *testing.T) {
	got, err := Convert(col("big", schema.KindBigInt), "9000000000")
	if err != nil || got != int64(9000000000) {
		t.Errorf("bigint = %v, %v", got, err)
	}

	got, err = Convert(col("precio", schema.KindDecimal), "1.234,56")
	if err != nil || !got.(decimal.Decimal).Equal(decimal.RequireFromString("1234.56")) {
		t.Errorf("decimal = %v, %v", got, err)
	}
	got, err = Convert(col("precio", schema.KindDecimal), 0.1)
	if err != nil || got.(decimal.Decimal).String() != "0.1" {
		t.Errorf("decimal from float must keep its shortest representation: %v, %v", got, err)
	}

	got, err = Convert(col("f", schema.KindFloat), "2,5")
	if err != nil || got != 2.5 {
		t.Errorf("float = %v, %v", got, err)
	}
	if _, err := Convert(col("f", schema.KindFloat), "abc"); err == nil {
		t.Error("float abc: expected error")
	}
}

func TestConvertUUIDAndJSON(t *testing.T) {
	id := "6f1c1b9e-4b6a-4f5e-9a3e-2a9c1d5e7b10"
	got, err := Convert(col("id", schema.KindUUID), id)
	if err != nil || got != uuid.MustParse(id) {
		t.Errorf("uuid = %v, %v", got, err)
	}
	if _, err := Convert(col("id", schema.KindUUID), "not-a-uuid"); !errors.Is(err, ErrConversion) {
		t.Errorf("bad uuid: %v", err)
	}

	raw := `{"a":1`
	got, err = Convert(col("meta", schema.KindJSON), raw)
	if err != nil || got != raw {
		t.Errorf("json must pass through unvalidated: %v, %v", got, err)
	}
}

func TestConvertBoolean(t *testing.T) {
	for in, want := range map[any]bool{"sí": true, "N": false, int64(3): true, 0: false, true: true} {
		got, err := Convert(col("b", schema.KindBoolean), in)
		if err != nil || got != want {
			t.Errorf("bool(%v) = %v, %v", in, got, err)
		}
	}
	if _, err := Convert(col("b", schema.KindBoolean), "quizas"); err == nil {
		t.Error("expected error for unknown token")
	}
}

func TestConvertTemporal(t *testing.T) {
	a := New(time.UTC)

	got, err := a.Convert(col("d", schema.KindDate), "2024-02-29")
	if err != nil || !got.(time.Time).Equal(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("iso date = %v, %v", got, err)
	}
	got, err = a.Convert(col("d", schema.KindDate), "29/02/2024")
	if err != nil || !got.(time.Time).Equal(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("dd/MM/yyyy date = %v, %v", got, err)
	}
	got, _ = a.Convert(col("d", schema.KindDate), time.Date(2024, 2, 29, 22, 10, 0, 0, time.UTC))
	if !got.(time.Time).Equal(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("native date = %v", got)
	}
	if _, err := a.Convert(col("d", schema.KindDate), "2024/02/29"); err == nil {
		t.Error("expected error for unsupported date format")
	}

	want := time.Date(2024, 5, 1, 10, 20, 30, 0, time.UTC)
	for _, s := range []string{
		"2024-05-01T10:20:30",
		"2024-05-01T12:20:30+02:00",
		"2024-05-01 10:20:30",
		"01/05/2024 10:20:30",
	} {
		got, err := a.Convert(col("ts", schema.KindTimestampTZ), s)
		if err != nil || !got.(time.Time).Equal(want) {
			t.Errorf("timestamp %q = %v, %v", s, got, err)
		}
	}
	if _, err := a.Convert(col("ts", schema.KindTimestamp), "ayer"); err == nil {
		t.Error("expected error for unparsable timestamp")
	}
}

func TestConvertChar(t *testing.T) {
	c := schema.ColumnMeta{Name: "codigo", Kind: schema.KindChar, Size: 5}

	got, err := Convert(c, "ñandú")
	if err != nil || got != "ñandú" {
		t.Errorf("5 runes fit varchar(5): %v, %v", got, err)
	}
	_, err = Convert(c, "123456")
	var ce *ConversionError
	if !errors.As(err, &ce) || ce.Reason != "exceeds max length (5)" {
		t.Errorf("overflow: %v", err)
	}

	got, _ = Convert(c, int64(42))
	if got != "42" {
		t.Errorf("stringify = %v", got)
	}
}

func TestConvertOtherPassThrough(t *testing.T) {
	v := []byte{1, 2, 3}
	got, err := Convert(col("blob", schema.KindOther), v)
	if err != nil || len(got.([]byte)) != 3 {
		t.Errorf("other = %v, %v", got, err)
	}
}
