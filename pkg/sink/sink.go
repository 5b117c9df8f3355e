// Package sink - пути записи строки источника в назначение.
//
// Контракты:
//   - FLAT:   маппинг в колонки и плоская вставка в таблицу (loader.TableLoader)
//   - NESTED: маппинг в товар с остатками (loader.ProductLoader)
//   - HTTP:   POST товара в API целевой системы
package sink

import (
	"context"
	"fmt"
	"strings"

	"github.com/ruslano69/tdtp-migrator/pkg/extract"
	"github.com/ruslano69/tdtp-migrator/pkg/loader"
)

// Contract - вид записи в назначение
type Contract string

const (
	ContractFlat   Contract = "FLAT"
	ContractNested Contract = "NESTED"
	ContractHTTP   Contract = "HTTP"
)

// ParseContract разбирает имя контракта без учета регистра; пустое - FLAT
func ParseContract(s string) (Contract, error) {
	switch c := Contract(strings.ToUpper(strings.TrimSpace(s))); c {
	case "":
		return ContractFlat, nil
	case ContractFlat, ContractNested, ContractHTTP:
		return c, nil
	}
	return "", fmt.Errorf("unknown destination contract %q (expected FLAT, NESTED or HTTP)", s)
}

// Sink записывает одну строку источника.
//
// Ошибки уровня строки (маппинг, конвертация, БД) возвращаются как Result
// с Success=false. error означает сбой транспорта или соединения;
// для очереди сессии обе ситуации - неудачная попытка.
type Sink interface {
	Write(ctx context.Context, row extract.Row, dryRun bool) (loader.Result, error)
	Contract() Contract
}
