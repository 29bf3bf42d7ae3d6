// Package normalize converts raw heterogeneous rows into canonical
// Transaction records.
//
// Policy: a compliance scan over a large, messy dataset must always
// complete. The only fatal failure is a required canonical field with no
// mapped source column; unparsable numerics default to 0 and missing
// optional columns leave their zero value.
package normalize

import (
	"math"
	"strconv"
	"strings"

	"github.com/opensource-finance/shrike/internal/domain"
)

// requiredFields must have a mapped source column for normalization to
// proceed at all.
var requiredFields = []string{
	domain.FieldAccount,
	domain.FieldAmount,
	domain.FieldType,
}

// Normalize converts ordered raw rows into Transactions using the given
// column mapping. Row order is preserved and each transaction's Index is
// its 0-based row position; the index is assigned exactly once here and
// never recomputed from row content.
func Normalize(rows []domain.RawRow, mapping domain.ColumnMapping) ([]domain.Transaction, error) {
	for _, field := range requiredFields {
		if mapping[field] == "" {
			return nil, &domain.SchemaError{Field: field}
		}
	}

	txs := make([]domain.Transaction, 0, len(rows))
	for i, row := range rows {
		tx := domain.Transaction{
			Index:               i,
			Step:                number(row, mapping, domain.FieldStep),
			Type:                text(row, mapping, domain.FieldType),
			Amount:              number(row, mapping, domain.FieldAmount),
			Account:             text(row, mapping, domain.FieldAccount),
			Recipient:           text(row, mapping, domain.FieldRecipient),
			OriginBalanceBefore: number(row, mapping, domain.FieldOriginBalanceBefore),
			OriginBalanceAfter:  number(row, mapping, domain.FieldOriginBalanceAfter),
			DestBalanceBefore:   number(row, mapping, domain.FieldDestBalanceBefore),
			DestBalanceAfter:    number(row, mapping, domain.FieldDestBalanceAfter),
		}

		if col := mapping[domain.FieldIsFraud]; col != "" {
			if raw, ok := row[col]; ok {
				tx.IsFraud = truthy(raw)
				tx.Labeled = true
			}
		}

		txs = append(txs, tx)
	}

	return txs, nil
}

// text returns the raw cell for a mapped field, trimmed.
func text(row domain.RawRow, mapping domain.ColumnMapping, field string) string {
	col := mapping[field]
	if col == "" {
		return ""
	}
	return strings.TrimSpace(row[col])
}

// number parses a mapped cell as a float. Parse failures resolve to 0
// rather than failing the row; NaN and infinities are rejected the same
// way so they never propagate into comparisons.
func number(row domain.RawRow, mapping domain.ColumnMapping, field string) float64 {
	raw := text(row, mapping, field)
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// truthy interprets a ground-truth label cell.
func truthy(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y":
		return true
	default:
		return false
	}
}
