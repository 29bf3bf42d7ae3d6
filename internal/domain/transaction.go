// Package domain defines the core types for Shrike.
package domain

// Transaction is the canonical record evaluated by the rule engine.
// It is produced once by the normalizer and treated as immutable for
// the duration of a scan.
type Transaction struct {
	// Index is the 0-based position of the record in the source dataset,
	// assigned at normalization. It is the sole identifier used downstream.
	Index int `json:"index"`

	// Step is the dataset-native time coordinate (e.g. PaySim hours).
	Step float64 `json:"step"`

	// Type is the transaction category (e.g. "CASH_OUT", "TRANSFER").
	Type string `json:"type"`

	Amount    float64 `json:"amount"`
	Account   string  `json:"account"`   // origin identifier
	Recipient string  `json:"recipient"` // destination identifier

	OriginBalanceBefore float64 `json:"originBalanceBefore"`
	OriginBalanceAfter  float64 `json:"originBalanceAfter"`
	DestBalanceBefore   float64 `json:"destBalanceBefore"`
	DestBalanceAfter    float64 `json:"destBalanceAfter"`

	// IsFraud is the ground-truth label, present only on evaluation
	// datasets. Labeled reports whether the source row carried a label.
	// The rule engine never reads these fields.
	IsFraud bool `json:"isFraud,omitempty"`
	Labeled bool `json:"labeled,omitempty"`
}

// RawRow is one unnormalized record: source column name to raw cell value.
type RawRow map[string]string

// ColumnMapping maps canonical field names to source column names.
// Canonical names match the field constants below.
type ColumnMapping map[string]string

// Canonical field names accepted by rules and column mappings.
const (
	FieldStep                = "step"
	FieldType                = "type"
	FieldAmount              = "amount"
	FieldAccount             = "account"
	FieldRecipient           = "recipient"
	FieldOriginBalanceBefore = "origin_balance_before"
	FieldOriginBalanceAfter  = "origin_balance_after"
	FieldDestBalanceBefore   = "dest_balance_before"
	FieldDestBalanceAfter    = "dest_balance_after"

	// FieldIsFraud is valid in column mappings only; rules may not
	// reference ground truth.
	FieldIsFraud = "is_fraud"
)
