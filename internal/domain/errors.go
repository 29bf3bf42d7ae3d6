package domain

import "fmt"

// SchemaError reports a required canonical field with no mapped source
// column. It is the only fatal normalization failure; every other
// per-record issue is absorbed into a best-effort default.
type SchemaError struct {
	Field string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("required field %q has no mapped source column", e.Field)
}
