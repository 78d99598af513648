package models

// ReferenceReport counts, per reference kind, the records still pointing at
// an entity. A hard delete is only allowed when every count is zero.
type ReferenceReport struct {
	TransactionLines   int `json:"transaction_lines"`
	TransactionHeaders int `json:"transaction_headers"`
	Relationships      int `json:"relationships"`
}

// Total returns the number of references across all kinds.
func (r ReferenceReport) Total() int {
	return r.TransactionLines + r.TransactionHeaders + r.Relationships
}
