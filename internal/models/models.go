package models

import "time"

// OperationKind identifies the cashier operation that produced an audit row.
type OperationKind string

const (
	OperationKindCashIn              OperationKind = "cash_in"
	OperationKindCashInPremint       OperationKind = "cash_in_premint"
	OperationKindCashInPremintRevoke OperationKind = "cash_in_premint_revoke"
	OperationKindCashOutRequest      OperationKind = "cash_out_request"
	OperationKindCashOutConfirm      OperationKind = "cash_out_confirm"
	OperationKindCashOutReverse      OperationKind = "cash_out_reverse"
	OperationKindCashOutInternal     OperationKind = "cash_out_internal"
	OperationKindCashOutForced       OperationKind = "cash_out_forced"
)

// OperationEvent is the durable audit row written once per successful state
// transition. Rows are append-only; there is no delete path.
type OperationEvent struct {
	ID        string        `json:"id" gorm:"primaryKey"` // UUID
	Kind      OperationKind `json:"kind" gorm:"not null;index:idx_kind_created"`
	TxID      string        `json:"tx_id" gorm:"column:tx_id;size:66;not null;index:idx_tx_id"`
	Account   string        `json:"account" gorm:"size:42;not null;index:idx_account"`
	Amount    string        `json:"amount" gorm:"not null"` // decimal string
	Status    string        `json:"status" gorm:"not null"` // resulting record status
	Shard     int           `json:"shard" gorm:"not null"`
	Operator  string        `json:"operator" gorm:"size:64"`
	CreatedAt time.Time     `json:"created_at" gorm:"index:idx_kind_created"`
}
