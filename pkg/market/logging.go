package market

import "context"

// OperationLogger records domain-level events emitted by ledger mutations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a state-changing stock operation.
type OperationLog struct {
	Operation string
	ProductID ProductID
	Quantity  int
	Version   int64
	Available int
	Status    string
	Error     error
}
