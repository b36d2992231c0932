package market

const (
	operationReserve     = "reserve"
	operationRelease     = "release"
	operationAdminAdjust = "admin_adjust"
	operationSetStock    = "set_stock"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	// DefaultMaxRetryLock bounds immediate CAS retries on version conflicts.
	DefaultMaxRetryLock = 3
)
