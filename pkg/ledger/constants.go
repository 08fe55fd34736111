package ledger

const (
	operationCredit = "credit"
	operationDebit  = "debit"
	operationAdjust = "adjust"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	defaultPurchaseDescription = "ticket purchase"
	defaultConsumeDescription  = "ticket consumption"
	defaultAdjustDescription   = "manual adjustment"

	defaultListLimit = 50
	maxListLimit     = 200
)
