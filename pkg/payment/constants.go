package payment

const (
	defaultMinimumQuantity = 5
	defaultPricePerTicket  = 1000
	defaultListLimit       = 20
	maxListLimit           = 100

	externalOrderPrefix = "TICKET-"

	statusSettlement = "settlement"
	statusCapture    = "capture"
	statusCancel     = "cancel"
	statusDeny       = "deny"
	statusExpire     = "expire"
	statusFailure    = "failure"
	fraudAccept      = "accept"

	purchaseDescriptionFormat = "purchase of %d tickets (%s)"
)
