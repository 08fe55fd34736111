package payment

import "strings"

// Classification groups raw gateway statuses by their effect on a ticket order.
type Classification string

const (
	ClassificationSuccess      Classification = "success"
	ClassificationCancellation Classification = "cancellation"
	ClassificationIntermediate Classification = "intermediate"
)

// Classify maps a notification to the effect it has on a pending order. A capture only counts as
// success when the fraud check accepted it or reported nothing. Statuses compare case-insensitively.
func Classify(notification Notification) Classification {
	fraudStatus := normalizeStatus(notification.FraudStatus)
	switch normalizeStatus(notification.TransactionStatus) {
	case statusSettlement:
		return ClassificationSuccess
	case statusCapture:
		if fraudStatus == "" || fraudStatus == fraudAccept {
			return ClassificationSuccess
		}
		return ClassificationIntermediate
	case statusCancel, statusDeny, statusExpire, statusFailure:
		return ClassificationCancellation
	default:
		return ClassificationIntermediate
	}
}

func normalizeStatus(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
