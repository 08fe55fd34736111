package httpapi

import (
	"errors"
	"net/http"

	"github.com/MarkoPoloResearchLab/ticketengine/internal/config"
	"github.com/MarkoPoloResearchLab/ticketengine/pkg/availability"
	"github.com/MarkoPoloResearchLab/ticketengine/pkg/delivery"
	"github.com/MarkoPoloResearchLab/ticketengine/pkg/identity"
	"github.com/MarkoPoloResearchLab/ticketengine/pkg/ledger"
	"github.com/MarkoPoloResearchLab/ticketengine/pkg/payment"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Stable error kinds returned in the error envelope.
const (
	kindValidation          = "validation_error"
	kindUnauthorized        = "unauthorized"
	kindForbidden           = "forbidden"
	kindProfileNotApproved  = "profile_not_approved"
	kindInvalidSignature    = "invalid_signature"
	kindNotFound            = "not_found"
	kindInsufficientFunds   = "insufficient_funds"
	kindInsufficientTickets = "insufficient_tickets"
	kindConflict            = "conflict"
	kindGatewayFailure      = "gateway_failure"
	kindStorageFailure      = "storage_failure"
)

type errorKind struct {
	code   string
	status int
}

type errorRule struct {
	targets []error
	kind    errorKind
}

// Order matters: the more specific rules come first.
var errorRules = []errorRule{
	{targets: []error{identity.ErrUnauthorized}, kind: errorKind{kindUnauthorized, http.StatusUnauthorized}},
	{targets: []error{availability.ErrProfileNotApproved}, kind: errorKind{kindProfileNotApproved, http.StatusForbidden}},
	{targets: []error{payment.ErrInvalidSignature}, kind: errorKind{kindInvalidSignature, http.StatusForbidden}},
	{targets: []error{identity.ErrForbidden}, kind: errorKind{kindForbidden, http.StatusForbidden}},
	{targets: []error{
		delivery.ErrOrderNotFound,
		delivery.ErrRatingNotFound,
		payment.ErrUnknownTicketOrder,
		availability.ErrProfileNotFound,
	}, kind: errorKind{kindNotFound, http.StatusNotFound}},
	{targets: []error{ledger.ErrInsufficientFunds}, kind: errorKind{kindInsufficientFunds, http.StatusConflict}},
	{targets: []error{availability.ErrInsufficientTickets}, kind: errorKind{kindInsufficientTickets, http.StatusConflict}},
	{targets: []error{
		delivery.ErrTerminalOrder,
		delivery.ErrInvalidTransition,
		delivery.ErrStaleOrder,
		delivery.ErrOrderNotCompleted,
		delivery.ErrRatingExists,
		payment.ErrTicketOrderClosed,
		ledger.ErrDuplicateReference,
	}, kind: errorKind{kindConflict, http.StatusConflict}},
	{targets: []error{
		identity.ErrInvalidRole,
		ledger.ErrInvalidUserID,
		ledger.ErrInvalidQuantity,
		ledger.ErrInvalidAdjustment,
		ledger.ErrInvalidTransactionType,
		payment.ErrInvalidNotification,
		payment.ErrInvalidQuantity,
		payment.ErrInvalidPaymentMethod,
		delivery.ErrInvalidStatus,
		delivery.ErrInvalidOrderType,
		delivery.ErrInvalidOrder,
		delivery.ErrInvalidScore,
		availability.ErrInvalidStatus,
		availability.ErrInvalidPatch,
		config.ErrDistanceOutOfRange,
		errInvalidPayload,
	}, kind: errorKind{kindValidation, http.StatusBadRequest}},
	{targets: []error{payment.ErrGatewayFailure}, kind: errorKind{kindGatewayFailure, http.StatusBadGateway}},
}

var errInvalidPayload = errors.New("invalid payload")

func classifyError(err error) errorKind {
	for _, rule := range errorRules {
		for _, target := range rule.targets {
			if errors.Is(err, target) {
				return rule.kind
			}
		}
	}
	return errorKind{kindStorageFailure, http.StatusInternalServerError}
}

// respondError writes the envelope for err. Unclassified failures are logged and answered with a
// generic message.
func (handler *httpHandler) respondError(ctx *gin.Context, err error) {
	kind := classifyError(err)
	message := err.Error()
	switch kind.code {
	case kindStorageFailure:
		handler.logger.Error("request failed",
			zap.String("method", ctx.Request.Method),
			zap.String("path", ctx.FullPath()),
			zap.Error(err),
		)
		message = "internal error"
	case kindGatewayFailure:
		handler.logger.Warn("gateway failure", zap.Error(err))
		message = "payment gateway unavailable"
	case kindUnauthorized:
		message = "missing or invalid session"
	case kindInvalidSignature:
		message = "notification rejected"
	}
	ctx.AbortWithStatusJSON(kind.status, errorResponse(kind.code, message))
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}
