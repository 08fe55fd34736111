package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/MarkoPoloResearchLab/ticketengine/internal/config"
	"github.com/MarkoPoloResearchLab/ticketengine/pkg/identity"
	"github.com/MarkoPoloResearchLab/ticketengine/pkg/ledger"
	"github.com/MarkoPoloResearchLab/ticketengine/pkg/payment"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultHistoryLimit     = 20
	maxNotificationBodySize = 64 << 10
)

func (handler *httpHandler) handlePricing(ctx *gin.Context) {
	response := gin.H{"bands": handler.cfg.PricingBands}
	if raw := strings.TrimSpace(ctx.Query("distance_km")); raw != "" {
		distance, err := decimal.NewFromString(raw)
		if err != nil {
			handler.respondError(ctx, fmt.Errorf("%w: distance_km must be a number", errInvalidPayload))
			return
		}
		fee, err := config.Quote(handler.cfg.PricingBands, distance)
		if err != nil {
			handler.respondError(ctx, err)
			return
		}
		response["distance_km"] = distance
		response["fee"] = fee
	}
	ctx.JSON(http.StatusOK, response)
}

// handlePaymentNotification acknowledges every authentic event with 200 so the gateway stops
// retrying. Only a bad signature or a storage failure is reported as an error.
func (handler *httpHandler) handlePaymentNotification(ctx *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(ctx.Request.Body, maxNotificationBodySize))
	if err != nil {
		handler.respondError(ctx, fmt.Errorf("%w: unreadable body", errInvalidPayload))
		return
	}
	notification, err := payment.ParseNotification(raw)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	outcome, err := handler.services.Payments.HandleNotification(ctx.Request.Context(), notification)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "ok", "outcome": string(outcome)})
}

func (handler *httpHandler) handleBalance(ctx *gin.Context) {
	actor := actorFrom(ctx)
	userID, err := ledger.NewUserID(actor.UserID)
	if err != nil {
		handler.respondError(ctx, identity.ErrUnauthorized)
		return
	}
	balance, err := handler.services.Ledger.Balance(ctx.Request.Context(), userID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"user_id": userID.String(), "balance": balance.Int64()})
}

func (handler *httpHandler) handleTransactions(ctx *gin.Context) {
	actor := actorFrom(ctx)
	userID, err := ledger.NewUserID(actor.UserID)
	if err != nil {
		handler.respondError(ctx, identity.ErrUnauthorized)
		return
	}
	limit, err := queryLimit(ctx)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	transactions, err := handler.services.Ledger.ListTransactions(ctx.Request.Context(), userID, limit)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"transactions": newTransactionPayloads(transactions)})
}

func (handler *httpHandler) handleCreatePurchase(ctx *gin.Context) {
	var request purchaseRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		handler.respondError(ctx, fmt.Errorf("%w: expected JSON body", errInvalidPayload))
		return
	}
	method, err := payment.ParsePaymentMethod(request.PaymentMethod)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	order, err := handler.services.Payments.CreatePurchase(ctx.Request.Context(), actorFrom(ctx), request.Quantity, method)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"order": newTicketOrderPayload(order)})
}

func (handler *httpHandler) handleListPurchases(ctx *gin.Context) {
	limit, err := queryLimit(ctx)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	orders, err := handler.services.Payments.ListTicketOrders(ctx.Request.Context(), actorFrom(ctx), limit)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	payloads := make([]ticketOrderPayload, 0, len(orders))
	for _, order := range orders {
		payloads = append(payloads, newTicketOrderPayload(order))
	}
	ctx.JSON(http.StatusOK, gin.H{"orders": payloads})
}

func (handler *httpHandler) handleGetPurchase(ctx *gin.Context) {
	order, err := handler.services.Payments.GetTicketOrder(ctx.Request.Context(), actorFrom(ctx), ctx.Param("id"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"order": newTicketOrderPayload(order)})
}

// handleConsume spends the caller's own tickets, for example when a driver accepts a job.
func (handler *httpHandler) handleConsume(ctx *gin.Context) {
	actor := actorFrom(ctx)
	if err := actor.Require(identity.RoleDriver, identity.RoleStore); err != nil {
		handler.respondError(ctx, err)
		return
	}
	var request consumeRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		handler.respondError(ctx, fmt.Errorf("%w: expected JSON body", errInvalidPayload))
		return
	}
	userID, err := ledger.NewUserID(actor.UserID)
	if err != nil {
		handler.respondError(ctx, identity.ErrUnauthorized)
		return
	}
	quantity, err := ledger.NewQuantity(request.Quantity)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	balance, err := handler.services.Ledger.Debit(ctx.Request.Context(), userID, quantity, request.Description)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"user_id": userID.String(), "balance": balance.Int64()})
}

func (handler *httpHandler) handleAdjust(ctx *gin.Context) {
	actor := actorFrom(ctx)
	if err := actor.Require(identity.RoleAdmin); err != nil {
		handler.respondError(ctx, err)
		return
	}
	var request adjustRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		handler.respondError(ctx, fmt.Errorf("%w: expected JSON body", errInvalidPayload))
		return
	}
	userID, err := ledger.NewUserID(request.UserID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	balance, err := handler.services.Ledger.Adjust(ctx.Request.Context(), userID, request.Delta, request.Description)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	handler.logger.Info("ticket balance adjusted",
		zap.String("admin_id", actor.UserID),
		zap.String("user_id", userID.String()),
		zap.Int64("delta", request.Delta),
	)
	ctx.JSON(http.StatusOK, gin.H{"user_id": userID.String(), "balance": balance.Int64()})
}

func (handler *httpHandler) handleAudit(ctx *gin.Context) {
	if err := actorFrom(ctx).Require(identity.RoleAdmin); err != nil {
		handler.respondError(ctx, err)
		return
	}
	userID, err := ledger.NewUserID(ctx.Param("userId"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	audit, err := handler.services.Ledger.Audit(ctx.Request.Context(), userID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"user_id":    audit.UserID.String(),
		"balance":    audit.Balance.Int64(),
		"ledger_sum": audit.LedgerSum.Int64(),
		"consistent": audit.Consistent(),
	})
}

func queryLimit(ctx *gin.Context) (int, error) {
	raw := strings.TrimSpace(ctx.Query("limit"))
	if raw == "" {
		return defaultHistoryLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("%w: limit must be a positive integer", errInvalidPayload)
	}
	return limit, nil
}
