package httpapi

import (
	"fmt"
	"net/http"

	"github.com/MarkoPoloResearchLab/ticketengine/pkg/delivery"
	"github.com/gin-gonic/gin"
)

func (handler *httpHandler) handleCreateOrder(ctx *gin.Context) {
	var request createOrderRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		handler.respondError(ctx, fmt.Errorf("%w: expected JSON body", errInvalidPayload))
		return
	}
	orderType, err := delivery.ParseOrderType(request.Type)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	order, err := handler.services.Delivery.Create(ctx.Request.Context(), actorFrom(ctx), delivery.CreateInput{Type: orderType, StoreID: request.StoreID})
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"order": newOrderPayload(order)})
}

func (handler *httpHandler) handleGetOrder(ctx *gin.Context) {
	order, err := handler.services.Delivery.Get(ctx.Request.Context(), actorFrom(ctx), ctx.Param("id"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"order": newOrderPayload(order)})
}

func (handler *httpHandler) handleTransitionOrder(ctx *gin.Context) {
	var request transitionRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		handler.respondError(ctx, fmt.Errorf("%w: expected JSON body", errInvalidPayload))
		return
	}
	status, err := delivery.ParseStatus(request.Status)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	order, err := handler.services.Delivery.Transition(ctx.Request.Context(), ctx.Param("id"), actorFrom(ctx), status)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"order": newOrderPayload(order)})
}

func (handler *httpHandler) handleSubmitRating(ctx *gin.Context) {
	var request ratingRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		handler.respondError(ctx, fmt.Errorf("%w: expected JSON body", errInvalidPayload))
		return
	}
	rating, err := handler.services.Delivery.SubmitRating(ctx.Request.Context(), actorFrom(ctx), ctx.Param("id"), request.Score, request.Comment)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"rating": newRatingPayload(rating)})
}

func (handler *httpHandler) handleGetRating(ctx *gin.Context) {
	rating, err := handler.services.Delivery.GetRating(ctx.Request.Context(), actorFrom(ctx), ctx.Param("id"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"rating": newRatingPayload(rating)})
}
