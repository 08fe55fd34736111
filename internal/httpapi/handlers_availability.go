package httpapi

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

func (handler *httpHandler) handleGetAvailability(ctx *gin.Context) {
	record, err := handler.services.Availability.GetAvailability(ctx.Request.Context(), actorFrom(ctx))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"availability": newAvailabilityPayload(record)})
}

func (handler *httpHandler) handleSetAvailability(ctx *gin.Context) {
	var request availabilityRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		handler.respondError(ctx, fmt.Errorf("%w: expected JSON body", errInvalidPayload))
		return
	}
	patch, err := request.patch()
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	record, err := handler.services.Availability.SetAvailability(ctx.Request.Context(), actorFrom(ctx), patch)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"availability": newAvailabilityPayload(record)})
}
