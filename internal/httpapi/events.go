package httpapi

import (
	"io"
	"time"

	"github.com/MarkoPoloResearchLab/ticketengine/pkg/fanout"
	"github.com/MarkoPoloResearchLab/ticketengine/pkg/identity"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const keepAliveInterval = 25 * time.Second

// handleEvents streams refresh signals as Server-Sent Events. Admins receive every signal, everyone
// else only the signals addressed to them.
func (handler *httpHandler) handleEvents(ctx *gin.Context) {
	actor := actorFrom(ctx)
	requestCtx := ctx.Request.Context()
	var signals <-chan fanout.Signal
	if actor.Is(identity.RoleAdmin) {
		signals = handler.services.Hub.SubscribeAll(requestCtx)
	} else {
		signals = handler.services.Hub.Subscribe(requestCtx, actor.UserID)
	}

	ctx.Header("Content-Type", "text/event-stream")
	ctx.Header("Cache-Control", "no-cache")
	ctx.Header("Connection", "keep-alive")
	ctx.Header("X-Accel-Buffering", "no")
	ctx.SSEvent("connected", gin.H{"user_id": actor.UserID, "role": actor.Role.String()})
	ctx.Writer.Flush()
	handler.logger.Debug("event stream opened", zap.String("user_id", actor.UserID))

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()
	ctx.Stream(func(writer io.Writer) bool {
		select {
		case signal, ok := <-signals:
			if !ok {
				return false
			}
			ctx.SSEvent(signal.Topic, signal)
			return true
		case <-keepAlive.C:
			_, _ = io.WriteString(writer, ": keep-alive\n\n")
			return true
		case <-requestCtx.Done():
			return false
		}
	})
	handler.logger.Debug("event stream closed", zap.String("user_id", actor.UserID))
}
