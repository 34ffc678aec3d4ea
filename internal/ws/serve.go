package ws

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"chat-relay/internal/observability"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades HTTP requests into relay connections.
type Handler struct {
	hub   *Hub
	relay *Relay
}

// NewHandler constructs a Handler.
func NewHandler(hub *Hub, relay *Relay) *Handler {
	return &Handler{hub: hub, relay: relay}
}

// Handle upgrades the connection and starts its pumps. The connection starts
// unauthenticated; identity arrives with the join command.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("chat-relay/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := newClient(uuid.NewString(), conn, observability.IPFromRequest(c.Request))
	h.hub.Register(client)

	go client.writePump()
	go client.readPump(h.relay)
}
