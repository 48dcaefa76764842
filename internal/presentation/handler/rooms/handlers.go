package rooms

import (
	"errors"
	"net/http"
	"slices"

	"github.com/ferelith/alarmroom/internal/infrastructure/json"
	"github.com/ferelith/alarmroom/internal/infrastructure/ws"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Handler struct {
	core     *ws.Core
	upgrader websocket.Upgrader
	logger   *zap.SugaredLogger
}

func NewHandler(core *ws.Core, allowedOrigins []string, logger *zap.SugaredLogger) *Handler {
	return &Handler{
		core: core,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if slices.Contains(allowedOrigins, "*") {
					return true
				}
				return slices.Contains(allowedOrigins, r.Header.Get("Origin"))
			},
		},
		logger: logger,
	}
}

// ConnectHandler upgrades the connection and starts its pumps. The client is
// unbound until it sends a join-room command over the socket.
func (h *Handler) ConnectHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorw("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	client := ws.NewClient(conn, uuid.NewString())
	h.core.Register(client)

	go client.WritePump()
	go client.ReadPump(h.core)

	h.logger.Infow("client connected", "client", client.ID, "remote", r.RemoteAddr)
}

// GetRoomHandler returns the current room snapshot. Read-only; useful for
// debugging and for clients that want state before opening a socket.
func (h *Handler) GetRoomHandler(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	if roomID == "" {
		json.WriteValidationError(w, errors.New("room ID is missing"))
		return
	}

	snapshot, ok := h.core.Snapshot(r.Context(), roomID)
	if !ok {
		json.WriteNotFoundError(w, "Room not found")
		return
	}

	json.Write(w, http.StatusOK, snapshot)
}
