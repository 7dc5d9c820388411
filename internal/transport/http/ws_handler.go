package http

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"trivia-rooms/internal/app"
	"trivia-rooms/internal/domain"
)

type WSHandler struct {
	service  *app.GameService
	hub      *Hub
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.GameService, hub *Hub) *WSHandler {
	return &WSHandler{
		service: service,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// inboundMessage is the flat client-to-server frame. Unused fields stay zero.
type inboundMessage struct {
	Type        string `json:"type"`
	RoomID      string `json:"roomId"`
	PlayerName  string `json:"playerName"`
	AnswerIndex int    `json:"answerIndex"`
}

// ServeWS upgrades the connection and runs the per-player read loop. Each
// connection gets a fresh player id; closing the socket is equivalent to an
// explicit leave_room.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}

	playerID := uuid.NewString()
	h.hub.Register(playerID, conn)
	currentRoom := ""

	defer func() {
		if currentRoom != "" {
			h.service.Leave(currentRoom, playerID)
		}
		h.hub.Unregister(playerID)
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			// keep the connection alive, a bad frame changes no state
			log.Warn().Err(err).Str("player", playerID).Msg("malformed message")
			continue
		}

		switch msg.Type {
		case "create_room":
			// a connection occupies at most one room; switching implies leaving
			if currentRoom != "" {
				h.service.Leave(currentRoom, playerID)
				currentRoom = ""
			}
			snap, err := h.service.CreateRoom(r.Context(), playerID, msg.PlayerName)
			if err != nil {
				h.sendError(playerID, err)
				continue
			}
			currentRoom = snap.RoomID
			h.hub.Unicast(playerID, domain.RoomCreatedEvent{
				Type:     domain.EventRoomCreated,
				RoomID:   snap.RoomID,
				PlayerID: snap.PlayerID,
				IsHost:   snap.IsHost,
				Players:  snap.Players,
			})

		case "join_room":
			if currentRoom != "" && currentRoom != msg.RoomID {
				h.service.Leave(currentRoom, playerID)
				currentRoom = ""
			}
			snap, err := h.service.JoinRoom(r.Context(), msg.RoomID, playerID, msg.PlayerName)
			if err != nil {
				h.sendError(playerID, err)
				continue
			}
			currentRoom = snap.RoomID
			h.hub.Unicast(playerID, domain.RoomJoinedEvent{
				Type:     domain.EventRoomJoined,
				RoomID:   snap.RoomID,
				PlayerID: snap.PlayerID,
				IsHost:   snap.IsHost,
				Players:  snap.Players,
			})

		case "start_game":
			if currentRoom != "" {
				h.service.StartGame(currentRoom, playerID)
			}

		case "submit_answer":
			if currentRoom == "" {
				continue
			}
			if err := h.service.SubmitAnswer(currentRoom, playerID, msg.AnswerIndex); err != nil {
				// duplicate/late submissions are absorbed, not surfaced
				log.Debug().Err(err).Str("player", playerID).Str("room", currentRoom).Msg("submit ignored")
			}

		case "leave_room":
			if currentRoom != "" {
				h.service.Leave(currentRoom, playerID)
				currentRoom = ""
			}

		default:
			h.hub.Unicast(playerID, domain.ErrorEvent{
				Type:    domain.EventError,
				Message: "unsupported message type",
			})
		}
	}
}

func (h *WSHandler) sendError(playerID string, err error) {
	h.hub.Unicast(playerID, domain.ErrorEvent{
		Type:    domain.EventError,
		Message: err.Error(),
	})
}
