package ws

import (
	"encoding/json"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/avvvet/bingo-rooms/internal/comm"
	"github.com/avvvet/bingo-rooms/internal/room"
)

// EventMirror receives every room-wide event, e.g. the NATS broker.
type EventMirror interface {
	PublishRoomEvent(roomId string, payload []byte)
}

// Ws routes socket messages to the room registry and delivers room events
// back to sockets. Participant ids are socket ids.
type Ws struct {
	connMap  sync.Map // socketId -> *Client
	roomMap  sync.Map // socketId -> roomId
	Registry *room.Registry
	Broker   EventMirror // optional
}

func NewWs() *Ws {
	return &Ws{}
}

// handle socket message from web clients
func (s *Ws) SocketMessage(socketId string, message *comm.WSMessage) {
	switch message.Type {
	case comm.TypeJoin:
		s.handleJoin(socketId, message)
	case comm.TypeStart:
		if r, ok := s.socketRoom(socketId); ok {
			r.Start()
		}
	case comm.TypeMarkCell:
		s.handleMarkCell(socketId, message)
	case comm.TypeClaimBingo:
		if r, ok := s.socketRoom(socketId); ok {
			r.ClaimBingo(socketId)
		}
	case comm.TypeReset:
		if r, ok := s.socketRoom(socketId); ok {
			r.Reset()
		}
	case comm.TypeLeave:
		s.leaveRoom(socketId)
	default:
		log.Warnf("unknown event received: %s", message.Type)
		s.SendError(socketId, "unknown message type")
	}
}

func (s *Ws) handleJoin(socketId string, msg *comm.WSMessage) {
	var payload comm.JoinRequest
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		log.Errorf("Error: invalid_join_data Malformed join payload %s", err)
		s.SendError(socketId, "invalid join payload")
		return
	}

	// one room per socket
	if current, ok := s.GetRoom(socketId); ok && current != payload.RoomId {
		s.leaveRoom(socketId)
	}

	r, _, err := s.Registry.Join(payload.RoomId, socketId, payload.DisplayName)
	if err != nil {
		log.Errorf("join room %q for socket %s failed: %v", payload.RoomId, socketId, err)
		s.SendError(socketId, "unable to join room")
		return
	}
	s.StoreRoom(socketId, r.Id())
}

func (s *Ws) handleMarkCell(socketId string, msg *comm.WSMessage) {
	var payload comm.MarkCellRequest
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		log.Errorf("Error: invalid_mark_data Malformed mark-cell payload %s", err)
		s.SendError(socketId, "invalid mark-cell payload")
		return
	}
	if r, ok := s.socketRoom(socketId); ok {
		r.MarkCell(socketId, payload.Row, payload.Col)
	}
}

// HandleDisconnect leaves the socket's room and forgets the connection.
func (s *Ws) HandleDisconnect(socketId string) {
	s.leaveRoom(socketId)
	if c, ok := s.GetConnection(socketId); ok {
		c.Close()
	}
	s.connMap.Delete(socketId)
}

func (s *Ws) leaveRoom(socketId string) {
	roomId, ok := s.GetRoom(socketId)
	if !ok {
		return
	}
	s.roomMap.Delete(socketId)
	s.Registry.Leave(roomId, socketId)
}

// socketRoom resolves the room from the connection context.
func (s *Ws) socketRoom(socketId string) (*room.Room, bool) {
	roomId, ok := s.GetRoom(socketId)
	if !ok {
		log.Debugf("socket %s is not in a room", socketId)
		return nil, false
	}
	return s.Registry.Get(roomId)
}

// Notify implements room.Notifier.
func (s *Ws) Notify(participantId string, msg *comm.WSMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Failed to marshal %s for socket %s: %v", msg.Type, participantId, err)
		return
	}
	s.send(participantId, payload)
}

// Broadcast implements room.Notifier.
func (s *Ws) Broadcast(roomId string, participantIds []string, msg *comm.WSMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Failed to marshal %s for room %s: %v", msg.Type, roomId, err)
		return
	}
	for _, id := range participantIds {
		s.send(id, payload)
	}
	if s.Broker != nil {
		s.Broker.PublishRoomEvent(roomId, payload)
	}
}

// SendError sends an error envelope to a single socket.
func (s *Ws) SendError(socketId, errorMsg string) {
	msg, err := comm.NewMessage(comm.TypeError, comm.ErrorMessage{Error: errorMsg})
	if err != nil {
		return
	}
	s.Notify(socketId, msg)
}

func (s *Ws) send(socketId string, payload []byte) {
	if c, ok := s.GetConnection(socketId); ok {
		c.Enqueue(payload)
	}
}

func (s *Ws) StoreConnection(socketId string, c *Client) {
	s.connMap.Store(socketId, c)
}

func (s *Ws) GetConnection(socketId string) (*Client, bool) {
	c, ok := s.connMap.Load(socketId)
	if !ok {
		return nil, false
	}
	return c.(*Client), true
}

func (s *Ws) StoreRoom(socketId string, roomId string) {
	s.roomMap.Store(socketId, roomId)
}

func (s *Ws) GetRoom(socketId string) (string, bool) {
	roomId, ok := s.roomMap.Load(socketId)
	if !ok {
		return "", false
	}
	return roomId.(string), true
}
