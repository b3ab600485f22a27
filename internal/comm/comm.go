package comm

import (
	"encoding/json"
	"fmt"

	"github.com/avvvet/bingo-rooms/internal/bingo"
)

// inbound message types
const (
	TypeJoin       = "join"
	TypeStart      = "start"
	TypeMarkCell   = "mark-cell"
	TypeClaimBingo = "claim-bingo"
	TypeReset      = "reset"
	TypeLeave      = "leave"
)

// outbound message types
const (
	TypeJoined           = "joined"
	TypeParticipantCount = "participant-count"
	TypeStarted          = "started"
	TypeCellMarked       = "cell-marked"
	TypeNumberDrawn      = "number-drawn"
	TypeWin              = "win"
	TypeBingoRejected    = "bingo-rejected"
	TypeResetAck         = "reset"
	TypeDrawExhausted    = "draw-exhausted"
	TypeError            = "error"
)

type WSMessage struct {
	Type     string          `json:"type"` // e.g. "join", "mark-cell"
	Data     json.RawMessage `json:"data,omitempty"`
	SocketId string          `json:"socketid,omitempty"`
}

// NewMessage marshals payload into the envelope's data field.
func NewMessage(msgType string, payload any) (*WSMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	return &WSMessage{Type: msgType, Data: data}, nil
}

type JoinRequest struct {
	RoomId      string `json:"roomId"`
	DisplayName string `json:"displayName"`
}

type MarkCellRequest struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Snapshot is the room state shared with every participant.
type Snapshot struct {
	RoomId           string `json:"roomId"`
	ParticipantCount int    `json:"participantCount"`
	CalledNumbers    []int  `json:"calledNumbers"`
	CurrentNumber    *int   `json:"currentNumber"`
	State            string `json:"state"`
	Winner           string `json:"winner,omitempty"`
}

// Card cells are column-major; 0 marks the free center.
type Joined struct {
	Card        bingo.Card `json:"card"`
	DisplayName string     `json:"displayName"`
	Snapshot    Snapshot   `json:"snapshot"`
}

type ParticipantCount struct {
	RoomId string `json:"roomId"`
	Count  int    `json:"count"`
}

type CellMarked struct {
	Row         int   `json:"row"`
	Col         int   `json:"col"`
	MarkedCells []int `json:"markedCells"`
}

type NumberDrawn struct {
	RoomId        string `json:"roomId"`
	Number        int    `json:"number"`
	CalledNumbers []int  `json:"calledNumbers"`
}

type Win struct {
	RoomId      string       `json:"roomId"`
	Winner      string       `json:"winner"`
	Card        bingo.Card   `json:"card"`
	MarkedCells []int        `json:"markedCells"`
	Lines       []bingo.Line `json:"lines"`
}

type BingoRejected struct {
	Reason string `json:"reason"`
}

type ResetAck struct {
	Card     bingo.Card `json:"card"`
	Snapshot Snapshot   `json:"snapshot"`
}

type ErrorMessage struct {
	Error string `json:"error"`
}
