package models

import "time"

const (
	OutcomeWin       = "win"
	OutcomeExhausted = "exhausted"
)

// GameResult is the archived record of one finished round in a room.
type GameResult struct {
	RoomId        string    `json:"room_id" bson:"room_id"`
	InstanceId    string    `json:"instance_id" bson:"instance_id"`
	Outcome       string    `json:"outcome" bson:"outcome"`                   // 'win' or 'exhausted'
	Winner        string    `json:"winner,omitempty" bson:"winner,omitempty"` // display name
	CalledNumbers []int     `json:"called_numbers" bson:"called_numbers"`
	Participants  int       `json:"participants" bson:"participants"`
	StartedAt     time.Time `json:"started_at" bson:"started_at"`
	FinishedAt    time.Time `json:"finished_at" bson:"finished_at"`
}
