package broker

import (
	"context"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

const (
	SubjectPrefix   = "bingo.room."
	queueBufferSize = 1024
)

// Publisher is the subset of *nats.Conn the broker needs.
type Publisher interface {
	Publish(subj string, data []byte) error
}

type roomEvent struct {
	subject string
	payload []byte
}

// Broker mirrors room-wide events onto NATS, one subject per room.
// Events are queued so callers holding a room lock never wait on the network.
type Broker struct {
	Conn   Publisher
	events chan roomEvent
}

func NewBroker(conn Publisher) *Broker {
	return &Broker{
		Conn:   conn,
		events: make(chan roomEvent, queueBufferSize),
	}
}

// Subject returns the NATS subject for a room.
func Subject(roomId string) string {
	return SubjectPrefix + roomId
}

// PublishRoomEvent queues payload for the room subject, dropping it when the queue is full.
func (b *Broker) PublishRoomEvent(roomId string, payload []byte) {
	select {
	case b.events <- roomEvent{subject: Subject(roomId), payload: payload}:
	default:
		log.Warnf("broker queue full, dropping event for room %s", roomId)
	}
}

// Run publishes queued events until ctx is cancelled.
func (b *Broker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-b.events:
			b.Publish(ev.subject, ev.payload)
		}
	}
}

// publish message to nats
func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.Conn.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}

var _ Publisher = (*nats.Conn)(nil)
