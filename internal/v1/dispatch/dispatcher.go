// Package dispatch fans encoded frames out to room occupants and voice
// channel members.
//
// Delivery runs strictly after the registry lock is released: the dispatcher
// works from membership snapshots, and a send is an enqueue onto the
// recipient's buffered channel, never a network write on the caller's
// goroutine. A per-room ordering mutex serializes fan-out initiation so that
// broadcasts which were serialized against the registry reach every occupant
// in the same order.
package dispatch

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/driftspace-vr/driftspace/server/go/internal/v1/logging"
	"github.com/driftspace-vr/driftspace/server/go/internal/v1/metrics"
	"github.com/driftspace-vr/driftspace/server/go/internal/v1/protocol"
)

// Sender delivers one encoded frame to one connected player. Implementations
// must not block; the transport's Send enqueues and drops on backpressure.
type Sender interface {
	Send(playerID string, frame []byte) error
}

// MembershipSource yields a room's current occupants as a copy.
type MembershipSource interface {
	Players(roomID string) []protocol.PlayerState
}

// Dispatcher owns room fan-out.
type Dispatcher struct {
	members MembershipSource
	sender  Sender

	mu    sync.Mutex
	order map[string]*sync.Mutex // room id -> fan-out ordering lock
}

func NewDispatcher(members MembershipSource, sender Sender) *Dispatcher {
	return &Dispatcher{
		members: members,
		sender:  sender,
		order:   make(map[string]*sync.Mutex),
	}
}

func (d *Dispatcher) roomLock(roomID string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.order[roomID]
	if !ok {
		l = &sync.Mutex{}
		d.order[roomID] = l
	}
	return l
}

// Broadcast delivers msg to every occupant of the room except excludePlayer
// (empty string excludes nobody). Membership is snapshotted at initiation;
// players joining mid-fan-out are not retroactively included. Per-recipient
// failures are counted and logged, never fatal to the rest of the room.
func (d *Dispatcher) Broadcast(ctx context.Context, roomID string, msg protocol.Message, excludePlayer string) {
	frame, err := protocol.Encode(msg)
	if err != nil {
		logging.Error(ctx, "broadcast encode failed",
			zap.String("room_id", roomID),
			zap.Error(err),
		)
		return
	}

	l := d.roomLock(roomID)
	l.Lock()
	defer l.Unlock()

	occupants := d.members.Players(roomID)

	metrics.BroadcastsTotal.WithLabelValues(string(msg.MessageType())).Inc()

	for i := range occupants {
		id := occupants[i].PlayerID
		if id == excludePlayer {
			continue
		}
		if err := d.sender.Send(id, frame); err != nil {
			metrics.BroadcastSendFailures.Inc()
			logging.Warn(ctx, "broadcast delivery failed",
				zap.String("room_id", roomID),
				zap.String("player_id", id),
				zap.Error(err),
			)
		}
	}
}

// ForgetRoom drops the ordering lock of a room that no longer exists.
// In-flight broadcasts keep their lock by pointer and finish undisturbed.
func (d *Dispatcher) ForgetRoom(roomID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.order, roomID)
}
