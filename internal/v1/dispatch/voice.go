package dispatch

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
	"k8s.io/utils/set"

	"github.com/driftspace-vr/driftspace/server/go/internal/v1/logging"
	"github.com/driftspace-vr/driftspace/server/go/internal/v1/metrics"
	"github.com/driftspace-vr/driftspace/server/go/internal/v1/protocol"
)

// Voice tracks per-room voice channels as an overlay fully decoupled from
// room membership: enrollment is the only gate on receiving audio, and
// leaving a room does not implicitly leave its channel. The transport calls
// Leave on disconnect so channels drain with their connections.
type Voice struct {
	mu       sync.Mutex
	channels map[string]set.Set[string] // room id -> enrolled player ids
	sender   Sender
}

func NewVoice(sender Sender) *Voice {
	return &Voice{
		channels: make(map[string]set.Set[string]),
		sender:   sender,
	}
}

// Join enrolls a player in the room's voice channel, creating the channel on
// first enrollment. Joining twice is a no-op.
func (v *Voice) Join(ctx context.Context, roomID, playerID string) {
	v.mu.Lock()
	ch, ok := v.channels[roomID]
	if !ok {
		ch = set.New[string]()
		v.channels[roomID] = ch
	}
	ch.Insert(playerID)
	size := ch.Len()
	v.mu.Unlock()

	metrics.VoiceChannelMembers.WithLabelValues(roomID).Set(float64(size))
	logging.Info(ctx, "voice channel joined",
		zap.String("room_id", roomID),
		zap.String("player_id", playerID),
		zap.Int("channel_size", size),
	)
}

// Leave removes a player from the room's voice channel and deletes the
// channel when it empties. Leaving a channel the player never joined, or a
// room with no channel, is a no-op.
func (v *Voice) Leave(ctx context.Context, roomID, playerID string) {
	v.mu.Lock()
	ch, ok := v.channels[roomID]
	if !ok {
		v.mu.Unlock()
		return
	}
	ch.Delete(playerID)
	size := ch.Len()
	if size == 0 {
		delete(v.channels, roomID)
	}
	v.mu.Unlock()

	if size == 0 {
		metrics.VoiceChannelMembers.DeleteLabelValues(roomID)
	} else {
		metrics.VoiceChannelMembers.WithLabelValues(roomID).Set(float64(size))
	}
	logging.Info(ctx, "voice channel left",
		zap.String("room_id", roomID),
		zap.String("player_id", playerID),
		zap.Int("channel_size", size),
	)
}

// Members returns the sorted enrollment of a room's channel, nil when the
// room has none.
func (v *Voice) Members(roomID string) []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	ch, ok := v.channels[roomID]
	if !ok {
		return nil
	}
	members := ch.UnsortedList()
	sort.Strings(members)
	return members
}

// BroadcastAudio relays one audio frame to everyone enrolled in the room's
// channel except the sender. The sender's own enrollment is not checked:
// exclusion is by id only, and a room with no channel drops the frame.
func (v *Voice) BroadcastAudio(ctx context.Context, roomID, senderID string, audio []byte) {
	v.mu.Lock()
	ch, ok := v.channels[roomID]
	if !ok {
		v.mu.Unlock()
		return
	}
	recipients := ch.UnsortedList()
	v.mu.Unlock()

	frame, err := protocol.Encode(protocol.VoiceData{PlayerID: senderID, AudioData: audio})
	if err != nil {
		logging.Error(ctx, "voice frame encode failed",
			zap.String("room_id", roomID),
			zap.Error(err),
		)
		return
	}

	for _, id := range recipients {
		if id == senderID {
			continue
		}
		if err := v.sender.Send(id, frame); err != nil {
			metrics.BroadcastSendFailures.Inc()
			logging.Debug(ctx, "voice delivery failed",
				zap.String("room_id", roomID),
				zap.String("player_id", id),
				zap.Error(err),
			)
			continue
		}
		metrics.VoiceFramesRelayed.Inc()
	}
}
