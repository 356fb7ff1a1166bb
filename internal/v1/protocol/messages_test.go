package protocol

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePose() PlayerTransform {
	return PlayerTransform{
		Position:          Vector3{X: 1.5, Y: 0, Z: -2.25},
		Rotation:          Quaternion{X: 0, Y: 0.7071, Z: 0, W: 0.7071},
		HeadPosition:      Vector3{X: 1.5, Y: 1.7, Z: -2.25},
		HeadRotation:      Quaternion{W: 1},
		LeftHandPosition:  Vector3{X: 1.2, Y: 1.1, Z: -2.0},
		LeftHandRotation:  Quaternion{W: 1},
		RightHandPosition: Vector3{X: 1.8, Y: 1.1, Z: -2.0},
		RightHandRotation: Quaternion{W: 1},
	}
}

func TestEncode_StampsDiscriminator(t *testing.T) {
	frame, err := Encode(Connect{Token: "tok", GameID: "game_beatarena"})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(frame, &raw))

	assert.Equal(t, "Connect", raw["type"])
	assert.Equal(t, "tok", raw["token"])
	assert.Equal(t, "game_beatarena", raw["game_id"])
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	avatar := "https://cdn.example.com/a.png"

	tests := []struct {
		name string
		msg  Message
	}{
		{"connect", Connect{Token: "t", GameID: "g"}},
		{"disconnect", Disconnect{PlayerID: "user_1"}},
		{"player joined", PlayerJoined{Player: PlayerState{
			PlayerID:   "user_1",
			Username:   "ada",
			Transform:  samplePose(),
			AvatarURL:  &avatar,
			IsTalking:  true,
			CustomData: map[string]string{"team": "red"},
		}}},
		{"player left", PlayerLeft{PlayerID: "user_1"}},
		{"player update", PlayerUpdate{PlayerID: "user_1", Transform: samplePose()}},
		{"object spawned", ObjectSpawned{
			ObjectID:   "obj_1",
			ObjectType: "cube",
			Position:   Vector3{X: 1, Y: 2, Z: 3},
			Rotation:   Quaternion{W: 1},
		}},
		{"object moved", ObjectMoved{ObjectID: "obj_1", Position: Vector3{X: 4}, Rotation: Quaternion{W: 1}}},
		{"object destroyed", ObjectDestroyed{ObjectID: "obj_1"}},
		{"object grabbed", ObjectGrabbed{ObjectID: "obj_1", PlayerID: "user_1"}},
		{"object released", ObjectReleased{ObjectID: "obj_1"}},
		{"voice data", VoiceData{PlayerID: "user_1", AudioData: []byte{0x01, 0x02, 0xFF}}},
		{"custom event", CustomEvent{EventName: "score", Data: `{"points":10}`}},
		{"error", ErrorMessage{Message: "Room is full"}},
		{"success", SuccessMessage{Message: "Connected"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := Encode(tt.msg)
			require.NoError(t, err)

			decoded, err := Decode(frame)
			require.NoError(t, err)

			// Decode returns a pointer to the concrete struct
			assert.Equal(t, tt.msg.MessageType(), decoded.MessageType())

			reencoded, err := Encode(decoded)
			require.NoError(t, err)
			assert.JSONEq(t, string(frame), string(reencoded))
		})
	}
}

func TestDecode_ConcreteTypes(t *testing.T) {
	frame, err := Encode(PlayerUpdate{PlayerID: "user_9", Transform: samplePose()})
	require.NoError(t, err)

	decoded, err := Decode(frame)
	require.NoError(t, err)

	update, ok := decoded.(*PlayerUpdate)
	require.True(t, ok, "expected *PlayerUpdate, got %T", decoded)
	assert.Equal(t, "user_9", update.PlayerID)
	assert.InDelta(t, 1.5, update.Transform.Position.X, 1e-6)
	assert.InDelta(t, 0.7071, update.Transform.Rotation.Y, 1e-6)
}

func TestDecode_MissingType(t *testing.T) {
	_, err := Decode([]byte(`{"token":"t"}`))
	assert.ErrorIs(t, err, ErrMissingType)
}

func TestDecode_UnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"Teleport"}`))
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestDecode_MalformedJSON(t *testing.T) {
	_, err := Decode([]byte(`{"type":"Connect"`))
	assert.Error(t, err)
}

func TestDecode_WrongFieldShape(t *testing.T) {
	_, err := Decode([]byte(`{"type":"PlayerUpdate","player_id":"user_1","transform":"not-a-pose"}`))
	assert.Error(t, err)
}

func TestVoiceData_Base64OnWire(t *testing.T) {
	audio := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	frame, err := Encode(VoiceData{PlayerID: "user_1", AudioData: audio})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(frame, &raw))

	encoded, ok := raw["audio_data"].(string)
	require.True(t, ok, "audio_data should be a base64 string")
	assert.Equal(t, base64.StdEncoding.EncodeToString(audio), encoded)
}

func TestPlayerState_NullAvatar(t *testing.T) {
	frame := []byte(`{"type":"PlayerJoined","player":{"player_id":"user_1","username":"ada",` +
		`"transform":{"position":{"x":0,"y":0,"z":0},"rotation":{"x":0,"y":0,"z":0,"w":1},` +
		`"head_position":{"x":0,"y":0,"z":0},"head_rotation":{"x":0,"y":0,"z":0,"w":1},` +
		`"left_hand_position":{"x":0,"y":0,"z":0},"left_hand_rotation":{"x":0,"y":0,"z":0,"w":1},` +
		`"right_hand_position":{"x":0,"y":0,"z":0},"right_hand_rotation":{"x":0,"y":0,"z":0,"w":1}},` +
		`"avatar_url":null,"is_talking":false,"custom_data":{}}}`)

	decoded, err := Decode(frame)
	require.NoError(t, err)

	joined, ok := decoded.(*PlayerJoined)
	require.True(t, ok)
	assert.Nil(t, joined.Player.AvatarURL)
	assert.Equal(t, "ada", joined.Player.Username)
}
