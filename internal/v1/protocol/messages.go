package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Type discriminates wire frames. Values appear verbatim in the "type" field.
type Type string

const (
	TypeConnect         Type = "Connect"
	TypeDisconnect      Type = "Disconnect"
	TypePlayerJoined    Type = "PlayerJoined"
	TypePlayerLeft      Type = "PlayerLeft"
	TypePlayerUpdate    Type = "PlayerUpdate"
	TypeObjectSpawned   Type = "ObjectSpawned"
	TypeObjectMoved     Type = "ObjectMoved"
	TypeObjectDestroyed Type = "ObjectDestroyed"
	TypeObjectGrabbed   Type = "ObjectGrabbed"
	TypeObjectReleased  Type = "ObjectReleased"
	TypeVoiceData       Type = "VoiceData"
	TypeCustomEvent     Type = "CustomEvent"
	TypeError           Type = "Error"
	TypeSuccess         Type = "Success"
)

var (
	ErrMissingType = errors.New("frame has no type field")
	ErrUnknownType = errors.New("unknown frame type")
)

// Message is implemented by every frame that crosses the wire.
type Message interface {
	MessageType() Type
}

// Connect must be the first frame a client sends after the socket opens.
type Connect struct {
	Token  string `json:"token"`
	GameID string `json:"game_id"`
}

// Disconnect announces a graceful leave before the socket closes.
type Disconnect struct {
	PlayerID string `json:"player_id"`
}

// PlayerJoined tells existing occupants about a newcomer.
type PlayerJoined struct {
	Player PlayerState `json:"player"`
}

// PlayerLeft tells remaining occupants a player is gone.
type PlayerLeft struct {
	PlayerID string `json:"player_id"`
}

// PlayerUpdate carries a fresh pose for one player.
type PlayerUpdate struct {
	PlayerID  string          `json:"player_id"`
	Transform PlayerTransform `json:"transform"`
}

type ObjectSpawned struct {
	ObjectID   string     `json:"object_id"`
	ObjectType string     `json:"object_type"`
	Position   Vector3    `json:"position"`
	Rotation   Quaternion `json:"rotation"`
}

type ObjectMoved struct {
	ObjectID string     `json:"object_id"`
	Position Vector3    `json:"position"`
	Rotation Quaternion `json:"rotation"`
}

type ObjectDestroyed struct {
	ObjectID string `json:"object_id"`
}

type ObjectGrabbed struct {
	ObjectID string `json:"object_id"`
	PlayerID string `json:"player_id"`
}

type ObjectReleased struct {
	ObjectID string `json:"object_id"`
}

// VoiceData is an opaque audio frame. Bytes ride as base64 in JSON.
type VoiceData struct {
	PlayerID  string `json:"player_id"`
	AudioData []byte `json:"audio_data"`
}

// CustomEvent is the escape hatch for game-specific events.
type CustomEvent struct {
	EventName string `json:"event_name"`
	Data      string `json:"data"`
}

// ErrorMessage reports a server-side failure to one client.
type ErrorMessage struct {
	Message string `json:"message"`
}

// SuccessMessage acknowledges a client request.
type SuccessMessage struct {
	Message string `json:"message"`
}

func (Connect) MessageType() Type         { return TypeConnect }
func (Disconnect) MessageType() Type      { return TypeDisconnect }
func (PlayerJoined) MessageType() Type    { return TypePlayerJoined }
func (PlayerLeft) MessageType() Type      { return TypePlayerLeft }
func (PlayerUpdate) MessageType() Type    { return TypePlayerUpdate }
func (ObjectSpawned) MessageType() Type   { return TypeObjectSpawned }
func (ObjectMoved) MessageType() Type     { return TypeObjectMoved }
func (ObjectDestroyed) MessageType() Type { return TypeObjectDestroyed }
func (ObjectGrabbed) MessageType() Type   { return TypeObjectGrabbed }
func (ObjectReleased) MessageType() Type  { return TypeObjectReleased }
func (VoiceData) MessageType() Type       { return TypeVoiceData }
func (CustomEvent) MessageType() Type     { return TypeCustomEvent }
func (ErrorMessage) MessageType() Type    { return TypeError }
func (SuccessMessage) MessageType() Type  { return TypeSuccess }

// Encode marshals a message and stamps the type discriminator as the first
// field, so the output matches what clients produce themselves.
func Encode(msg Message) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	head, err := json.Marshal(struct {
		Type Type `json:"type"`
	}{msg.MessageType()})
	if err != nil {
		return nil, err
	}
	if len(body) <= 2 {
		// fieldless variant marshals to "{}"
		return head, nil
	}
	frame := make([]byte, 0, len(head)+len(body)-1)
	frame = append(frame, head[:len(head)-1]...)
	frame = append(frame, ',')
	frame = append(frame, body[1:]...)
	return frame, nil
}

// Decode parses a frame into its concrete message struct.
func Decode(data []byte) (Message, error) {
	var head struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}

	var msg Message
	switch head.Type {
	case TypeConnect:
		msg = &Connect{}
	case TypeDisconnect:
		msg = &Disconnect{}
	case TypePlayerJoined:
		msg = &PlayerJoined{}
	case TypePlayerLeft:
		msg = &PlayerLeft{}
	case TypePlayerUpdate:
		msg = &PlayerUpdate{}
	case TypeObjectSpawned:
		msg = &ObjectSpawned{}
	case TypeObjectMoved:
		msg = &ObjectMoved{}
	case TypeObjectDestroyed:
		msg = &ObjectDestroyed{}
	case TypeObjectGrabbed:
		msg = &ObjectGrabbed{}
	case TypeObjectReleased:
		msg = &ObjectReleased{}
	case TypeVoiceData:
		msg = &VoiceData{}
	case TypeCustomEvent:
		msg = &CustomEvent{}
	case TypeError:
		msg = &ErrorMessage{}
	case TypeSuccess:
		msg = &SuccessMessage{}
	case "":
		return nil, ErrMissingType
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, head.Type)
	}

	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", head.Type, err)
	}
	return msg, nil
}
