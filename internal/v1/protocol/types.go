// Package protocol defines the wire format shared by the relay and its clients.
//
// Frames are JSON objects tagged by a "type" field. Poses use float32
// components to match client-side precision; the relay treats them as opaque
// payload and never validates or normalizes them.
package protocol

// Vector3 is a position in meters, client coordinate space.
type Vector3 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// Quaternion is a rotation, xyzw order.
type Quaternion struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
	W float32 `json:"w"`
}

// PlayerTransform carries the full VR pose: body, head and both hands.
type PlayerTransform struct {
	Position          Vector3    `json:"position"`
	Rotation          Quaternion `json:"rotation"`
	HeadPosition      Vector3    `json:"head_position"`
	HeadRotation      Quaternion `json:"head_rotation"`
	LeftHandPosition  Vector3    `json:"left_hand_position"`
	LeftHandRotation  Quaternion `json:"left_hand_rotation"`
	RightHandPosition Vector3    `json:"right_hand_position"`
	RightHandRotation Quaternion `json:"right_hand_rotation"`
}

// PlayerState is the per-player record held by a room and sent to peers on
// join. Username and avatar are snapshotted when the player connects.
type PlayerState struct {
	PlayerID   string            `json:"player_id"`
	Username   string            `json:"username"`
	Transform  PlayerTransform   `json:"transform"`
	AvatarURL  *string           `json:"avatar_url"`
	IsTalking  bool              `json:"is_talking"`
	CustomData map[string]string `json:"custom_data"`
}

// Clone returns a copy that shares no pointers with the original.
func (p PlayerState) Clone() PlayerState {
	out := p
	if p.AvatarURL != nil {
		url := *p.AvatarURL
		out.AvatarURL = &url
	}
	if p.CustomData != nil {
		out.CustomData = make(map[string]string, len(p.CustomData))
		for k, v := range p.CustomData {
			out.CustomData[k] = v
		}
	}
	return out
}
