// Package accounts owns player credentials and profile records.
//
// The store is purely in-memory. Both the player map and the email index are
// guarded by a single mutex so uniqueness checks and inserts are atomic; an
// optional snapshot layer can checkpoint and restore the full record set
// without changing observable behavior.
package accounts

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Signup and login failures carry the exact messages clients display.
var (
	ErrUsernameTooShort   = errors.New("Username must be at least 3 characters")
	ErrInvalidEmail       = errors.New("Invalid email address")
	ErrPasswordTooShort   = errors.New("Password must be at least 8 characters")
	ErrEmailTaken         = errors.New("Email already registered")
	ErrInvalidCredentials = errors.New("Invalid email or password")
	ErrInternal           = errors.New("Internal server error")
)

// Player is the full stored record, hash included. Only the persistence
// layer may serialize it; everything user-facing goes through PublicProfile.
type Player struct {
	ID           string        `json:"id"`
	Username     string        `json:"username"`
	Email        string        `json:"email"`
	PasswordHash string        `json:"password_hash"`
	CreatedAt    int64         `json:"created_at"`
	AvatarURL    *string       `json:"avatar_url"`
	GamesCreated []string      `json:"games_created"`
	GamesPlayed  []string      `json:"games_played"`
	Friends      []string      `json:"friends"`
	Achievements []Achievement `json:"achievements"`
}

// Achievement entries append in unlock order. Duplicates are allowed;
// repeatable achievements are a caller-level concern.
type Achievement struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	UnlockedAt  int64  `json:"unlocked_at"`
}

// PublicProfile is the projection exposed to clients. It never carries the
// password hash or the raw friend list.
type PublicProfile struct {
	ID           string   `json:"id"`
	Username     string   `json:"username"`
	Email        string   `json:"email"`
	AvatarURL    *string  `json:"avatar_url"`
	GamesCreated []string `json:"games_created"`
	GamesPlayed  []string `json:"games_played"`
	FriendCount  int      `json:"friend_count"`
}

// Store holds every registered player behind one lock.
type Store struct {
	mu         sync.Mutex
	players    map[string]*Player
	emailIndex map[string]string // email -> player id
	hasher     Hasher
	now        func() time.Time
}

// NewStore returns an empty store using the given password hasher.
func NewStore(hasher Hasher) *Store {
	return &Store{
		players:    make(map[string]*Player),
		emailIndex: make(map[string]string),
		hasher:     hasher,
		now:        time.Now,
	}
}

func newPlayerID() string {
	return "user_" + uuid.NewString()
}

// profileLocked builds the public projection. Caller holds s.mu.
func profileLocked(p *Player) PublicProfile {
	prof := PublicProfile{
		ID:           p.ID,
		Username:     p.Username,
		Email:        p.Email,
		GamesCreated: append([]string(nil), p.GamesCreated...),
		GamesPlayed:  append([]string(nil), p.GamesPlayed...),
		FriendCount:  len(p.Friends),
	}
	if p.AvatarURL != nil {
		url := *p.AvatarURL
		prof.AvatarURL = &url
	}
	return prof
}

// clonePlayer deep-copies a record for snapshots.
func clonePlayer(p *Player) Player {
	out := *p
	if p.AvatarURL != nil {
		url := *p.AvatarURL
		out.AvatarURL = &url
	}
	out.GamesCreated = append([]string(nil), p.GamesCreated...)
	out.GamesPlayed = append([]string(nil), p.GamesPlayed...)
	out.Friends = append([]string(nil), p.Friends...)
	out.Achievements = append([]Achievement(nil), p.Achievements...)
	return out
}
