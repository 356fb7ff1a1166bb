package accounts

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/driftspace-vr/driftspace/server/go/internal/v1/logging"
)

// --- Signup / Login ---

// Signup validates, hashes and stores a new player. Checks run in a fixed
// order and the first failure is the one reported. The uniqueness check and
// both map inserts happen in one critical section, so two concurrent signups
// for the same email can never both succeed.
func (s *Store) Signup(ctx context.Context, username, email, password string) (PublicProfile, error) {
	if len(username) < 3 {
		return PublicProfile{}, ErrUsernameTooShort
	}
	if !strings.Contains(email, "@") {
		return PublicProfile{}, ErrInvalidEmail
	}
	if len(password) < 8 {
		return PublicProfile{}, ErrPasswordTooShort
	}

	// Hash before taking the lock; bcrypt is far too slow to hold s.mu across.
	hash, err := s.hasher.Hash(password)
	if err != nil {
		logging.Error(ctx, "password hashing failed", zap.Error(err))
		return PublicProfile{}, ErrInternal
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.emailIndex[email]; taken {
		return PublicProfile{}, ErrEmailTaken
	}

	player := &Player{
		ID:           newPlayerID(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC().Unix(),
	}
	s.players[player.ID] = player
	s.emailIndex[email] = player.ID

	logging.Info(ctx, "player registered",
		zap.String("player_id", player.ID),
		zap.String("username", username),
		zap.String("email", logging.RedactEmail(email)),
	)
	return profileLocked(player), nil
}

// Login verifies credentials. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *Store) Login(ctx context.Context, email, password string) (PublicProfile, error) {
	s.mu.Lock()
	playerID, ok := s.emailIndex[email]
	if !ok {
		s.mu.Unlock()
		logging.Debug(ctx, "login failed: unknown email", zap.String("email", logging.RedactEmail(email)))
		return PublicProfile{}, ErrInvalidCredentials
	}
	player, ok := s.players[playerID]
	if !ok {
		s.mu.Unlock()
		logging.Error(ctx, "email index points at missing player", zap.String("player_id", playerID))
		return PublicProfile{}, ErrInvalidCredentials
	}
	hash := player.PasswordHash
	profile := profileLocked(player)
	s.mu.Unlock()

	// Verify outside the lock for the same reason Signup hashes outside it.
	if !s.hasher.Verify(password, hash) {
		logging.Debug(ctx, "login failed: bad password", zap.String("player_id", profile.ID))
		return PublicProfile{}, ErrInvalidCredentials
	}

	logging.Info(ctx, "login successful", zap.String("player_id", profile.ID))
	return profile, nil
}

// --- Profile ---

// GetProfile returns the public projection for a player.
func (s *Store) GetProfile(playerID string) (PublicProfile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	player, ok := s.players[playerID]
	if !ok {
		return PublicProfile{}, false
	}
	return profileLocked(player), true
}

// UpdateAvatar replaces the avatar URL; nil clears it. Returns false when the
// player does not exist.
func (s *Store) UpdateAvatar(ctx context.Context, playerID string, avatarURL *string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	player, ok := s.players[playerID]
	if !ok {
		return false
	}
	player.AvatarURL = avatarURL

	logging.Info(ctx, "avatar updated", zap.String("player_id", playerID))
	return true
}

// AddFriend records a one-way friend edge. Returns false when the player is
// unknown or the edge already exists. The friend id itself is not checked;
// edges to not-yet-registered players are allowed.
func (s *Store) AddFriend(ctx context.Context, playerID, friendID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	player, ok := s.players[playerID]
	if !ok {
		return false
	}
	for _, existing := range player.Friends {
		if existing == friendID {
			return false
		}
	}
	player.Friends = append(player.Friends, friendID)

	logging.Info(ctx, "friend added",
		zap.String("player_id", playerID),
		zap.String("friend_id", friendID),
	)
	return true
}

// --- Game history ---

// RecordCreatedGame appends unconditionally; creating the same game twice is
// two entries. No-op for unknown players.
func (s *Store) RecordCreatedGame(ctx context.Context, playerID, gameID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	player, ok := s.players[playerID]
	if !ok {
		return
	}
	player.GamesCreated = append(player.GamesCreated, gameID)

	logging.Info(ctx, "created game recorded",
		zap.String("player_id", playerID),
		zap.String("game_id", gameID),
	)
}

// RecordPlayedGame appends at most once per game. No-op for unknown players.
func (s *Store) RecordPlayedGame(ctx context.Context, playerID, gameID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	player, ok := s.players[playerID]
	if !ok {
		return
	}
	for _, existing := range player.GamesPlayed {
		if existing == gameID {
			return
		}
	}
	player.GamesPlayed = append(player.GamesPlayed, gameID)

	logging.Info(ctx, "played game recorded",
		zap.String("player_id", playerID),
		zap.String("game_id", gameID),
	)
}

// UnlockAchievement appends a new entry stamped with the unlock time.
// Deliberately not deduplicated. No-op for unknown players.
func (s *Store) UnlockAchievement(ctx context.Context, playerID, achievementID, name, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	player, ok := s.players[playerID]
	if !ok {
		return
	}
	player.Achievements = append(player.Achievements, Achievement{
		ID:          achievementID,
		Name:        name,
		Description: description,
		UnlockedAt:  s.now().UTC().Unix(),
	})

	logging.Info(ctx, "achievement unlocked",
		zap.String("player_id", playerID),
		zap.String("achievement", name),
	)
}

// --- Snapshot / Restore ---

// Snapshot deep-copies every record, hash included, for checkpointing.
func (s *Store) Snapshot() []Player {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, clonePlayer(p))
	}
	return out
}

// Restore replaces the store contents and rebuilds the email index. Used at
// boot before the store is shared, but safe to call at any point.
func (s *Store) Restore(ctx context.Context, players []Player) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.players = make(map[string]*Player, len(players))
	s.emailIndex = make(map[string]string, len(players))
	for i := range players {
		p := clonePlayer(&players[i])
		s.players[p.ID] = &p
		s.emailIndex[p.Email] = p.ID
	}

	logging.Info(ctx, "player store restored", zap.Int("players", len(players)))
}
