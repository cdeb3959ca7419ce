package identity

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/friendix-ai/companion/internal/models"
)

// earlyUserCutoff is the highest signup rank still considered an early
// user.
const earlyUserCutoff = 99

// SequentialIdentity is the write-once public identity derived from the
// account's signup rank.
type SequentialIdentity struct {
	FriendID     string
	Number       string
	CreationYear int
	IsEarlyUser  bool
}

// GetOrAssignFriendID returns the account's permanent friend identifier,
// assigning and persisting it on first call. Once stored, later calls
// return the stored values without recomputing the rank, so the
// identifier never drifts when older accounts are deleted.
func (s *Service) GetOrAssignFriendID(ctx context.Context, user *models.User) SequentialIdentity {
	if user.Profile.FriendID != "" {
		return SequentialIdentity{
			FriendID:     user.Profile.FriendID,
			Number:       user.Profile.FriendIDNumber,
			CreationYear: user.Profile.CreationYear,
			IsEarlyUser:  user.Profile.IsEarlyUser,
		}
	}

	rank, errRank := s.signupRank(ctx, user.ID)
	if errRank != nil {
		log.WithError(errRank).WithField("user", user.ID).Warn("signup rank scan failed; using derived friend id")
		return s.fallbackIdentity(user)
	}

	identity := SequentialIdentity{
		Number:       fmt.Sprintf("%06d", rank),
		CreationYear: s.creationYear(user),
		IsEarlyUser:  rank >= 1 && rank <= earlyUserCutoff,
	}
	identity.FriendID = "FRD-" + identity.Number

	if errPersist := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"profile_friend_id":        identity.FriendID,
			"profile_friend_id_number": identity.Number,
			"profile_creation_year":    identity.CreationYear,
			"profile_is_early_user":    identity.IsEarlyUser,
		}).Error; errPersist != nil {
		log.WithError(errPersist).WithField("user", user.ID).Warn("failed to persist friend id")
		return identity
	}

	user.Profile.FriendID = identity.FriendID
	user.Profile.FriendIDNumber = identity.Number
	user.Profile.CreationYear = identity.CreationYear
	user.Profile.IsEarlyUser = identity.IsEarlyUser
	return identity
}

// signupRank returns the account's 1-based position in creation order, or
// 0 when the account is not in the scan.
func (s *Service) signupRank(ctx context.Context, userID string) (int, error) {
	var ids []string
	if errScan := s.db.WithContext(ctx).Model(&models.User{}).
		Order("created_at ASC, id ASC").
		Pluck("id", &ids).Error; errScan != nil {
		return 0, fmt.Errorf("identity: rank scan: %w", errScan)
	}
	for i, id := range ids {
		if id == userID {
			return i + 1, nil
		}
	}
	return 0, nil
}

// creationYear resolves the signup year from the row timestamp, falling
// back to the instant embedded in the account id.
func (s *Service) creationYear(user *models.User) int {
	if !user.CreatedAt.IsZero() {
		return user.CreatedAt.UTC().Year()
	}
	if uid, errParse := uuid.Parse(user.ID); errParse == nil && uid.Version() == 7 {
		sec, nsec := uid.Time().UnixTime()
		return time.Unix(sec, nsec).UTC().Year()
	}
	return s.now().UTC().Year()
}

// fallbackIdentity derives a stable 6-digit identifier from the account id
// when the rank scan is unavailable. It is never persisted and never
// claims early-user status.
func (s *Service) fallbackIdentity(user *models.User) SequentialIdentity {
	sum := sha256.Sum256([]byte(user.ID))
	n := binary.BigEndian.Uint64(sum[:8])%900000 + 100000
	number := fmt.Sprintf("%06d", n)
	return SequentialIdentity{
		FriendID:     "FRD-" + number,
		Number:       number,
		CreationYear: s.creationYear(user),
		IsEarlyUser:  false,
	}
}
