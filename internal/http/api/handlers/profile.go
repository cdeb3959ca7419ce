package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	dbutil "github.com/friendix-ai/companion/internal/db"
	"github.com/friendix-ai/companion/internal/identity"
	"github.com/friendix-ai/companion/internal/models"
	"github.com/friendix-ai/companion/internal/settings"
)

// maxAvatarBytes caps stored avatar images.
const maxAvatarBytes = 100 * 1024

// Defaults substituted for unset profile fields at read time.
const (
	defaultBio        = "Hey there! I’m using Friendix"
	publicDefaultName = "Friendix User"
)

// ProfileHandler serves profile reads, updates, and avatar images.
type ProfileHandler struct {
	db            *gorm.DB
	identity      *identity.Service
	defaultAvatar string
}

// NewProfileHandler constructs a ProfileHandler. defaultAvatar is the path
// of the image served for accounts without an uploaded avatar.
func NewProfileHandler(db *gorm.DB, svc *identity.Service, defaultAvatar string) *ProfileHandler {
	return &ProfileHandler{db: db, identity: svc, defaultAvatar: defaultAvatar}
}

// profilePayload builds the profile object returned by the read and update
// endpoints. The email is withheld on public lookups.
func (h *ProfileHandler) profilePayload(c *gin.Context, user *models.User, includeEmail bool) gin.H {
	seq := h.identity.GetOrAssignFriendID(c.Request.Context(), user)

	var avatarURL any
	if len(user.Profile.AvatarData) > 0 {
		avatarURL = "/avatar/" + user.ID
	}

	name := user.Profile.DisplayName
	if name == "" {
		if includeEmail {
			if at := strings.IndexByte(user.Email, '@'); at > 0 {
				name = user.Email[:at]
			}
		} else {
			name = publicDefaultName
		}
	}
	bio := user.Profile.Bio
	if bio == "" {
		bio = defaultBio
	}

	payload := gin.H{
		"display_name":     name,
		"avatar":           avatarURL,
		"status":           bio,
		"creation_year":    seq.CreationYear,
		"friend_id":        seq.FriendID,
		"friend_id_number": seq.Number,
		"is_early_user":    seq.IsEarlyUser,
	}
	if includeEmail {
		payload["email"] = user.Email
	}
	return payload
}

// Get returns the account's own profile.
func (h *ProfileHandler) Get(c *gin.Context) {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Email query parameter required."})
		return
	}

	var user models.User
	errFind := h.db.WithContext(c.Request.Context()).
		Where("email = ?", strings.ToLower(email)).First(&user).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "User not found."})
		return
	}
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Error fetching profile."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "profile": h.profilePayload(c, &user, true)})
}

// Public returns the safe profile object for a friend identifier. The
// account email is never included.
func (h *ProfileHandler) Public(c *gin.Context) {
	friendID := strings.TrimSpace(c.Query("id"))
	if friendID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Friend ID query parameter required."})
		return
	}

	// Friend identifiers are matched case-insensitively so shared links
	// survive client-side lowercasing. Equality, not LIKE: the identifier
	// comes from the caller and must never carry pattern metacharacters.
	var user models.User
	errFind := h.db.WithContext(c.Request.Context()).
		Where(dbutil.CaseInsensitiveEqExpr(h.db, "profile_friend_id"), friendID).
		First(&user).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "User not found."})
		return
	}
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Error fetching public profile."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "profile": h.profilePayload(c, &user, false)})
}

// Companion returns the persona card backed by the settings table.
func (h *ProfileHandler) Companion(c *gin.Context) {
	conn := h.db.WithContext(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"success": true, "profile": gin.H{
		"email":        settings.GetString(conn, settings.CompanionEmailKey),
		"display_name": settings.GetString(conn, settings.CompanionNameKey),
		"avatar":       settings.GetString(conn, settings.CompanionAvatarKey),
		"status":       settings.GetString(conn, settings.CompanionStatusKey),
	}})
}

// Update applies a multipart profile update. Text fields are written
// first; an oversized avatar then yields a partial-success response that
// still reports the text update.
func (h *ProfileHandler) Update(c *gin.Context) {
	email := strings.TrimSpace(c.PostForm("email"))
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Email required"})
		return
	}
	displayName := c.PostForm("display_name")
	statusMessage := c.PostForm("status_message")

	var user models.User
	errFind := h.db.WithContext(c.Request.Context()).
		Where("email = ?", strings.ToLower(email)).First(&user).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "User not found"})
		return
	}
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error updating profile."})
		return
	}

	if errText := h.db.WithContext(c.Request.Context()).Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"profile_display_name": displayName,
			"profile_bio":          statusMessage,
		}).Error; errText != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error updating profile."})
		return
	}

	avatarUpdated := false
	if file, errFile := c.FormFile("avatar_file"); errFile == nil && file != nil && file.Filename != "" {
		data, contentType, errRead := readUpload(file)
		if errRead != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error updating profile."})
			return
		}
		if len(data) > maxAvatarBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"success":              false,
				"message":              "Profile text updated, but image was too large (100KB limit).",
				"profile_text_updated": true,
			})
			return
		}
		if errAvatar := h.db.WithContext(c.Request.Context()).Model(&models.User{}).
			Where("id = ?", user.ID).
			Updates(map[string]any{
				"profile_avatar_data":         data,
				"profile_avatar_content_type": contentType,
			}).Error; errAvatar != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error updating profile."})
			return
		}
		avatarUpdated = true
	}

	var updated models.User
	if errReload := h.db.WithContext(c.Request.Context()).
		First(&updated, "id = ?", user.ID).Error; errReload != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error updating profile."})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"message":        "Profile updated successfully",
		"profile":        h.profilePayload(c, &updated, true),
		"avatar_updated": avatarUpdated,
	})
}

// Avatar serves the stored avatar image, falling back to the default
// image file.
func (h *ProfileHandler) Avatar(c *gin.Context) {
	accountID := c.Param("account_id")

	var user models.User
	errFind := h.db.WithContext(c.Request.Context()).
		First(&user, "id = ?", accountID).Error
	if errFind == nil && len(user.Profile.AvatarData) > 0 {
		contentType := user.Profile.AvatarContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		c.Data(http.StatusOK, contentType, user.Profile.AvatarData)
		return
	}
	if errFind != nil && !errors.Is(errFind, gorm.ErrRecordNotFound) {
		c.String(http.StatusInternalServerError, "Error serving avatar")
		return
	}

	if h.defaultAvatar != "" {
		if _, errStat := os.Stat(h.defaultAvatar); errStat == nil {
			c.File(h.defaultAvatar)
			return
		}
	}
	c.String(http.StatusNotFound, "Default avatar not found")
}

// readUpload drains a multipart file into memory. Reads stop one byte
// past the avatar cap, enough to detect an oversized file without
// buffering it whole.
func readUpload(file *multipart.FileHeader) ([]byte, string, error) {
	f, errOpen := file.Open()
	if errOpen != nil {
		return nil, "", fmt.Errorf("open upload: %w", errOpen)
	}
	defer func() { _ = f.Close() }()

	data, errRead := io.ReadAll(io.LimitReader(f, maxAvatarBytes+1))
	if errRead != nil {
		return nil, "", fmt.Errorf("read upload: %w", errRead)
	}
	return data, file.Header.Get("Content-Type"), nil
}
