package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/fugitivebreach/arrow-api/internal/domain/user"
	"github.com/fugitivebreach/arrow-api/internal/ierr"
	"github.com/fugitivebreach/arrow-api/internal/session"
)

const discordAPIBase = "https://discord.com/api/v10"

var discordOAuthEndpoint = oauth2.Endpoint{
	AuthURL:  "https://discord.com/oauth2/authorize",
	TokenURL: "https://discord.com/api/oauth2/token",
}

// AuthHandler runs the Discord OAuth2 login for the dashboard and turns a
// successful exchange into a signed session cookie. Persisting the user is
// best effort: a dead database must not block logging in.
type AuthHandler struct {
	oauth    *oauth2.Config
	sessions *session.Manager
	users    user.Repository
	logger   *zap.Logger
}

func NewAuthHandler(clientID, clientSecret, redirectURL string, sessions *session.Manager, users user.Repository, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"identify", "email"},
			Endpoint:     discordOAuthEndpoint,
		},
		sessions: sessions,
		users:    users,
		logger:   logger.Named("AuthHandler"),
	}
}

func (h *AuthHandler) Login(c *gin.Context) {
	state, err := randomState()
	if err != nil {
		c.Error(fmt.Errorf("%w: generating oauth state: %v", ierr.ErrInternalServer, err))
		return
	}
	c.SetCookie("oauth_state", state, int((5 * time.Minute).Seconds()), "/", "", false, true)
	c.Redirect(http.StatusTemporaryRedirect, h.oauth.AuthCodeURL(state))
}

func (h *AuthHandler) Callback(c *gin.Context) {
	wantState, err := c.Cookie("oauth_state")
	if err != nil || wantState == "" || c.Query("state") != wantState {
		c.Error(fmt.Errorf("%w: oauth state mismatch", ierr.ErrUnauthorized))
		return
	}
	c.SetCookie("oauth_state", "", -1, "/", "", false, true)

	code := c.Query("code")
	if code == "" {
		c.Error(fmt.Errorf("%w: missing oauth code", ierr.ErrValidation))
		return
	}

	token, err := h.oauth.Exchange(c.Request.Context(), code)
	if err != nil {
		h.logger.Warn("OAuth code exchange failed", zap.Error(err))
		c.Error(fmt.Errorf("%w: oauth exchange failed", ierr.ErrUnauthorized))
		return
	}

	profile, err := h.fetchDiscordUser(c.Request.Context(), token)
	if err != nil {
		c.Error(err)
		return
	}

	if err := h.users.Upsert(c.Request.Context(), &user.User{
		DiscordID:     profile.ID,
		Username:      profile.Username,
		Discriminator: profile.Discriminator,
		Avatar:        profile.Avatar,
		Email:         profile.Email,
		LastLogin:     time.Now().UTC(),
	}); err != nil {
		if !errors.Is(err, ierr.ErrStorageUnavailable) {
			c.Error(err)
			return
		}
		h.logger.Warn("Storage unavailable during login, continuing with ephemeral session",
			zap.String("discord_id", profile.ID))
	}

	signed, err := h.sessions.Mint(profile.ID, profile.Username)
	if err != nil {
		c.Error(err)
		return
	}

	c.SetCookie(session.CookieName, signed, int(h.sessions.MaxAge().Seconds()), "/", "", false, true)
	c.Redirect(http.StatusTemporaryRedirect, "/dashboard/me")
}

func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetCookie(session.CookieName, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

type discordUser struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	Avatar        string `json:"avatar"`
	Email         string `json:"email"`
}

func (h *AuthHandler) fetchDiscordUser(ctx context.Context, token *oauth2.Token) (*discordUser, error) {
	client := h.oauth.Client(ctx, token)
	resp, err := client.Get(discordAPIBase + "/users/@me")
	if err != nil {
		return nil, fmt.Errorf("%w: fetching discord profile: %v", ierr.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: discord profile returned status %d", ierr.ErrUpstream, resp.StatusCode)
	}

	var profile discordUser
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("%w: decoding discord profile: %v", ierr.ErrUpstream, err)
	}
	return &profile, nil
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
