package roblox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const (
	groupsURL     = "https://groups.roblox.com/v1"
	usersURL      = "https://users.roblox.com/v1"
	gamesURL      = "https://games.roblox.com/v1"
	thumbnailsURL = "https://thumbnails.roblox.com/v1"
	catalogURL    = "https://catalog.roblox.com/v1"
	presenceURL   = "https://presence.roblox.com/v1"
	friendsURL    = "https://friends.roblox.com/v1"
	inventoryURL  = "https://inventory.roblox.com/v1"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

	csrfHeader = "X-CSRF-TOKEN"

	// Safety limit for the group-members pagination fallback.
	maxMemberPages = 50
)

// Client wraps the public Roblox REST endpoints the service proxies and the
// authenticated group-management calls the bot performs.
type Client struct {
	http   *http.Client
	logger *zap.Logger
}

func NewClient(timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http:   &http.Client{Timeout: timeout},
		logger: logger.Named("RobloxClient"),
	}
}

type UserProfile struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	Created     string `json:"created"`
	IsBanned    bool   `json:"isBanned"`
}

type AuthenticatedUser struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

type Membership struct {
	Status    MembershipStatus
	RankName  string
	RankID    int
	GroupName string
	GroupID   int64
}

type MembershipStatus string

const (
	StatusInGroup          MembershipStatus = "In group"
	StatusNotInGroup       MembershipStatus = "Not in group"
	StatusGroupsNotVisible MembershipStatus = "Groups not visible"
)

type groupRolesResponse struct {
	Data []struct {
		Group struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		} `json:"group"`
		Role struct {
			Name string `json:"name"`
			Rank int    `json:"rank"`
		} `json:"role"`
	} `json:"data"`
}

type groupMembersPage struct {
	NextPageCursor string `json:"nextPageCursor"`
	Data           []struct {
		User struct {
			UserID   int64  `json:"userId"`
			Username string `json:"username"`
		} `json:"user"`
		Role struct {
			Name string `json:"name"`
			Rank int    `json:"rank"`
		} `json:"role"`
	} `json:"data"`
}

// GroupMembership resolves a user's membership in a group. The primary
// users-side endpoint is preferred; when it fails the group-members
// listing is paginated as a fallback because per-user group visibility is
// a privacy setting on the user's side.
func (c *Client) GroupMembership(ctx context.Context, userID, groupID int64) (*Membership, error) {
	var roles groupRolesResponse
	err := c.getJSON(ctx, fmt.Sprintf("%s/users/%d/groups/roles", usersURL, userID), "", &roles)
	if err == nil {
		for _, entry := range roles.Data {
			if entry.Group.ID == groupID {
				return &Membership{
					Status:    StatusInGroup,
					RankName:  entry.Role.Name,
					RankID:    entry.Role.Rank,
					GroupName: entry.Group.Name,
					GroupID:   entry.Group.ID,
				}, nil
			}
		}
		return &Membership{Status: StatusNotInGroup}, nil
	}

	c.logger.Debug("user groups endpoint failed, paginating group members",
		zap.Int64("user_id", userID), zap.Int64("group_id", groupID), zap.Error(err))

	cursor := ""
	for page := 0; page < maxMemberPages; page++ {
		u := fmt.Sprintf("%s/groups/%d/users", groupsURL, groupID)
		if cursor != "" {
			u += "?cursor=" + url.QueryEscape(cursor)
		}

		var members groupMembersPage
		if pageErr := c.getJSON(ctx, u, "", &members); pageErr != nil {
			c.logger.Warn("group members fallback failed",
				zap.Int64("group_id", groupID), zap.Error(pageErr))
			return &Membership{Status: StatusGroupsNotVisible}, nil
		}

		for _, member := range members.Data {
			if member.User.UserID == userID {
				return &Membership{
					Status:    StatusInGroup,
					RankName:  member.Role.Name,
					RankID:    member.Role.Rank,
					GroupName: fmt.Sprintf("Group %d", groupID),
					GroupID:   groupID,
				}, nil
			}
		}

		if members.NextPageCursor == "" {
			return &Membership{Status: StatusNotInGroup}, nil
		}
		cursor = members.NextPageCursor
	}

	return &Membership{Status: StatusNotInGroup}, nil
}

// UserByUsername resolves an exact username. Returns ErrUserNotFound when
// no non-banned account matches.
func (c *Client) UserByUsername(ctx context.Context, username string) (*UserProfile, error) {
	body, err := json.Marshal(map[string]any{
		"usernames":          []string{username},
		"excludeBannedUsers": true,
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []struct {
			ID          int64  `json:"id"`
			Name        string `json:"name"`
			DisplayName string `json:"displayName"`
		} `json:"data"`
	}
	if err := c.postJSON(ctx, usersURL+"/usernames/users", "", body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, ErrUserNotFound
	}
	return &UserProfile{
		ID:          resp.Data[0].ID,
		Name:        resp.Data[0].Name,
		DisplayName: resp.Data[0].DisplayName,
	}, nil
}

// UserProfile fetches the profile, including the free-text description used
// by the ownership challenge.
func (c *Client) UserProfile(ctx context.Context, userID int64) (*UserProfile, error) {
	var profile UserProfile
	if err := c.getJSON(ctx, fmt.Sprintf("%s/users/%d", usersURL, userID), "", &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// AuthenticatedUser probes a session credential for validity.
func (c *Client) AuthenticatedUser(ctx context.Context, cookie string) (*AuthenticatedUser, error) {
	var me AuthenticatedUser
	if err := c.getJSON(ctx, usersURL+"/users/authenticated", cookie, &me); err != nil {
		return nil, err
	}
	if me.ID == 0 {
		return nil, ErrInvalidCredential
	}
	return &me, nil
}

// GroupCount returns how many groups the credential's account belongs to.
func (c *Client) GroupCount(ctx context.Context, cookie string, userID int64) (int, error) {
	var roles groupRolesResponse
	if err := c.getJSON(ctx, fmt.Sprintf("%s/users/%d/groups/roles", usersURL, userID), cookie, &roles); err != nil {
		return 0, err
	}
	return len(roles.Data), nil
}

// JoinGroup joins the target group with the given credential. Upstream
// denial codes are classified through the join-group error table; an
// already-a-member response surfaces as ErrAlreadyMember for the caller to
// treat as success.
func (c *Client) JoinGroup(ctx context.Context, cookie string, groupID int64) error {
	u := fmt.Sprintf("%s/groups/%d/users", groupsURL, groupID)
	return c.authenticatedCall(ctx, http.MethodPost, u, cookie, []byte("{}"), EndpointJoinGroup, nil)
}

// SetUserRole promotes or demotes a group member.
func (c *Client) SetUserRole(ctx context.Context, cookie string, groupID, userID, roleID int64) error {
	u := fmt.Sprintf("%s/groups/%d/users/%d", groupsURL, groupID, userID)
	body, err := json.Marshal(map[string]int64{"roleId": roleID})
	if err != nil {
		return err
	}
	return c.authenticatedCall(ctx, http.MethodPatch, u, cookie, body, EndpointSetRole, nil)
}

// ExileUser removes a member from a group.
func (c *Client) ExileUser(ctx context.Context, cookie string, groupID, userID int64) error {
	u := fmt.Sprintf("%s/groups/%d/users/%d", groupsURL, groupID, userID)
	return c.authenticatedCall(ctx, http.MethodDelete, u, cookie, nil, EndpointExile, nil)
}

// Pass-through resources. The proxy returns upstream JSON verbatim, so
// these stay raw.

func (c *Client) GroupInfo(ctx context.Context, groupID int64) (json.RawMessage, error) {
	return c.getRaw(ctx, fmt.Sprintf("%s/groups/%d", groupsURL, groupID))
}

func (c *Client) GroupRoles(ctx context.Context, groupID int64) (json.RawMessage, error) {
	return c.getRaw(ctx, fmt.Sprintf("%s/groups/%d/roles", groupsURL, groupID))
}

func (c *Client) GroupWall(ctx context.Context, groupID int64) (json.RawMessage, error) {
	return c.getRaw(ctx, fmt.Sprintf("%s/groups/%d/wall/posts", groupsURL, groupID))
}

func (c *Client) GroupAllies(ctx context.Context, groupID int64) (json.RawMessage, error) {
	return c.getRaw(ctx, fmt.Sprintf("%s/groups/%d/relationships/allies", groupsURL, groupID))
}

func (c *Client) UserBadges(ctx context.Context, userID int64) (json.RawMessage, error) {
	return c.getRaw(ctx, fmt.Sprintf("%s/users/%d/roblox-badges", usersURL, userID))
}

func (c *Client) UserStatus(ctx context.Context, userID int64) (json.RawMessage, error) {
	return c.getRaw(ctx, fmt.Sprintf("%s/users/%d/status", usersURL, userID))
}

func (c *Client) UserGames(ctx context.Context, userID int64) (json.RawMessage, error) {
	return c.getRaw(ctx, fmt.Sprintf("%s/users/%d/games", gamesURL, userID))
}

func (c *Client) UserFavoriteGames(ctx context.Context, userID int64) (json.RawMessage, error) {
	return c.getRaw(ctx, fmt.Sprintf("%s/users/%d/favorite/games", gamesURL, userID))
}

func (c *Client) GameInfo(ctx context.Context, universeID int64) (json.RawMessage, error) {
	return c.getRaw(ctx, fmt.Sprintf("%s/games?universeIds=%d", gamesURL, universeID))
}

func (c *Client) UserFriends(ctx context.Context, userID int64) (json.RawMessage, error) {
	return c.getRaw(ctx, fmt.Sprintf("%s/users/%d/friends", friendsURL, userID))
}

func (c *Client) UserFollowers(ctx context.Context, userID int64) (json.RawMessage, error) {
	return c.getRaw(ctx, fmt.Sprintf("%s/users/%d/followers", friendsURL, userID))
}

func (c *Client) UserFollowing(ctx context.Context, userID int64) (json.RawMessage, error) {
	return c.getRaw(ctx, fmt.Sprintf("%s/users/%d/followings", friendsURL, userID))
}

func (c *Client) UserPresence(ctx context.Context, userID int64) (json.RawMessage, error) {
	body, err := json.Marshal(map[string][]int64{"userIds": {userID}})
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := c.postJSON(ctx, presenceURL+"/presence/users", "", body, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Client) AssetDetails(ctx context.Context, assetID int64) (json.RawMessage, error) {
	return c.getRaw(ctx, fmt.Sprintf("%s/assets/%d/details", catalogURL, assetID))
}

func (c *Client) UserInventory(ctx context.Context, userID int64, assetType string) (json.RawMessage, error) {
	if assetType == "" {
		assetType = "Hat"
	}
	q := url.Values{}
	q.Set("assetType", assetType)
	q.Set("sortOrder", "Desc")
	q.Set("limit", "100")
	return c.getRaw(ctx, fmt.Sprintf("%s/users/%d/assets/collectibles?%s", inventoryURL, userID, q.Encode()))
}

func (c *Client) CatalogSearch(ctx context.Context, keyword, category string) (json.RawMessage, error) {
	if category == "" {
		category = "All"
	}
	q := url.Values{}
	q.Set("keyword", keyword)
	q.Set("category", category)
	q.Set("limit", "30")
	return c.getRaw(ctx, catalogURL+"/search/items?"+q.Encode())
}

// UserHeadshotURL resolves the CDN URL of a user's avatar headshot.
func (c *Client) UserHeadshotURL(ctx context.Context, userID int64, size string) (string, error) {
	if size == "" {
		size = "150x150"
	}
	q := url.Values{}
	q.Set("userIds", strconv.FormatInt(userID, 10))
	q.Set("size", size)
	q.Set("format", "Png")

	var resp struct {
		Data []struct {
			ImageURL string `json:"imageUrl"`
		} `json:"data"`
	}
	if err := c.getJSON(ctx, thumbnailsURL+"/users/avatar-headshot?"+q.Encode(), "", &resp); err != nil {
		return "", err
	}
	if len(resp.Data) == 0 || resp.Data[0].ImageURL == "" {
		return "", fmt.Errorf("no headshot data for user %d: %w", userID, ErrUserNotFound)
	}
	return resp.Data[0].ImageURL, nil
}

// UserHeadshotImage downloads the raw PNG bytes of a user's headshot.
func (c *Client) UserHeadshotImage(ctx context.Context, userID int64, size string) ([]byte, error) {
	imageURL, err := c.UserHeadshotURL(ctx, userID, size)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) getRaw(ctx context.Context, u string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, u, "", &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Client) getJSON(ctx context.Context, u, cookie string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	c.setHeaders(req, cookie)

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyStatus(resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) postJSON(ctx context.Context, u, cookie string, body []byte, out any) error {
	return c.authenticatedCall(ctx, http.MethodPost, u, cookie, body, "", out)
}

// authenticatedCall performs a state-changing request with the CSRF
// handshake: Roblox rejects the first write with 403 and hands back a token
// in X-CSRF-TOKEN, which the retry must echo.
func (c *Client) authenticatedCall(ctx context.Context, method, u, cookie string, body []byte, endpoint Endpoint, out any) error {
	resp, err := c.doOnce(ctx, method, u, cookie, "", body)
	if err != nil {
		return classifyTransport(err)
	}

	if resp.StatusCode == http.StatusForbidden {
		token := resp.Header.Get(csrfHeader)
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if token == "" {
			return classifyStatus(resp.StatusCode)
		}
		resp, err = c.doOnce(ctx, method, u, cookie, token, body)
		if err != nil {
			return classifyTransport(err)
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if endpoint != "" {
			if upErr := decodeUpstreamError(endpoint, resp.Body); upErr != nil {
				return upErr
			}
		}
		return classifyStatus(resp.StatusCode)
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) doOnce(ctx context.Context, method, u, cookie, csrf string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req, cookie)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if csrf != "" {
		req.Header.Set(csrfHeader, csrf)
	}
	return c.http.Do(req)
}

func (c *Client) setHeaders(req *http.Request, cookie string) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if cookie != "" {
		req.Header.Set("Cookie", ".ROBLOSECURITY="+cookie)
	}
}
