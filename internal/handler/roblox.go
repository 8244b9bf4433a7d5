package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fugitivebreach/arrow-api/internal/ierr"
	"github.com/fugitivebreach/arrow-api/internal/roblox"
)

type RobloxHandler struct {
	client *roblox.Client
	logger *zap.Logger
}

func NewRobloxHandler(client *roblox.Client, logger *zap.Logger) *RobloxHandler {
	return &RobloxHandler{
		client: client,
		logger: logger.Named("RobloxHandler"),
	}
}

// Membership answers the primary proxy question: is this Roblox user in
// this group, and at what rank.
func (h *RobloxHandler) Membership(c *gin.Context) {
	userID, err := pathID(c, "robloxUserID")
	if err != nil {
		c.Error(err)
		return
	}
	groupID, err := pathID(c, "groupID")
	if err != nil {
		c.Error(err)
		return
	}

	membership, err := h.client.GroupMembership(c.Request.Context(), userID, groupID)
	if err != nil {
		c.Error(err)
		return
	}

	resp := gin.H{
		"apiKey":     "API Key is valid and exists",
		"membership": membership.Status,
	}
	if membership.Status == roblox.StatusInGroup {
		resp["rankName"] = membership.RankName
		resp["rankID"] = membership.RankID
		resp["groupName"] = membership.GroupName
		resp["groupID"] = membership.GroupID
	}
	c.JSON(http.StatusOK, resp)
}

func (h *RobloxHandler) UserProfile(c *gin.Context) {
	h.proxyUser(c, func(userID int64) (any, error) {
		return h.client.UserProfile(c.Request.Context(), userID)
	})
}

func (h *RobloxHandler) UserHeadshot(c *gin.Context) {
	userID, err := pathID(c, "userID")
	if err != nil {
		c.Error(err)
		return
	}

	img, err := h.client.UserHeadshotImage(c.Request.Context(), userID, c.Query("size"))
	if err != nil {
		c.Error(err)
		return
	}

	c.Header("Cache-Control", "public, max-age=300")
	c.Data(http.StatusOK, "image/png", img)
}

func (h *RobloxHandler) UserBadges(c *gin.Context) {
	h.proxyUser(c, func(userID int64) (any, error) {
		return h.client.UserBadges(c.Request.Context(), userID)
	})
}

func (h *RobloxHandler) UserStatus(c *gin.Context) {
	h.proxyUser(c, func(userID int64) (any, error) {
		return h.client.UserStatus(c.Request.Context(), userID)
	})
}

func (h *RobloxHandler) UserGames(c *gin.Context) {
	h.proxyUser(c, func(userID int64) (any, error) {
		return h.client.UserGames(c.Request.Context(), userID)
	})
}

func (h *RobloxHandler) UserFavoriteGames(c *gin.Context) {
	h.proxyUser(c, func(userID int64) (any, error) {
		return h.client.UserFavoriteGames(c.Request.Context(), userID)
	})
}

func (h *RobloxHandler) UserFriends(c *gin.Context) {
	h.proxyUser(c, func(userID int64) (any, error) {
		return h.client.UserFriends(c.Request.Context(), userID)
	})
}

func (h *RobloxHandler) UserFollowers(c *gin.Context) {
	h.proxyUser(c, func(userID int64) (any, error) {
		return h.client.UserFollowers(c.Request.Context(), userID)
	})
}

func (h *RobloxHandler) UserFollowing(c *gin.Context) {
	h.proxyUser(c, func(userID int64) (any, error) {
		return h.client.UserFollowing(c.Request.Context(), userID)
	})
}

func (h *RobloxHandler) UserPresence(c *gin.Context) {
	h.proxyUser(c, func(userID int64) (any, error) {
		return h.client.UserPresence(c.Request.Context(), userID)
	})
}

func (h *RobloxHandler) UserInventory(c *gin.Context) {
	h.proxyUser(c, func(userID int64) (any, error) {
		return h.client.UserInventory(c.Request.Context(), userID, c.Query("assetType"))
	})
}

func (h *RobloxHandler) GroupInfo(c *gin.Context) {
	h.proxyGroup(c, func(groupID int64) (any, error) {
		return h.client.GroupInfo(c.Request.Context(), groupID)
	})
}

func (h *RobloxHandler) GroupRoles(c *gin.Context) {
	h.proxyGroup(c, func(groupID int64) (any, error) {
		return h.client.GroupRoles(c.Request.Context(), groupID)
	})
}

func (h *RobloxHandler) GroupWall(c *gin.Context) {
	h.proxyGroup(c, func(groupID int64) (any, error) {
		return h.client.GroupWall(c.Request.Context(), groupID)
	})
}

func (h *RobloxHandler) GroupAllies(c *gin.Context) {
	h.proxyGroup(c, func(groupID int64) (any, error) {
		return h.client.GroupAllies(c.Request.Context(), groupID)
	})
}

func (h *RobloxHandler) GameInfo(c *gin.Context) {
	universeID, err := pathID(c, "universeID")
	if err != nil {
		c.Error(err)
		return
	}
	h.respond(c, func() (any, error) {
		return h.client.GameInfo(c.Request.Context(), universeID)
	})
}

func (h *RobloxHandler) AssetDetails(c *gin.Context) {
	assetID, err := pathID(c, "assetID")
	if err != nil {
		c.Error(err)
		return
	}
	h.respond(c, func() (any, error) {
		return h.client.AssetDetails(c.Request.Context(), assetID)
	})
}

func (h *RobloxHandler) CatalogSearch(c *gin.Context) {
	keyword := c.Query("keyword")
	if keyword == "" {
		c.Error(fmt.Errorf("%w: query parameter 'keyword' is required", ierr.ErrValidation))
		return
	}
	h.respond(c, func() (any, error) {
		return h.client.CatalogSearch(c.Request.Context(), keyword, c.Query("category"))
	})
}

func (h *RobloxHandler) proxyUser(c *gin.Context, fetch func(userID int64) (any, error)) {
	userID, err := pathID(c, "userID")
	if err != nil {
		c.Error(err)
		return
	}
	h.respond(c, func() (any, error) { return fetch(userID) })
}

func (h *RobloxHandler) proxyGroup(c *gin.Context, fetch func(groupID int64) (any, error)) {
	groupID, err := pathID(c, "groupID")
	if err != nil {
		c.Error(err)
		return
	}
	h.respond(c, func() (any, error) { return fetch(groupID) })
}

func (h *RobloxHandler) respond(c *gin.Context, fetch func() (any, error)) {
	data, err := fetch()
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, data)
}

func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: path parameter '%s' must be a positive integer", ierr.ErrValidation, name)
	}
	return id, nil
}
