package roblox

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/fugitivebreach/arrow-api/internal/ierr"
)

var (
	ErrUserNotFound      = errors.New("roblox user not found")
	ErrInvalidCredential = errors.New("roblox session credential is invalid")

	// Join-group denial variants. Challenge-required and approval-required
	// both mean the bot cannot complete the join unattended.
	ErrChallengeRequired       = errors.New("group join requires a security challenge")
	ErrApprovalRequired        = errors.New("group requires manual join approval")
	ErrAlreadyMember           = errors.New("account is already a member of the group")
	ErrInsufficientPermissions = errors.New("insufficient permissions for group action")
	ErrGroupFull               = errors.New("group is full")
	ErrJoinDenied              = errors.New("group join was denied")
)

// Endpoint identifies which authenticated Roblox call produced a numeric
// error code. Codes are scoped per endpoint; the same number means
// different things on different calls.
type Endpoint string

const (
	EndpointJoinGroup Endpoint = "join-group"
	EndpointSetRole   Endpoint = "set-role"
	EndpointExile     Endpoint = "exile"
)

// errorTable maps (endpoint, upstream numeric code) pairs to domain error
// variants. Kept as data so classification stays in one place.
var errorTable = map[Endpoint]map[int]error{
	EndpointJoinGroup: {
		1:  ErrJoinDenied, // group is invalid or does not exist
		3:  ErrChallengeRequired,
		5:  ErrAlreadyMember,
		6:  ErrApprovalRequired,
		18: ErrInsufficientPermissions,
		26: ErrGroupFull,
	},
	EndpointSetRole: {
		1:  ErrJoinDenied,
		3:  ErrUserNotFound,
		18: ErrInsufficientPermissions,
	},
	EndpointExile: {
		1:  ErrJoinDenied,
		3:  ErrUserNotFound,
		18: ErrInsufficientPermissions,
	},
}

// ClassifyCode resolves an upstream numeric error code for an endpoint,
// collapsing unknown codes to the generic denial for that endpoint.
func ClassifyCode(endpoint Endpoint, code int) error {
	if codes, ok := errorTable[endpoint]; ok {
		if err, ok := codes[code]; ok {
			return err
		}
	}
	return fmt.Errorf("%w: code %d on %s", ErrJoinDenied, code, endpoint)
}

type upstreamErrorBody struct {
	Errors []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

func decodeUpstreamError(endpoint Endpoint, body io.Reader) error {
	var parsed upstreamErrorBody
	if err := json.NewDecoder(body).Decode(&parsed); err != nil || len(parsed.Errors) == 0 {
		return nil
	}
	return ClassifyCode(endpoint, parsed.Errors[0].Code)
}

func classifyStatus(status int) error {
	switch status {
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", ierr.ErrUpstreamRateLimited, status)
	case http.StatusNotFound:
		return fmt.Errorf("%w: status %d", ierr.ErrUpstreamNotFound, status)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ierr.ErrUpstreamForbidden, status)
	default:
		return fmt.Errorf("%w: status %d", ierr.ErrUpstream, status)
	}
}

func classifyTransport(err error) error {
	return fmt.Errorf("%w: %v", ierr.ErrUpstream, err)
}
