package roblox

import (
	"errors"
	"strings"
	"testing"

	"github.com/fugitivebreach/arrow-api/internal/ierr"
)

func TestClassifyCodeJoinGroup(t *testing.T) {
	cases := []struct {
		code int
		want error
	}{
		{1, ErrJoinDenied},
		{3, ErrChallengeRequired},
		{5, ErrAlreadyMember},
		{6, ErrApprovalRequired},
		{18, ErrInsufficientPermissions},
		{26, ErrGroupFull},
	}
	for _, tc := range cases {
		if got := ClassifyCode(EndpointJoinGroup, tc.code); !errors.Is(got, tc.want) {
			t.Errorf("ClassifyCode(join-group, %d) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestClassifyCodeUnknownCollapsesToDenied(t *testing.T) {
	if got := ClassifyCode(EndpointJoinGroup, 9999); !errors.Is(got, ErrJoinDenied) {
		t.Errorf("ClassifyCode(join-group, 9999) = %v, want ErrJoinDenied", got)
	}
	if got := ClassifyCode(Endpoint("unknown"), 1); !errors.Is(got, ErrJoinDenied) {
		t.Errorf("ClassifyCode(unknown, 1) = %v, want ErrJoinDenied", got)
	}
}

func TestDecodeUpstreamError(t *testing.T) {
	body := strings.NewReader(`{"errors":[{"code":26,"message":"The group is at maximum membership."}]}`)
	if got := decodeUpstreamError(EndpointJoinGroup, body); !errors.Is(got, ErrGroupFull) {
		t.Errorf("decodeUpstreamError = %v, want ErrGroupFull", got)
	}

	// A non-JSON body yields no classification; the caller falls back to
	// the HTTP status.
	if got := decodeUpstreamError(EndpointJoinGroup, strings.NewReader("<html>")); got != nil {
		t.Errorf("decodeUpstreamError on non-JSON body = %v, want nil", got)
	}
	if got := decodeUpstreamError(EndpointJoinGroup, strings.NewReader(`{"errors":[]}`)); got != nil {
		t.Errorf("decodeUpstreamError on empty errors = %v, want nil", got)
	}
}

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{429, ierr.ErrUpstreamRateLimited},
		{404, ierr.ErrUpstreamNotFound},
		{401, ierr.ErrUpstreamForbidden},
		{403, ierr.ErrUpstreamForbidden},
		{500, ierr.ErrUpstream},
		{502, ierr.ErrUpstream},
	}
	for _, tc := range cases {
		if got := classifyStatus(tc.status); !errors.Is(got, tc.want) {
			t.Errorf("classifyStatus(%d) = %v, want %v", tc.status, got, tc.want)
		}
	}
}
