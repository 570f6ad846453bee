// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package verify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfserrors "github.com/cloudfilesync/cfsauth/pkg/errors"
	"github.com/cloudfilesync/cfsauth/pkg/networking"
)

func TestNewVerifier(t *testing.T) {
	t.Parallel()

	_, err := NewVerifier(nil, "")
	require.Error(t, err)
	assert.True(t, cfserrors.IsInvalidArgument(err))

	_, err = NewVerifier(nil, "http://pan.baidu.com/rest/2.0/xpan/nas?method=uinfo")
	require.Error(t, err)
	assert.True(t, cfserrors.IsInvalidArgument(err))

	v, err := NewVerifier(nil, "https://pan.baidu.com/rest/2.0/xpan/nas?method=uinfo")
	require.NoError(t, err)
	assert.Same(t, http.DefaultClient, v.client)
}

func TestVerifier_Verify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		status      int
		body        string
		want        *Account
		errContains string
		isProvider  bool
		isHTTPError bool
	}{
		{
			name:   "baidu account",
			status: http.StatusOK,
			body: `{"errno":0,"errmsg":"succ","baidu_name":"cfs_user","netdisk_name":"cfs_disk",
				"avatar_url":"https://example.com/a.png","vip_type":2,"uk":123456789,"request_id":"1"}`,
			want: &Account{
				Name:        "cfs_user",
				NetdiskName: "cfs_disk",
				UK:          123456789,
				VIPType:     2,
				AvatarURL:   "https://example.com/a.png",
			},
		},
		{
			name:   "generic user info",
			status: http.StatusOK,
			body:   `{"sub":"248289761001","email":"user@example.com"}`,
			want:   &Account{Name: "user@example.com"},
		},
		{
			name:        "baidu rejects token",
			status:      http.StatusOK,
			body:        `{"errno":-6,"errmsg":"Invalid Bduss","request_id":"2"}`,
			errContains: "user info rejected (errno -6): Invalid Bduss",
			isProvider:  true,
		},
		{
			name:        "oauth error answer",
			status:      http.StatusUnauthorized,
			body:        `{"error":"invalid_token","error_description":"expired"}`,
			errContains: "user info rejected: expired",
			isProvider:  true,
		},
		{
			name:        "server error without JSON",
			status:      http.StatusServiceUnavailable,
			body:        `maintenance`,
			errContains: "request failed: HTTP 503",
			isHTTPError: true,
		},
		{
			name:        "JSON error status without error fields",
			status:      http.StatusForbidden,
			body:        `{"message":"forbidden"}`,
			errContains: "HTTP 403",
			isHTTPError: true,
		},
		{
			name:        "invalid JSON",
			status:      http.StatusOK,
			body:        `<html></html>`,
			errContains: "user info endpoint returned invalid JSON",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "uinfo", r.URL.Query().Get("method"))
				assert.Equal(t, "tok-123", r.URL.Query().Get("access_token"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			v, err := NewVerifier(server.Client(), server.URL+"/rest/2.0/xpan/nas?method=uinfo")
			require.NoError(t, err)

			account, err := v.Verify(context.Background(), "tok-123")
			if tt.errContains != "" {
				require.Error(t, err)
				assert.Nil(t, account)
				assert.Contains(t, err.Error(), tt.errContains)
				assert.Equal(t, tt.isProvider, cfserrors.IsProvider(err))
				assert.Equal(t, !tt.isProvider, cfserrors.IsTransport(err))
				assert.Equal(t, tt.isHTTPError, networking.IsHTTPError(err, tt.status))
				assert.NotContains(t, err.Error(), "tok-123")
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, account); diff != "" {
				t.Errorf("account mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestVerifier_VerifyBearerPost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		status      int
		body        string
		want        *Account
		errContains string
	}{
		{
			name:   "aliyun drive info",
			status: http.StatusOK,
			body: `{"user_id":"9d3a7f","name":"cfs_user","avatar":"https://example.com/a.png",
				"default_drive_id":"1234567","resource_drive_id":"7654321"}`,
			want: &Account{
				Name:      "cfs_user",
				UserID:    "9d3a7f",
				DriveID:   "1234567",
				AvatarURL: "https://example.com/a.png",
			},
		},
		{
			name:        "aliyun rejects token",
			status:      http.StatusUnauthorized,
			body:        `{"code":"AccessTokenInvalid","message":"AccessToken is invalid. ErrValidateTokenFailed"}`,
			errContains: "user info rejected (AccessTokenInvalid): AccessToken is invalid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/adrive/v1.0/user/getDriveInfo", r.URL.Path)
				assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
				assert.Empty(t, r.URL.Query().Get("access_token"), "bearer tokens stay out of the URL")
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			v, err := NewVerifier(server.Client(), server.URL+"/adrive/v1.0/user/getDriveInfo",
				WithMethod("post"), WithBearerAuth())
			require.NoError(t, err)

			account, err := v.Verify(context.Background(), "tok-123")
			if tt.errContains != "" {
				require.Error(t, err)
				assert.True(t, cfserrors.IsProvider(err))
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, account); diff != "" {
				t.Errorf("account mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNewVerifier_RejectsMethod(t *testing.T) {
	t.Parallel()

	_, err := NewVerifier(nil, "https://openapi.alipan.com/adrive/v1.0/user/getDriveInfo", WithMethod(http.MethodDelete))
	require.Error(t, err)
	assert.True(t, cfserrors.IsInvalidArgument(err))
}

func TestVerifier_EmptyToken(t *testing.T) {
	t.Parallel()

	v, err := NewVerifier(nil, "https://pan.baidu.com/rest/2.0/xpan/nas?method=uinfo")
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), "")
	require.Error(t, err)
	assert.True(t, cfserrors.IsInvalidArgument(err))
}

func TestAccount_Membership(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "regular", (&Account{VIPType: 0}).Membership())
	assert.Equal(t, "member", (&Account{VIPType: 1}).Membership())
	assert.Equal(t, "super member", (&Account{VIPType: 2}).Membership())
	assert.Equal(t, "vip type 7", (&Account{VIPType: 7}).Membership())
}
