package sync

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-ops/atelier-sync/internal/secrets"
	"github.com/atelier-ops/atelier-sync/internal/syncerr"
)

const validToken = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

type failingSource struct{ err error }

func (f failingSource) Token(context.Context) (string, error) { return "", f.err }

func TestCheckToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		token   string
		wantMsg string
	}{
		{name: "valid", token: validToken},
		{name: "empty", token: "", wantMsg: syncerr.MsgTokenNotConfigured},
		{name: "whitespace", token: "   ", wantMsg: syncerr.MsgTokenNotConfigured},
		{name: "too short", token: "abc123", wantMsg: syncerr.MsgTokenInvalidFormat},
		{name: "uppercase hex", token: strings.ToUpper(validToken), wantMsg: syncerr.MsgTokenInvalidFormat},
		{name: "non hex", token: strings.Repeat("g", 64), wantMsg: syncerr.MsgTokenInvalidFormat},
		{name: "too long", token: validToken + "0", wantMsg: syncerr.MsgTokenInvalidFormat},
		{name: "surrounding spaces", token: " " + validToken, wantMsg: syncerr.MsgTokenInvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := CheckToken(tt.token)
			if tt.wantMsg == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, syncerr.ErrConfiguration)
			assert.Equal(t, tt.wantMsg, err.Error())
		})
	}
}

func TestResolveToken(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("nil source", func(t *testing.T) {
		t.Parallel()
		_, err := resolveToken(ctx, nil)
		require.ErrorIs(t, err, syncerr.ErrConfiguration)
		assert.Equal(t, syncerr.MsgTokenNotConfigured, err.Error())
	})

	t.Run("source reports not configured", func(t *testing.T) {
		t.Parallel()
		_, err := resolveToken(ctx, failingSource{err: secrets.ErrNotConfigured})
		require.ErrorIs(t, err, syncerr.ErrConfiguration)
		assert.Equal(t, syncerr.MsgTokenNotConfigured, err.Error())
	})

	t.Run("source fails", func(t *testing.T) {
		t.Parallel()
		cause := errors.New("access denied")
		_, err := resolveToken(ctx, failingSource{err: cause})
		require.ErrorIs(t, err, syncerr.ErrConfiguration)
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "could not be loaded")
	})

	t.Run("malformed token", func(t *testing.T) {
		t.Parallel()
		_, err := resolveToken(ctx, secrets.Static("not-a-token"))
		require.ErrorIs(t, err, syncerr.ErrConfiguration)
		assert.Equal(t, syncerr.MsgTokenInvalidFormat, err.Error())
	})

	t.Run("valid token", func(t *testing.T) {
		t.Parallel()
		token, err := resolveToken(ctx, secrets.Static(validToken))
		require.NoError(t, err)
		assert.Equal(t, validToken, token)
	})
}
