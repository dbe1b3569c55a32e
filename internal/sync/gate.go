package sync

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/atelier-ops/atelier-sync/internal/secrets"
	"github.com/atelier-ops/atelier-sync/internal/syncerr"
)

var tokenPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// CheckToken rejects a missing or malformed ERP token without any network I/O
func CheckToken(token string) error {
	if strings.TrimSpace(token) == "" {
		return syncerr.Configuration(syncerr.MsgTokenNotConfigured)
	}
	if !tokenPattern.MatchString(token) {
		return syncerr.Configuration(syncerr.MsgTokenInvalidFormat)
	}
	return nil
}

// resolveToken loads the token for this invocation and checks its format
func resolveToken(ctx context.Context, source secrets.TokenSource) (string, error) {
	if source == nil {
		return "", syncerr.Configuration(syncerr.MsgTokenNotConfigured)
	}
	token, err := source.Token(ctx)
	if err != nil {
		if errors.Is(err, secrets.ErrNotConfigured) {
			return "", syncerr.Configuration(syncerr.MsgTokenNotConfigured)
		}
		return "", &syncerr.Error{
			Kind:    syncerr.KindConfiguration,
			Message: "ERP token could not be loaded: " + err.Error(),
			Err:     err,
		}
	}
	if err := CheckToken(token); err != nil {
		return "", err
	}
	return token, nil
}
