package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/nao1215/socialhub/pkg/middleware"
)

// SessionAuthenticator はライブセッション確立時の資格情報を検証する。
type SessionAuthenticator struct {
	secret    string
	directory UserDirectory
}

// NewSessionAuthenticator は新しいSessionAuthenticatorを生成する。
func NewSessionAuthenticator(secret string, directory UserDirectory) *SessionAuthenticator {
	return &SessionAuthenticator{secret: secret, directory: directory}
}

// Authenticate は資格情報を検証し、認証済みユーザーの情報を返す。
// 資格情報の欠落・不正、ユーザーの不在・削除済み・未認証はそれぞれ対応するエラーを返す。
func (a *SessionAuthenticator) Authenticate(ctx context.Context, credential string) (*Identity, error) {
	if credential == "" {
		return nil, ErrMissingToken
	}

	claims, err := middleware.ParseJWT(a.secret, credential)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	member, err := a.directory.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("ユーザーの照会に失敗: %w", err)
	}
	if member.IsDeleted {
		return nil, ErrUserNotFound
	}
	if !member.IsVerified {
		return nil, ErrUserNotVerified
	}

	return &Identity{
		ID:    member.ID,
		Name:  member.Name,
		Email: member.Email,
		Role:  member.Role,
	}, nil
}

// IsAuthError はerrが資格情報やユーザー状態による認証失敗かどうかを返す。
func IsAuthError(err error) bool {
	return errors.Is(err, ErrMissingToken) ||
		errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrUserNotVerified)
}
