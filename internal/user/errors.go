package user

import "errors"

var (
	// ErrNotFound はユーザーが存在しないことを表す。
	ErrNotFound = errors.New("user not found")
	// ErrEmailTaken はメールアドレスが既に登録されていることを表す。
	ErrEmailTaken = errors.New("email already registered")
)
