package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ロール名。トークンのroleクレームとユーザーレコードの両方で使用する。
const (
	// RoleAdmin は管理者ロール。
	RoleAdmin = "admin"
	// RoleUser は一般ユーザーロール。
	RoleUser = "user"
	// RoleService はサービス間通信用のロール。内部APIの呼び出しにのみ使用する。
	RoleService = "service"
)

// LoginTokenTTL はログイン時に発行するトークンの有効期間。
const LoginTokenTTL = 7 * 24 * time.Hour

// tokenIssuer はこのシステムが発行するトークンのissuer。
const tokenIssuer = "socialhub"

// ErrInvalidToken はトークンの署名・有効期限・形式のいずれかが不正であることを表す。
var ErrInvalidToken = errors.New("invalid token")

// JWTClaims はJWTトークンのクレーム（ペイロード）を表す。
// ユーザーID等の情報をサービス間で伝播するために使用する。
type JWTClaims struct {
	jwt.RegisteredClaims
	// UserID は認証済みユーザーの一意識別子。
	UserID string `json:"user_id"`
	// Email はユーザーのメールアドレス。
	Email string `json:"email"`
	// Role はユーザーのロール（admin / user / service）。
	Role string `json:"role"`
}

// headerKeyUserID はサービス間でユーザーIDを伝播するためのHTTPヘッダーキー。
const headerKeyUserID = "X-User-ID"

// GenerateJWT はユーザー情報からHS256で署名したJWTトークンを生成する。
// ttlにはトークンの有効期間を指定する。
func GenerateJWT(secret, userID, email, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
		UserID: userID,
		Email:  email,
		Role:   role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// ParseJWT はトークン文字列を検証し、クレームを返す。
// 署名不正・期限切れ・有効期限なし・形式不正はすべてErrInvalidTokenとして返す。
func ParseJWT(secret, tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// BearerToken はAuthorizationヘッダーの値から "Bearer " を取り除いたトークンを返す。
func BearerToken(authHeader string) (string, bool) {
	token, found := strings.CutPrefix(authHeader, "Bearer ")
	if !found || token == "" {
		return "", false
	}
	return token, true
}

// JWTAuth はJWTトークンを検証するGinミドルウェアを返す。
// 検証に成功した場合、コンテキストに "user_id"、"email"、"role" を設定する。
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorizationヘッダーが必要です",
			})
			return
		}

		tokenString, ok := BearerToken(authHeader)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Bearer トークン形式が不正です",
			})
			return
		}

		claims, err := ParseJWT(secret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "トークンが無効です",
			})
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("email", claims.Email)
		c.Set("role", claims.Role)
		c.Header(headerKeyUserID, claims.UserID)
		c.Next()
	}
}

// RequireRole はトークンのロールが許可リストに含まれることを要求するGinミドルウェアを返す。
// JWTAuthの後に適用すること。
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !slices.Contains(roles, GetRole(c)) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "このリソースにアクセスする権限がありません",
			})
			return
		}
		c.Next()
	}
}

// GetUserID はGinコンテキストからユーザーIDを取得する。
// JWTAuthミドルウェアが事前に適用されている必要がある。
func GetUserID(c *gin.Context) string {
	return c.GetString("user_id")
}

// GetRole はGinコンテキストからロールを取得する。
func GetRole(c *gin.Context) string {
	return c.GetString("role")
}

// ServiceTokenSource はサービス間通信用の短命トークンを都度発行する関数を返す。
// httpclient.WithTokenSource と組み合わせて使用する。
func ServiceTokenSource(secret, serviceName string) func() (string, error) {
	return func() (string, error) {
		return GenerateJWT(secret, serviceName, "", RoleService, 5*time.Minute)
	}
}
