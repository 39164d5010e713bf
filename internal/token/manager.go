// Package token はセッショントークン（自己完結型の署名付きJWT）の発行と検証を提供する。
//
// バックエンドが署名シークレットを専有し、クライアントはトークンを保持・提示する
// だけでその内部を検査しない。検証失敗は期限切れ・形式不正・署名不正の3種類を
// 区別して報告する。
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hitoshi/adhyayan/internal/model"
)

// 検証失敗の種別。ミドルウェアはerrors.Isでこれらを判別し、
// 機械可読なエラーコードにマッピングする。
var (
	// ErrTokenExpired はトークンの有効期限が切れていることを示す。
	ErrTokenExpired = errors.New("session token expired")
	// ErrTokenMalformed はトークンがJWTとして解釈できないことを示す。
	ErrTokenMalformed = errors.New("session token malformed")
	// ErrTokenInvalid は署名不正などその他の検証失敗を示す。
	ErrTokenInvalid = errors.New("session token invalid")
)

const issuer = "adhyayan"

// Claims はセッショントークンに埋め込むクレーム。
type Claims struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	jwt.RegisteredClaims
}

// Manager はHMAC-SHA256によるセッショントークンの発行・検証を行う。
// 初期化後はイミュータブルであり、複数goroutineから安全に使用できる。
type Manager struct {
	secret []byte
	expiry time.Duration
}

// NewManager はManagerを生成する。
// secretが空、またはexpiryが0以下の場合はエラーを返す。
func NewManager(secret string, expiry time.Duration) (*Manager, error) {
	if secret == "" {
		return nil, errors.New("signing secret is required")
	}
	if expiry <= 0 {
		return nil, errors.New("token expiry must be positive")
	}
	return &Manager{
		secret: []byte(secret),
		expiry: expiry,
	}, nil
}

// Issue は指定ユーザーのセッショントークンを発行する。
// 有効期限は発行時刻からManagerのexpiry（既定7日）。
func (m *Manager) Issue(user *model.User) (string, error) {
	now := time.Now()
	claims := Claims{
		UID:         user.GoogleUID,
		Email:       user.Email,
		DisplayName: user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return signed, nil
}

// Verify はセッショントークンを検証し、クレームを返す。
// 失敗時はErrTokenExpired / ErrTokenMalformed / ErrTokenInvalidの
// いずれかをラップしたエラーを返す。
func (m *Manager) Verify(tokenStr string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
	)

	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		return nil, classifyError(err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// classifyError はjwtライブラリのエラーを3種類の検証失敗に分類する。
func classifyError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	default:
		return fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
}
