package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var (
	ErrExpired      = errors.New("token expired")
	ErrInvalid      = errors.New("invalid token")
	ErrWrongType    = errors.New("wrong token type")
	ErrRefreshReuse = errors.New("refresh token already used")
)

// Claims 载荷 {id, email, role} + 标准字段
type Claims struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"` // "USER" or "ADMIN"
	Type  string `json:"typ"`
	jwt.RegisteredClaims
}

// JWTer 单一类别令牌的签发/校验；access 与 refresh 各一个实例，密钥不同
type JWTer struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
	Type   string
}

func (j *JWTer) Issue(id uint, email, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		ID:    id,
		Email: email,
		Role:  role,
		Type:  j.Type,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   fmt.Sprint(id),
			Issuer:    j.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.TTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.Secret)
}

func (j *JWTer) Parse(tokenStr string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected alg")
		}
		return j.Secret, nil
	}, jwt.WithIssuer(j.Issuer), jwt.WithLeeway(5*time.Second), jwt.WithExpirationRequired())

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	c, ok := t.Claims.(*Claims)
	if !ok || !t.Valid {
		return nil, ErrInvalid
	}
	if c.Type != j.Type {
		return nil, ErrWrongType
	}
	return c, nil
}

type Pair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Revoker 记录已使用的 refresh token（jti）；首次使用返回 true
type Revoker interface {
	MarkUsed(ctx context.Context, jti string, ttl time.Duration) (bool, error)
}

type Tokens struct {
	Access  *JWTer
	Refresh *JWTer
	Revoker Revoker // 可为空：不做重放检测
}

func NewTokens(accessSecret, refreshSecret, issuer string, accessTTL, refreshTTL time.Duration) *Tokens {
	return &Tokens{
		Access:  &JWTer{Secret: []byte(accessSecret), Issuer: issuer, TTL: accessTTL, Type: TypeAccess},
		Refresh: &JWTer{Secret: []byte(refreshSecret), Issuer: issuer, TTL: refreshTTL, Type: TypeRefresh},
	}
}

func (t *Tokens) IssuePair(id uint, email, role string) (Pair, error) {
	at, err := t.Access.Issue(id, email, role)
	if err != nil {
		return Pair{}, err
	}
	rt, err := t.Refresh.Issue(id, email, role)
	if err != nil {
		return Pair{}, err
	}
	return Pair{AccessToken: at, RefreshToken: rt}, nil
}

// Consume 校验 refresh token 并（若配置了 Revoker）标记为已使用
func (t *Tokens) Consume(ctx context.Context, refreshToken string) (*Claims, error) {
	c, err := t.Refresh.Parse(refreshToken)
	if err != nil {
		return nil, err
	}
	if t.Revoker == nil {
		return c, nil
	}
	ttl := time.Until(c.ExpiresAt.Time)
	if ttl <= 0 {
		return nil, ErrExpired
	}
	first, err := t.Revoker.MarkUsed(ctx, c.RegisteredClaims.ID, ttl)
	if err != nil {
		return nil, err
	}
	if !first {
		return nil, ErrRefreshReuse
	}
	return c, nil
}
