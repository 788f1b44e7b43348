package security

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the access token payload: the user id and the role id, plus registered claims.
type Claims struct {
	UserID uint `json:"id"`
	RoleID uint `json:"role"`
	jwt.RegisteredClaims
}

type VerifyKind int

const (
	VerifyInvalid VerifyKind = iota
	VerifyValid
)

// Invalid reasons reported by Verify.
const (
	ReasonMalformed = "malformed"
	ReasonSignature = "signature"
	ReasonExpired   = "expired"
	ReasonClaims    = "claims"
)

// VerifyResult is the outcome of checking a token against the signing secret.
// Claims is set only when Kind is VerifyValid.
type VerifyResult struct {
	Kind   VerifyKind
	Reason string
	Claims *Claims
}

func (r VerifyResult) Valid() bool { return r.Kind == VerifyValid }

type JWTManager struct {
	issuer   string
	audience string
	secret   []byte
	now      func() time.Time
}

func NewJWTManager(issuer, audience, secret string) *JWTManager {
	return &JWTManager{
		issuer:   issuer,
		audience: audience,
		secret:   []byte(secret),
		now:      time.Now,
	}
}

// WithClock returns a copy of the manager that reads time from now.
func (m *JWTManager) WithClock(now func() time.Time) *JWTManager {
	cp := *m
	cp.now = now
	return &cp
}

func (m *JWTManager) SignAccessToken(userID, roleID uint, ttl time.Duration) (string, error) {
	now := m.now()
	claims := Claims{
		UserID: userID,
		RoleID: roleID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Audience:  []string{m.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Verify checks signature, algorithm, issuer, audience and expiry. It never returns an
// error; every failure is reported as an invalid result with a reason.
func (m *JWTManager) Verify(raw string) VerifyResult {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing algorithm")
		}
		return m.secret, nil
	},
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return VerifyResult{Kind: VerifyInvalid, Reason: classifyParseError(err)}
	}
	if !tok.Valid || claims.UserID == 0 {
		return VerifyResult{Kind: VerifyInvalid, Reason: ReasonClaims}
	}
	return VerifyResult{Kind: VerifyValid, Claims: claims}
}

func classifyParseError(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ReasonExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ReasonSignature
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ReasonMalformed
	default:
		return ReasonClaims
	}
}

// SignatureSegment returns the third dot-separated segment of a compact JWS, or "" when
// the token does not have three segments.
func SignatureSegment(token string) string {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return ""
	}
	return parts[2]
}
