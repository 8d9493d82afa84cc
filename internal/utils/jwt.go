package utils // package utils provides helpers for access tokens and identifier generation

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating and validating signed tokens
)

// Token kinds carried in the "kind" claim. Normal tokens come from a
// verified payment; rescue tokens come from the one-time backup path and
// live much shorter.
const (
	KindNormal = "normal"
	KindRescue = "rescue"
)

// ErrTokenExpired indicates a correctly signed token whose expiry has
// passed. The claims are still returned alongside it so status checks can
// report on stale-but-genuine tokens.
var ErrTokenExpired = errors.New("access expired")

// ErrTokenInvalid indicates a token that failed signature or structural
// validation. Terminal; nothing about it can be trusted.
var ErrTokenInvalid = errors.New("invalid token")

// AccessToken is a signed JWT plus its expiry, as handed to the client.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// AccessClaims is the decoded claim set of an access token.
type AccessClaims struct {
	PaymentID string
	Kind      string
	Exp       time.Time
}

// NewAccessToken builds and signs an HS256 JWT granting download access for
// a payment. The kind claim distinguishes normal from rescue tokens; ttl
// controls the exp claim (7 days for normal, 24 hours for rescue).
func NewAccessToken(secret, paymentID, kind string, ttl time.Duration) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"paymentId": paymentID,
		"kind":      kind,
		"exp":       exp.Unix(),
		"iat":       now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// VerifyAccessToken checks the signature of raw and decodes its claims.
// An expired but otherwise genuine token returns its claims together with
// ErrTokenExpired; any other failure returns ErrTokenInvalid. Pure
// signature and expiry work, no store access.
func VerifyAccessToken(secret, raw string) (AccessClaims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		// The parser still hands back the token on claim validation
		// failures, so an expired-only token keeps its claims.
		if errors.Is(err, jwt.ErrTokenExpired) && tok != nil {
			if claims, ok := tok.Claims.(jwt.MapClaims); ok {
				return claimsFrom(claims), ErrTokenExpired
			}
		}
		return AccessClaims{}, ErrTokenInvalid
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return AccessClaims{}, ErrTokenInvalid
	}
	return claimsFrom(claims), nil
}

func claimsFrom(claims jwt.MapClaims) AccessClaims {
	out := AccessClaims{Kind: KindNormal}
	if v, ok := claims["paymentId"].(string); ok {
		out.PaymentID = v
	}
	if v, ok := claims["kind"].(string); ok && v != "" {
		out.Kind = v
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.Exp = exp.Time
	}
	return out
}
