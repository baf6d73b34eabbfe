package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

const (
	// ServiceTokenIssuer is the iss claim of every validation endpoint token.
	ServiceTokenIssuer = "iapgate"
	// DefaultServiceTokenTTL bounds how long a signed request stays replayable.
	DefaultServiceTokenTTL = time.Minute
)

const signingKeyInfo = "iapgate service token v1"

var ErrInvalidServiceToken = errors.New("invalid service token")

// ServiceClaims identify the client calling the validation endpoint.
type ServiceClaims struct {
	Client string `json:"client"`
	jwt.RegisteredClaims
}

// ServiceTokenService signs and verifies short-lived HS256 bearer tokens
// shared between the validator client and the validation endpoint.
type ServiceTokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewServiceTokenService(secret string, ttl time.Duration) *ServiceTokenService {
	if ttl <= 0 {
		ttl = DefaultServiceTokenTTL
	}
	return &ServiceTokenService{
		secret: deriveSigningKey(secret),
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Generate signs a token for client.
func (s *ServiceTokenService) Generate(client string) (string, error) {
	now := s.now()
	claims := &ServiceClaims{
		Client: client,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ServiceTokenIssuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign service token: %w", err)
	}
	return signed, nil
}

// Verify parses tokenString and checks signature, issuer and expiry.
func (s *ServiceTokenService) Verify(tokenString string) (*ServiceClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ServiceClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithIssuer(ServiceTokenIssuer),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidServiceToken, err)
	}

	if claims, ok := token.Claims.(*ServiceClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidServiceToken
}

// deriveSigningKey stretches the configured secret into a 256-bit HMAC key.
// Both ends derive the same key from the same secret.
func deriveSigningKey(secret string) []byte {
	key := make([]byte, sha256.Size)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(signingKeyInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		// hkdf only fails past 255 blocks of output
		panic(err)
	}
	return key
}
