package decision

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const signedTokenTtl = 5 * time.Minute

// Signer mints short lived HS256 tokens that the decision service can use
// to check a request came from this node
type Signer struct {
	key    []byte
	issuer string
}

func NewSigner(key []byte, issuer string) (*Signer, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("signing key needs to be provided")
	}
	if len(issuer) == 0 {
		return nil, fmt.Errorf("issuer needs to be provided")
	}
	return &Signer{key: key, issuer: issuer}, nil
}

// Sign returns a token whose subject is the execution id and whose audience is the decision url
func (s *Signer) Sign(executionId, audience string) (string, error) {
	now := time.Now()
	j := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   executionId,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(signedTokenTtl)),
		ID:        uuid.New().String(),
	})
	tok, err := j.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("error signing decision request %w", err)
	}
	return tok, nil
}
