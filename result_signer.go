package main

import (
	"crypto/rsa"
	"os"
	"time"

	"go-docverify/compare"

	"github.com/golang-jwt/jwt/v4"
)

// ResultSigner turns a comparison verdict into a token the caller can hand
// to downstream services without them re-running the comparison.
type ResultSigner interface {
	SignResult(sessionId string, result compare.Result) (jwt string, err error)
}

type JwtResultSigner struct {
	privateKey *rsa.PrivateKey
	issuer     string
	validity   time.Duration
}

const resultJwtValidity = time.Hour

func NewJwtResultSigner(privateKeyPath string, issuer string) (*JwtResultSigner, error) {
	keyBytes, err := os.ReadFile(privateKeyPath)

	if err != nil {
		return nil, err
	}

	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(keyBytes)

	if err != nil {
		return nil, err
	}

	return &JwtResultSigner{
		privateKey: privateKey,
		issuer:     issuer,
		validity:   resultJwtValidity,
	}, nil
}

func (s *JwtResultSigner) SignResult(sessionId string, result compare.Result) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":              s.issuer,
		"iat":              now.Unix(),
		"exp":              now.Add(s.validity).Unix(),
		"session_id":       sessionId,
		"is_match":         result.IsMatch,
		"match_percentage": result.MatchPercentage,
		"matched_fields":   result.MatchedFields,
		"unmatched_fields": result.UnmatchedFields,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(s.privateKey)
}
