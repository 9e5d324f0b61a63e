package service

import (
	"crypto/sha256"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"pharmatrace/pkg/domain"
	dErrors "pharmatrace/pkg/domain-errors"
)

// codeClaims binds an access code to one print job.
type codeClaims struct {
	JobID string `json:"job_id"`
	jwt.RegisteredClaims
}

// CodeSigner issues and verifies print job access codes: HS256-signed
// tokens carrying the job id and an absolute expiry. The token itself is
// handed to the print bureau once; the store keeps only a bcrypt hash of
// its digest.
type CodeSigner struct {
	signingKey []byte
}

func NewCodeSigner(signingKey string) *CodeSigner {
	return &CodeSigner{signingKey: []byte(signingKey)}
}

// Issue signs a fresh access code for the job.
func (s *CodeSigner) Issue(jobID domain.JobID, issuedAt, expiresAt time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, codeClaims{
		JobID: jobID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			Issuer:    "pharmatrace",
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign access code")
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the embedded job id.
// Tampered codes and codes signed with another key are indistinguishable
// from garbage.
func (s *CodeSigner) Verify(code string) (domain.JobID, error) {
	parsed, err := jwt.ParseWithClaims(code, &codeClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.JobID{}, dErrors.New(dErrors.CodeExpired, "access code has expired")
		}
		return domain.JobID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid access code")
	}
	claims, ok := parsed.Claims.(*codeClaims)
	if !ok || !parsed.Valid {
		return domain.JobID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid access code")
	}
	jobID, err := domain.ParseJobID(claims.JobID)
	if err != nil {
		return domain.JobID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid access code")
	}
	return jobID, nil
}

// HashCode derives the at-rest hash of an access code. Codes exceed
// bcrypt's 72-byte input limit, so the token is digested first.
func HashCode(code string) ([]byte, error) {
	digest := sha256.Sum256([]byte(code))
	hash, err := bcrypt.GenerateFromPassword(digest[:], bcrypt.DefaultCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash access code")
	}
	return hash, nil
}

// CompareCode checks a presented code against the stored hash.
func CompareCode(hash []byte, code string) error {
	digest := sha256.Sum256([]byte(code))
	if err := bcrypt.CompareHashAndPassword(hash, digest[:]); err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "access code does not match this job")
	}
	return nil
}
