package main

import (
	"crypto/rsa"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"go-kyc-verifier/models"
)

// AttestationCreator signs a compact statement of a verification outcome so
// downstream services can trust the result without re-running the pipeline.
type AttestationCreator interface {
	CreateAttestation(sessionId string, decision models.VerificationDecision, metadata models.RequestMetadata) (string, error)
}

func NewRsaAttestationCreator(privateKeyPath string, issuerId string) (*RsaAttestationCreator, error) {
	keyBytes, err := os.ReadFile(privateKeyPath)

	if err != nil {
		return nil, err
	}

	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(keyBytes)

	if err != nil {
		return nil, err
	}

	return &RsaAttestationCreator{
		issuerId:   issuerId,
		privateKey: privateKey,
	}, nil
}

type RsaAttestationCreator struct {
	privateKey *rsa.PrivateKey
	issuerId   string
}

// Attestations outlive the session but not by much; a day is enough for the
// onboarding flow to consume them.
const attestationValidity = 24 * time.Hour

func (c *RsaAttestationCreator) CreateAttestation(
	sessionId string,
	decision models.VerificationDecision,
	metadata models.RequestMetadata,
) (string, error) {
	now := time.Now()

	claims := jwt.MapClaims{
		"iss":        c.issuerId,
		"iat":        now.Unix(),
		"exp":        now.Add(attestationValidity).Unix(),
		"session_id": sessionId,
		"status":     string(decision.Status),
		"confidence": decision.Confidence,
	}
	if metadata.RiderID != nil {
		claims["rider_id"] = *metadata.RiderID
	}
	if metadata.OnboardingID != nil {
		claims["onboarding_id"] = *metadata.OnboardingID
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(c.privateKey)
}
