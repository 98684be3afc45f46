package hashing

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"admin-auth/internal/config"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

var (
	ErrInvalidHash         = errors.New("invalid hash format")
	ErrIncompatibleVersion = errors.New("incompatible argon2 version")
	ErrUnsupported         = errors.New("unsupported hash algorithm")
)

type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Hasher produces salted one-way hashes of OTP codes. Every hash carries its
// own algorithm and parameters, so codes hashed before a configuration change
// still verify afterwards.
type Hasher struct {
	algorithm  string
	bcryptCost int
	params     Argon2Params
}

func NewHasher(cfg config.OTPConfig) (*Hasher, error) {
	h := &Hasher{
		algorithm:  cfg.HashAlgorithm,
		bcryptCost: cfg.BcryptCost,
		params: Argon2Params{
			Memory:      cfg.Argon2.Memory,
			Iterations:  cfg.Argon2.Iterations,
			Parallelism: cfg.Argon2.Parallelism,
			SaltLength:  16,
			KeyLength:   32,
		},
	}

	switch h.algorithm {
	case AlgorithmBcrypt:
		if h.bcryptCost < bcrypt.MinCost || h.bcryptCost > bcrypt.MaxCost {
			return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", h.bcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
		}
	case AlgorithmArgon2id:
		if h.params.Memory == 0 || h.params.Iterations == 0 || h.params.Parallelism == 0 {
			return nil, errors.New("argon2 memory, iterations and parallelism must be positive")
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, h.algorithm)
	}
	return h, nil
}

// Algorithm returns the algorithm new hashes are produced with.
func (h *Hasher) Algorithm() string {
	return h.algorithm
}

// HashOTP hashes a plaintext code with a fresh random salt.
func (h *Hasher) HashOTP(code string) (string, error) {
	if h.algorithm == AlgorithmArgon2id {
		return h.hashArgon2(code)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), h.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("bcrypt generate: %w", err)
	}
	return string(hash), nil
}

// VerifyOTP reports whether code matches the encoded hash. A false result with
// a nil error is a plain mismatch; an error means the stored hash is unusable.
func (h *Hasher) VerifyOTP(code, encoded string) (bool, error) {
	switch AlgorithmOf(encoded) {
	case AlgorithmBcrypt:
		err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(code))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrInvalidHash, err)
		}
		return true, nil
	case AlgorithmArgon2id:
		return verifyArgon2(code, encoded)
	default:
		return false, ErrInvalidHash
	}
}

// AlgorithmOf detects the algorithm from an encoded hash.
func AlgorithmOf(encoded string) string {
	switch {
	case strings.HasPrefix(encoded, "$argon2id$"):
		return AlgorithmArgon2id
	case strings.HasPrefix(encoded, "$2a$"), strings.HasPrefix(encoded, "$2b$"), strings.HasPrefix(encoded, "$2y$"):
		return AlgorithmBcrypt
	default:
		return ""
	}
}

// hashArgon2 encodes in the PHC string format:
// $argon2id$v=19$m=65536,t=1,p=2$<salt>$<hash>
func (h *Hasher) hashArgon2(code string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(code), salt, h.params.Iterations, h.params.Memory, h.params.Parallelism, h.params.KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory, h.params.Iterations, h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func verifyArgon2(code, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return false, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, ErrInvalidHash
	}
	if version != argon2.Version {
		return false, ErrIncompatibleVersion
	}

	var p Argon2Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Iterations, &p.Parallelism); err != nil {
		return false, ErrInvalidHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, ErrInvalidHash
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, ErrInvalidHash
	}

	computed := argon2.IDKey([]byte(code), salt, p.Iterations, p.Memory, p.Parallelism, uint32(len(expected)))

	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}
