package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/angelmondragon/coffeeshop-backend/pkg/config"
)

const argonVersion = 19

// ErrInvalidHash signals an encoded string that is not an argon2id hash.
var ErrInvalidHash = errors.New("invalid argon2id hash")

// Hasher derives and checks argon2id password hashes in PHC string form.
type Hasher struct {
	memory  uint32
	time    uint32
	threads uint8
	saltLen uint32
	keyLen  uint32
}

// NewHasher clamps the configured cost parameters into safe bounds.
func NewHasher(cfg config.PasswordConfig) *Hasher {
	return &Hasher{
		memory:  uint32(clamp(cfg.ArgonMemoryKB, 8, 512*1024)),
		time:    uint32(clamp(cfg.ArgonTime, 1, 10)),
		threads: uint8(clamp(cfg.ArgonParallelism, 1, 255)),
		saltLen: uint32(clamp(cfg.ArgonSaltLen, 8, 64)),
		keyLen:  uint32(clamp(cfg.ArgonKeyLen, 16, 64)),
	}
}

// Hash returns $argon2id$v=19$m=..,t=..,p=..$salt$key.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("password cannot be empty")
	}
	salt := make([]byte, h.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, h.time, h.memory, h.threads, h.keyLen)
	return strings.Join([]string{
		"",
		"argon2id",
		fmt.Sprintf("v=%d", argonVersion),
		fmt.Sprintf("m=%d,t=%d,p=%d", h.memory, h.time, h.threads),
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	}, "$"), nil
}

// Verify recomputes the key with the parameters stored in encoded, so hashes
// made under older settings keep verifying.
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	stored, salt, key, err := parseHash(encoded)
	if err != nil {
		return false, err
	}
	computed := argon2.IDKey([]byte(password), salt, stored.time, stored.memory, stored.threads, uint32(len(key)))
	return subtle.ConstantTimeCompare(key, computed) == 1, nil
}

// NeedsRehash reports whether encoded was produced with other cost settings.
func (h *Hasher) NeedsRehash(encoded string) bool {
	stored, salt, key, err := parseHash(encoded)
	if err != nil {
		return true
	}
	return stored.memory != h.memory ||
		stored.time != h.time ||
		stored.threads != h.threads ||
		uint32(len(salt)) != h.saltLen ||
		uint32(len(key)) != h.keyLen
}

// HashPassword is Hash on a one-off Hasher built from cfg.
func HashPassword(password string, cfg config.PasswordConfig) (string, error) {
	return NewHasher(cfg).Hash(password)
}

// VerifyPassword checks password against any well-formed argon2id hash.
func VerifyPassword(password, encoded string) (bool, error) {
	return (&Hasher{}).Verify(password, encoded)
}

func parseHash(encoded string) (Hasher, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return Hasher{}, nil, nil, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argonVersion {
		return Hasher{}, nil, nil, ErrInvalidHash
	}

	var stored Hasher
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &stored.memory, &stored.time, &stored.threads); err != nil {
		return Hasher{}, nil, nil, ErrInvalidHash
	}
	if stored.memory == 0 || stored.time == 0 || stored.threads == 0 {
		return Hasher{}, nil, nil, ErrInvalidHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return Hasher{}, nil, nil, ErrInvalidHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return Hasher{}, nil, nil, ErrInvalidHash
	}
	stored.saltLen = uint32(len(salt))
	stored.keyLen = uint32(len(key))
	return stored, salt, key, nil
}

func clamp(value, lo, hi int) int {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
