package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/musicportal-backend/pkg/config"
	"golang.org/x/crypto/argon2"
)

var ErrInvalidHash = errors.New("invalid argon2id hash")

// argonCost is the tunable part of an Argon2id hash. It is written into the
// PHC string so old hashes keep verifying after the config changes.
type argonCost struct {
	memoryKB uint32
	passes   uint32
	threads  uint8
	saltLen  int
	keyLen   uint32
}

func costFromConfig(cfg config.PasswordConfig) argonCost {
	return argonCost{
		memoryKB: uint32(clamp(cfg.ArgonMemoryKB, 8, 512*1024)),
		passes:   uint32(clamp(cfg.ArgonTime, 1, 10)),
		threads:  uint8(clamp(cfg.ArgonParallelism, 1, 255)),
		saltLen:  clamp(cfg.ArgonSaltLen, 8, 64),
		keyLen:   uint32(clamp(cfg.ArgonKeyLen, 16, 64)),
	}
}

func (c argonCost) derive(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, c.passes, c.memoryKB, c.threads, c.keyLen)
}

// HashPassword returns a PHC-formatted Argon2id hash:
//
//	$argon2id$v=19$m=<kb>,t=<passes>,p=<threads>$<salt>$<key>
func HashPassword(password string, cfg config.PasswordConfig) (string, error) {
	if password == "" {
		return "", errors.New("password cannot be empty")
	}
	cost := costFromConfig(cfg)
	salt := make([]byte, cost.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, cost.memoryKB, cost.passes, cost.threads,
		b64.EncodeToString(salt), b64.EncodeToString(cost.derive(password, salt))), nil
}

// VerifyPassword reports whether password produces the key stored in encoded.
func VerifyPassword(password, encoded string) (bool, error) {
	cost, salt, key, err := parseHash(encoded)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(key, cost.derive(password, salt)) == 1, nil
}

// NeedsRehash reports whether encoded was produced with a cost that differs
// from cfg. Malformed hashes always need rehashing.
func NeedsRehash(encoded string, cfg config.PasswordConfig) bool {
	cost, _, _, err := parseHash(encoded)
	if err != nil {
		return true
	}
	want := costFromConfig(cfg)
	return cost.memoryKB != want.memoryKB || cost.passes != want.passes || cost.threads != want.threads || cost.keyLen != want.keyLen
}

var b64 = base64.RawStdEncoding

func parseHash(encoded string) (argonCost, []byte, []byte, error) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != "argon2id" {
		return argonCost{}, nil, nil, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil || version != argon2.Version {
		return argonCost{}, nil, nil, ErrInvalidHash
	}

	var cost argonCost
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &cost.memoryKB, &cost.passes, &cost.threads); err != nil {
		return argonCost{}, nil, nil, ErrInvalidHash
	}
	if cost.memoryKB == 0 || cost.passes == 0 || cost.threads == 0 {
		return argonCost{}, nil, nil, ErrInvalidHash
	}

	salt, err := b64.DecodeString(fields[4])
	if err != nil || len(salt) == 0 {
		return argonCost{}, nil, nil, ErrInvalidHash
	}
	key, err := b64.DecodeString(fields[5])
	if err != nil || len(key) == 0 {
		return argonCost{}, nil, nil, ErrInvalidHash
	}
	cost.saltLen = len(salt)
	cost.keyLen = uint32(len(key))
	return cost, salt, key, nil
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
