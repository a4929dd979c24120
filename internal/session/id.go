package session

import (
	"fmt"
	"strings"

	"github.com/b1ank002/ZappkaApp/internal/utils"

	"github.com/google/uuid"
)

const CodePrefix = "ZAPP-"

// GenerateID returns a random (v4) UUID drawn from crypto/rand.
func GenerateID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("session: failed to generate id: %w", err)
	}
	return id.String(), nil
}

// GenerateCode returns a one-time Zapp code.
// 8 bytes = 64 bits of entropy.
func GenerateCode() (string, error) {

	const size = 8

	h, err := utils.RandomHex(size)
	if err != nil {
		return "", fmt.Errorf("session: failed to generate code: %w", err)
	}

	return CodePrefix + strings.ToUpper(h), nil

}
