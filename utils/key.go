package utils

import (
	"fmt"

	"github.com/sethvargo/go-password/password"
)

// GenerateAPIKey produces the key that protects mutating API endpoints.
// Letters and digits only so it pastes cleanly into curl and env files.
func GenerateAPIKey() (string, error) {
	key, err := password.Generate(40, 10, 0, false, true)
	if err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return key, nil
}
