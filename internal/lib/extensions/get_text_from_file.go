package extensions

import (
	"os"
	"strings"
)

// GetTextFromFile reads a small text file such as a mounted secret, empty string when unreadable
func GetTextFromFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
