package cliutil

import (
	"regexp"
	"strings"
)

const redactedPlaceholder = "[redacted]"

var secretKeyPattern = regexp.MustCompile(`(?i)\b(` + strings.Join(secretKeys(), "|") + `)\b(\s*[:=]\s*)(["']?)([^"'\s&,;]+)(["']?)`)

// secretKeys are the credential names the login helper and the game client are
// known to print.
func secretKeys() []string {
	keys := []string{
		"sauth",
		"access_token",
		"refresh_token",
		"session_token",
		"token",
		"password",
		"passwd",
		"cookie",
		"ticket",
		"api_key",
	}
	escaped := make([]string, len(keys))
	for i, key := range keys {
		escaped[i] = regexp.QuoteMeta(key)
	}
	return escaped
}

// RedactSecrets masks the value of every known credential assignment in
// message, keeping the key and quoting intact.
func RedactSecrets(message string) string {
	if message == "" {
		return message
	}
	return secretKeyPattern.ReplaceAllString(message, "$1$2$3"+redactedPlaceholder+"$5")
}
