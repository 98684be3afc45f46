package util

import (
	"os"
	"strings"
)

// NormalizeEmail trims and lowercases an address so that the same mailbox
// always maps to the same record key.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// MaskEmail keeps the first character of the local part and the domain:
// "alice@example.com" becomes "a***@example.com".
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		if email == "" {
			return ""
		}
		return "***"
	}
	return email[:1] + "***" + email[at:]
}

// ContainsSuspicious flags header-injection and markup characters that must
// never reach a mail header. Words inside an address are never inspected.
func ContainsSuspicious(s string) bool {
	return strings.ContainsAny(s, "\r\n<>")
}

func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
