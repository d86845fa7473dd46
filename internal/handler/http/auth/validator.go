package auth

import (
	"fmt"
	"os"
	"strings"
)

// weakPasswordList holds passwords that show up in every breach corpus.
// Admin credentials matching or prefixing one of these are refused.
var weakPasswordList = []string{
	"admin",
	"password",
	"123456",
	"secret",
	"admin123",
	"password123",
	"123456789",
	"12345678",
	"qwerty",
	"abc123",
	"letmein",
	"welcome",
	"monkey",
	"1234567890",
	"password1",
	"admin1",
	"test",
	"test123",
	"default",
	"root",
}

const (
	// minPasswordLength applies to admin and viewer passwords alike.
	minPasswordLength = 12
)

// ValidateAdminCredentials checks the admin login configured through
// environment variables. Call it before the server starts listening so
// an empty or guessable password never reaches production.
//
// Rejected configurations:
//   - empty ADMIN_USER or ADMIN_USER_PASSWORD
//   - password shorter than 12 characters
//   - numeric or keyboard sequences
//   - entries from the weak password list, including short variations
//
// Error messages name the variable at fault without echoing its value.
func ValidateAdminCredentials() error {
	user := os.Getenv("ADMIN_USER")
	pass := os.Getenv("ADMIN_USER_PASSWORD")

	if user == "" {
		return fmt.Errorf("admin credentials validation failed: ADMIN_USER must not be empty")
	}

	if pass == "" {
		return fmt.Errorf("admin credentials validation failed: ADMIN_USER_PASSWORD must not be empty")
	}

	if len(pass) < minPasswordLength {
		return fmt.Errorf("admin credentials validation failed: ADMIN_USER_PASSWORD must be at least %d characters (current length: %d)", minPasswordLength, len(pass))
	}

	// Sequence checks run before the list so "123456789012" is reported
	// as a numeric pattern rather than a "123456" prefix hit.
	if isSimpleNumericPattern(pass) {
		return fmt.Errorf("admin credentials validation failed: ADMIN_USER_PASSWORD must not be a simple numeric pattern")
	}

	if isKeyboardPattern(pass) {
		return fmt.Errorf("admin credentials validation failed: ADMIN_USER_PASSWORD must not be a keyboard pattern")
	}

	lowerPass := strings.ToLower(pass)
	for _, weak := range weakPasswordList {
		if lowerPass == weak {
			return fmt.Errorf("admin credentials validation failed: ADMIN_USER_PASSWORD must not be a weak password")
		}

		// "admin1234567890" style: a weak word padded to barely pass
		// the length check.
		if strings.HasPrefix(lowerPass, weak) && len(pass) < minPasswordLength+5 {
			return fmt.Errorf("admin credentials validation failed: ADMIN_USER_PASSWORD must not be based on common weak passwords")
		}
	}

	return nil
}

// isSimpleNumericPattern reports whether pass is a repeated character or
// an all-digit ascending/descending run like "123456789012".
func isSimpleNumericPattern(pass string) bool {
	if len(pass) < minPasswordLength {
		return false
	}

	if isRepeatedChar(pass) {
		return true
	}

	hasOnlyDigits := true
	for _, ch := range pass {
		if ch < '0' || ch > '9' {
			hasOnlyDigits = false
			break
		}
	}

	if !hasOnlyDigits {
		return false
	}

	isAscending := true
	isDescending := true
	for i := 1; i < len(pass); i++ {
		diff := int(pass[i]) - int(pass[i-1])
		// -9 and 9 cover the 9->0 and 0->9 wraparounds.
		if diff != 1 && diff != -9 {
			isAscending = false
		}
		if diff != -1 && diff != 9 {
			isDescending = false
		}
	}

	return isAscending || isDescending
}

func isRepeatedChar(pass string) bool {
	if len(pass) == 0 {
		return false
	}

	first := pass[0]
	for i := 1; i < len(pass); i++ {
		if pass[i] != first {
			return false
		}
	}
	return true
}

// keyboardPatterns are the home rows people drag a finger across.
// Reversed forms are checked too.
var keyboardPatterns = []string{
	"qwertyuiop",
	"asdfghjkl",
	"zxcvbnm",
	"qwerty",
	"asdfgh",
	"zxcvb",
}

func isKeyboardPattern(pass string) bool {
	lowerPass := strings.ToLower(pass)

	for _, pattern := range keyboardPatterns {
		if strings.Contains(lowerPass, pattern) {
			return true
		}
		if strings.Contains(lowerPass, reverse(pattern)) {
			return true
		}
	}

	return false
}

func reverse(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}

// ValidateViewerCredentials checks the optional read-only viewer login.
// Unlike the admin check it never blocks startup: a misconfigured
// viewer account is logged and disabled, and the service keeps running
// with the admin role only.
//
// Outcomes:
//  1. DEMO_USER unset: INFO, admin-only mode
//  2. DEMO_USER_PASSWORD empty: WARN, DEMO_USER unset
//  3. DEMO_USER equals ADMIN_USER: WARN, viewer vars unset
//  4. password under 12 characters: WARN, viewer vars unset
//  5. password on the weak list: WARN, viewer vars unset
//  6. otherwise: INFO, viewer role active
func ValidateViewerCredentials(logger interface{ Info(msg string, args ...any); Warn(msg string, args ...any) }) error {
	demoUser := os.Getenv("DEMO_USER")
	demoPass := os.Getenv("DEMO_USER_PASSWORD")
	adminUser := os.Getenv("ADMIN_USER")

	if demoUser == "" {
		logger.Info("viewer role not configured - running in admin-only mode")
		return nil
	}

	if demoPass == "" {
		logger.Warn("DEMO_USER_PASSWORD is empty - disabling viewer role")
		_ = os.Unsetenv("DEMO_USER")
		return nil
	}

	if demoUser == adminUser {
		logger.Warn("DEMO_USER cannot be the same as ADMIN_USER - disabling viewer role")
		_ = os.Unsetenv("DEMO_USER")
		_ = os.Unsetenv("DEMO_USER_PASSWORD")
		return nil
	}

	if len(demoPass) < minPasswordLength {
		logger.Warn("DEMO_USER_PASSWORD must be at least 12 characters - disabling viewer role")
		_ = os.Unsetenv("DEMO_USER")
		_ = os.Unsetenv("DEMO_USER_PASSWORD")
		return nil
	}

	lowerPass := strings.ToLower(demoPass)
	for _, weak := range weakPasswordList {
		if lowerPass == weak || strings.HasPrefix(lowerPass, weak) {
			logger.Warn("DEMO_USER_PASSWORD is a weak password - disabling viewer role",
				"hint", "avoid common passwords")
			_ = os.Unsetenv("DEMO_USER")
			_ = os.Unsetenv("DEMO_USER_PASSWORD")
			return nil
		}
	}

	logger.Info("viewer role configured successfully", "user", demoUser)
	return nil
}
