package validation

import (
	"regexp"
	"strings"
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phoneRegex = regexp.MustCompile(`^\d{10}$`)
)

// ID proof documents accepted at technician registration.
var idProofTypes = map[string]bool{
	"Aadhaar":  true,
	"PAN":      true,
	"Voter ID": true,
}

func ValidateEmail(email string) bool {
	email = strings.TrimSpace(email)
	return email != "" && emailRegex.MatchString(email) && len(email) <= 50
}

// ValidatePhone requires exactly ten digits.
func ValidatePhone(phone string) bool {
	return phoneRegex.MatchString(strings.TrimSpace(phone))
}

func ValidateName(name string) bool {
	name = strings.TrimSpace(name)
	return len(name) >= 2 && len(name) <= 50
}

// ValidatePassword checks the client-side hashed password is present and bounded.
func ValidatePassword(password string) bool {
	return len(password) >= 6 && len(password) <= 512
}

func ValidateIDProofType(t string) bool {
	return idProofTypes[t]
}

func ValidateIDProofNumber(n string) bool {
	n = strings.TrimSpace(n)
	return len(n) >= 4 && len(n) <= 50
}

func ValidateCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// MaskIDProof hides all but the last four characters.
func MaskIDProof(n string) string {
	if len(n) <= 4 {
		return n
	}
	return strings.Repeat("X", len(n)-4) + n[len(n)-4:]
}
