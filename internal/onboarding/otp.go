package onboarding

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

const otpDigits = 6

// generateOTP returns a 6-digit numeric code from crypto/rand.
func generateOTP() (string, error) {
	b := make([]byte, otpDigits)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	s := make([]byte, otpDigits)
	for i := range otpDigits {
		s[i] = '0' + (b[i] % 10)
	}
	return string(s), nil
}

// hashOTP binds the code to its applicant and channel so equal codes never share a hash.
func hashOTP(applicantID, channel, code string) string {
	h := sha256.Sum256([]byte(applicantID + ":" + channel + ":" + code))
	return hex.EncodeToString(h[:])
}

func otpEqual(applicantID, channel, code, storedHash string) bool {
	provided := hashOTP(applicantID, channel, code)
	return subtle.ConstantTimeCompare([]byte(provided), []byte(storedHash)) == 1
}
