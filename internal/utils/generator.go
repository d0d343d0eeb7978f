package utils

import (
	"crypto/rand"
	"fmt"
)

const (
	MinShortCodeLength = 6
	MaxShortCodeLength = 8
	alphabet           = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	// байты >= maxUnbiased отбрасываем, иначе первые символы алфавита выпадали бы чаще
	maxUnbiased = 256 - 256%len(alphabet)
)

// GenerateShortCode возвращает код случайной длины из {6, 7, 8}.
// Уникальность не гарантируется - ее проверяет хранилище.
func GenerateShortCode() (string, error) {
	const lengths = MaxShortCodeLength - MinShortCodeLength + 1

	var b [1]byte
	for {
		if _, err := rand.Read(b[:]); err != nil {
			return "", fmt.Errorf("read random length: %w", err)
		}
		if int(b[0]) < 256-256%lengths {
			return GenerateShortCodeWithLength(MinShortCodeLength + int(b[0])%lengths)
		}
	}
}

func GenerateShortCodeWithLength(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid short code length %d", length)
	}

	code := make([]byte, 0, length)
	buf := make([]byte, length+length/2)

	for len(code) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= maxUnbiased {
				continue
			}
			code = append(code, alphabet[int(b)%len(alphabet)])
			if len(code) == length {
				break
			}
		}
	}

	return string(code), nil
}
