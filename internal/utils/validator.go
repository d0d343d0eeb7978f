package utils

import (
	"fmt"
	"net/url"
	"strings"

	apperrors "github.com/Kosench/tinylink/internal/errors"
)

const MaxURLLength = 2048

// reservedShortCodes совпадают со статическими маршрутами верхнего уровня:
// ссылка с таким кодом была бы недостижима через GET /{code}
var reservedShortCodes = map[string]struct{}{
	"healthz": {},
	"readyz":  {},
}

// IsReservedShortCode сообщает, занят ли код служебным маршрутом
func IsReservedShortCode(code string) bool {
	_, ok := reservedShortCodes[code]
	return ok
}

func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return apperrors.NewValidationError("target_url", "URL cannot be empty")
	}

	if len(rawURL) > MaxURLLength {
		return apperrors.NewValidationError("target_url", "URL is too long (max 2048 characters)")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return apperrors.NewValidationError("target_url", fmt.Sprintf("invalid URL format: %v", err))
	}

	if !parsedURL.IsAbs() {
		return apperrors.NewValidationError("target_url", "URL must be absolute")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return apperrors.NewValidationError("target_url", "URL must start with http:// or https://")
	}

	if parsedURL.Host == "" {
		return apperrors.NewValidationError("target_url", "URL must contain a valid host")
	}

	return nil
}

// ValidateShortCode проверяет правило [A-Za-z0-9]{6,8} для пользовательских кодов
func ValidateShortCode(code string) error {
	if len(code) < MinShortCodeLength || len(code) > MaxShortCodeLength {
		return apperrors.NewValidationError("custom_code",
			fmt.Sprintf("code must be %d-%d characters long", MinShortCodeLength, MaxShortCodeLength))
	}

	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(alphabet, rune(code[i])) {
			return apperrors.NewValidationError("custom_code", "code may contain only letters and digits")
		}
	}

	if IsReservedShortCode(code) {
		return apperrors.NewValidationError("custom_code", fmt.Sprintf("code '%s' is reserved", code))
	}

	return nil
}

func SanitizeInput(input string) string {
	// Удаляем управляющие символы и обрезаем пробелы
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1 // удаляем символ
		}
		return r
	}, input)

	return strings.TrimSpace(result)
}
