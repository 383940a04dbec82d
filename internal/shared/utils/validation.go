package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/bytedance/sonic"
)

// Size limits (in bytes)
const (
	MaxJSONSize     = 1 * 1024 * 1024 // stored values
	MaxSnapshotSize = 4 * 1024 * 1024 // page snapshots
	MaxMessageSize  = 16 * 1024       // reply text, log messages
)

// Length limits (in runes)
const (
	MaxIDLength   = 128
	MaxKeyLength  = 256
	MaxNameLength = 256
	MaxJSONDepth  = 64
)

var (
	// SafeIDPattern allows alphanumeric, hyphens, underscores
	SafeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	// PartitionPattern also allows the colon and dot used by "persist:slack-1"
	PartitionPattern = regexp.MustCompile(`^[a-zA-Z0-9._:-]+$`)
	// KeyPattern allows anything printable except slashes and whitespace
	KeyPattern = regexp.MustCompile(`^[^\s/\\]+$`)
)

// JSONSizeValidator validates JSON size limits
type JSONSizeValidator struct {
	maxSize int
}

// NewJSONSizeValidator creates a new validator with the specified max size
func NewJSONSizeValidator(maxSize int) *JSONSizeValidator {
	return &JSONSizeValidator{maxSize: maxSize}
}

// DefaultJSONValidator returns a validator with the default 1MB limit
func DefaultJSONValidator() *JSONSizeValidator {
	return NewJSONSizeValidator(MaxJSONSize)
}

// ValidateSize checks if the data size is within limits
func (v *JSONSizeValidator) ValidateSize(data []byte) error {
	if size := len(data); size > v.maxSize {
		return fmt.Errorf("JSON size %d bytes exceeds maximum %d bytes", size, v.maxSize)
	}
	return nil
}

// ValidateJSON checks size, syntax and nesting depth
func (v *JSONSizeValidator) ValidateJSON(data []byte) error {
	if err := v.ValidateSize(data); err != nil {
		return err
	}

	var js any
	if err := sonic.ConfigStd.Unmarshal(data, &js); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	return ValidateJSONDepth(js, MaxJSONDepth)
}

// ValidateJSONDepth checks that decoded JSON nests no deeper than maxDepth
func ValidateJSONDepth(data any, maxDepth int) error {
	return checkDepth(data, 0, maxDepth)
}

func checkDepth(data any, currentDepth int, maxDepth int) error {
	if currentDepth > maxDepth {
		return fmt.Errorf("JSON nesting depth %d exceeds maximum %d", currentDepth, maxDepth)
	}

	switch v := data.(type) {
	case map[string]any:
		for _, value := range v {
			if err := checkDepth(value, currentDepth+1, maxDepth); err != nil {
				return err
			}
		}
	case []any:
		for _, value := range v {
			if err := checkDepth(value, currentDepth+1, maxDepth); err != nil {
				return err
			}
		}
	}

	return nil
}

// ValidateString validates a string field with length and content checks
func ValidateString(value, fieldName string, minLen, maxLen int, required bool) error {
	if required && value == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	if value == "" {
		return nil
	}

	length := utf8.RuneCountInString(value)
	if length < minLen {
		return fmt.Errorf("%s must be at least %d characters", fieldName, minLen)
	}
	if length > maxLen {
		return fmt.Errorf("%s must not exceed %d characters", fieldName, maxLen)
	}

	if strings.Contains(value, "\x00") || !utf8.ValidString(value) {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}

	return nil
}

// ValidateID validates a service type or service ID
func ValidateID(id, fieldName string, required bool) error {
	if err := ValidateString(id, fieldName, 1, MaxIDLength, required); err != nil {
		return err
	}
	if id != "" && !SafeIDPattern.MatchString(id) {
		return fmt.Errorf("%s contains invalid characters (only alphanumeric, hyphens, and underscores allowed)", fieldName)
	}
	return nil
}

// ValidatePartition validates a browser session partition name
func ValidatePartition(partition string) error {
	if err := ValidateString(partition, "partition", 1, MaxIDLength, true); err != nil {
		return err
	}
	if !PartitionPattern.MatchString(partition) {
		return fmt.Errorf("partition contains invalid characters (only alphanumeric, dots, colons, hyphens, and underscores allowed)")
	}
	return nil
}

// ValidateKey validates a storage key
func ValidateKey(key string) error {
	if err := ValidateString(key, "key", 1, MaxKeyLength, true); err != nil {
		return err
	}
	if !KeyPattern.MatchString(key) {
		return fmt.Errorf("key must not contain whitespace or slashes")
	}
	return nil
}

// ValidateMessage validates free text such as a notification reply
func ValidateMessage(message string) error {
	if err := ValidateString(message, "message", 1, MaxMessageSize, true); err != nil {
		return err
	}
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("message is blank")
	}
	return nil
}
