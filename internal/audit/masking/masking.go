package masking

import "strings"

const maskToken = "****"

// MaskSecret redacts a secret while keeping a minimal suffix for auditing.
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	prefix, remainder := splitPrefix(trimmed)
	if len(remainder) <= 4 {
		return prefix + maskToken
	}

	return prefix + maskToken + remainder[len(remainder)-4:]
}

// MaskKeys returns a copy of input in which the value of every key matched by
// masked is redacted, at any depth. Other values are kept as is.
func MaskKeys(input map[string]any, masked func(key string) bool) map[string]any {
	if len(input) == 0 {
		return nil
	}

	out := make(map[string]any, len(input))
	for key, value := range input {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			continue
		}
		if masked != nil && masked(trimmedKey) {
			out[trimmedKey] = redact(value)
			continue
		}
		out[trimmedKey] = walk(value, masked)
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

func walk(value any, masked func(string) bool) any {
	switch cast := value.(type) {
	case map[string]any:
		return MaskKeys(cast, masked)
	case []any:
		items := make([]any, 0, len(cast))
		for _, item := range cast {
			items = append(items, walk(item, masked))
		}
		return items
	default:
		return value
	}
}

func redact(value any) any {
	switch cast := value.(type) {
	case nil:
		return nil
	case string:
		return MaskSecret(cast)
	default:
		return maskToken
	}
}

func splitPrefix(value string) (string, string) {
	lastUnderscore := strings.LastIndex(value, "_")
	if lastUnderscore == -1 || lastUnderscore == len(value)-1 {
		return "", value
	}
	return value[:lastUnderscore+1], value[lastUnderscore+1:]
}
