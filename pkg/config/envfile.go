package config

import (
	"fmt"
	"os"
	"strings"
)

// ParseEnvFile parses dotenv content into key-value pairs. Blank lines and
// lines starting with # are skipped, an "export " prefix is dropped and a
// value wrapped in matching quotes is unquoted. Double-quoted values also
// have \n, \t, \r, \" and \\ unescaped.
func ParseEnvFile(content string) map[string]string {
	vars := make(map[string]string)

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))

		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}

		value = strings.TrimSpace(value)
		if len(value) >= 2 {
			switch q := value[0]; {
			case q == '"' && value[len(value)-1] == '"':
				value = unescape(value[1 : len(value)-1])
			case q == '\'' && value[len(value)-1] == '\'':
				value = value[1 : len(value)-1]
			}
		}
		vars[key] = value
	}
	return vars
}

// unescape processes escapes in one pass so that \\n stays a literal
// backslash followed by n.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			b.WriteByte(s[i])
			continue
		}
		switch s[i+1] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '"', '\\':
			b.WriteByte(s[i+1])
		default:
			b.WriteByte('\\')
			continue
		}
		i++
	}
	return b.String()
}

// LoadEnvFile sets the variables in the dotenv file at path. Variables
// already present in the environment are left alone.
func LoadEnvFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading env file: %w", err)
	}
	for key, value := range ParseEnvFile(string(data)) {
		if _, set := os.LookupEnv(key); set {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("setting %s: %w", key, err)
		}
	}
	return nil
}
