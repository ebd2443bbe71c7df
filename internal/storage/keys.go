package storage

import (
	"fmt"
	"path"
	"strings"
)

const resultSuffix = ".result.parquet"

// CleanKey trims a leading slash and rejects empty keys and keys escaping the
// store root.
func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(key), "/"))
	if key == "" {
		return "", fmt.Errorf("object key is required")
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("invalid object key: %q", key)
	}
	return cleaned, nil
}

// ResultKey derives the default output key for an input object: the ".parquet"
// extension is replaced by ".result.parquet" next to the input.
func ResultKey(inputKey string) (string, error) {
	cleaned, err := CleanKey(inputKey)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(cleaned, path.Ext(cleaned)) + resultSuffix, nil
}
