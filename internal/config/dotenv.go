package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
)

// DotenvLookup layers dotenv files underneath primary. Keys present in primary
// always win; earlier files win over later ones. Missing files are skipped.
func DotenvLookup(primary LookupFunc, paths ...string) (LookupFunc, error) {
	fileValues := map[string]string{}
	for i := len(paths) - 1; i >= 0; i-- {
		values, err := godotenv.Read(paths[i])
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", paths[i], err)
		}
		for key, value := range values {
			fileValues[key] = value
		}
	}
	return func(key string) (string, bool) {
		if primary != nil {
			if value, ok := primary(key); ok {
				return value, true
			}
		}
		value, ok := fileValues[key]
		return value, ok
	}, nil
}
