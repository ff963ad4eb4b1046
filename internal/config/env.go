package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	// EnvFileVar names a .env file that takes precedence over --env
	EnvFileVar = "QADEDUP_ENV_FILE"
	// DefaultEnvFile is loaded when nothing else is requested
	DefaultEnvFile = ".env"
)

// LoadEnvFile loads one .env file into the process environment. The path is
// $QADEDUP_ENV_FILE if set, else requested (the --env flag), else
// DefaultEnvFile. Values in the file override variables already set.
//
// It returns the loaded path. A missing DefaultEnvFile yields "" and no
// error; an explicitly named file that cannot be loaded is an error, as is
// a malformed DefaultEnvFile.
func LoadEnvFile(requested string) (string, error) {
	path := strings.TrimSpace(os.Getenv(EnvFileVar))
	if path == "" {
		path = strings.TrimSpace(requested)
	}
	explicit := path != ""
	if !explicit {
		path = DefaultEnvFile
	}

	if err := godotenv.Overload(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("load env file %s: %w", path, err)
	}
	return path, nil
}
