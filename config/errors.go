package config

import "fmt"

// ErrInvalidEnv is returned for an Env other than development or production
var ErrInvalidEnv = fmt.Errorf("config: env must be %q or %q", Development, Production)

// ErrRead wraps a failure to read the config file
func ErrRead(path string, err error) error {
	return fmt.Errorf("config: failed to read %s: %w", path, err)
}

// ErrParse wraps a YAML decoding failure
func ErrParse(path string, err error) error {
	return fmt.Errorf("config: failed to parse %s: %w", path, err)
}

// ErrEnvFile wraps a failure to load a dotenv file
func ErrEnvFile(path string, err error) error {
	return fmt.Errorf("config: failed to load env file %s: %w", path, err)
}

// ErrSection wraps a validation failure of one config section
func ErrSection(section string, err error) error {
	return fmt.Errorf("config: invalid %s section: %w", section, err)
}
