package config

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// Credentials holds broker credentials read from a credentials file.
// An empty field means the key was absent.
type Credentials struct {
	Username string
	Password string
}

// Anonymous reports whether no username was supplied.
func (c Credentials) Anonymous() bool {
	return c.Username == ""
}

// String redacts the password.
func (c Credentials) String() string {
	if c.Anonymous() {
		return "anonymous"
	}
	return fmt.Sprintf("%s:****", c.Username)
}

// Apply copies the fields that are set into auth.
func (c Credentials) Apply(auth *MQTTAuthConfig) {
	if c.Username != "" {
		auth.Username = c.Username
	}
	if c.Password != "" {
		auth.Password = c.Password
	}
}

// LoadCredentials parses a credentials file of the form:
//
//	USERNAME=someone
//	PASSWORD=secret
//
// Keys are case-insensitive and values are trimmed. Unknown lines are ignored.
// A missing file yields empty credentials and no error; the broker connection
// then proceeds anonymously.
func LoadCredentials(path string) (Credentials, error) {
	var creds Credentials

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return creds, nil
		}
		return creds, fmt.Errorf("reading credentials file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok {
			continue
		}
		switch strings.ToUpper(strings.TrimSpace(key)) {
		case "USERNAME":
			creds.Username = strings.TrimSpace(value)
		case "PASSWORD":
			creds.Password = strings.TrimSpace(value)
		}
	}
	if err := scanner.Err(); err != nil {
		return Credentials{}, fmt.Errorf("reading credentials file: %w", err)
	}

	return creds, nil
}
