package config

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/go-faster/errors"
)

// CredentialsFile is the credentials file name inside the data directory.
const CredentialsFile = "credentials.json"

// ErrNoCredentials is returned when neither the credentials file nor the
// environment provide API credentials.
var ErrNoCredentials = errors.New("no credentials, run `tgcopy login` first")

// Credentials are the application and account identifiers used to sign in.
type Credentials struct {
	APIID   int    `json:"api_id" env:"TGCOPY_API_ID"`
	APIHash string `json:"api_hash" env:"TGCOPY_API_HASH"`
	Phone   string `json:"phone" env:"TGCOPY_PHONE"`
}

// Validate checks that all fields are present.
func (c Credentials) Validate() error {
	var missing []string
	if c.APIID <= 0 {
		missing = append(missing, "api_id")
	}
	if strings.TrimSpace(c.APIHash) == "" {
		missing = append(missing, "api_hash")
	}
	if strings.TrimSpace(c.Phone) == "" {
		missing = append(missing, "phone")
	}
	if len(missing) > 0 {
		return errors.Errorf("missing credentials: %s", strings.Join(missing, ", "))
	}
	return nil
}

// CredentialStore keeps credentials between runs.
type CredentialStore interface {
	Load() (Credentials, error)
	Save(Credentials) error
	Remove() error
}

// FileCredentials stores credentials as a JSON file.
type FileCredentials struct {
	Path string
}

// Load reads the credentials file and applies environment overrides.
// ErrNoCredentials is returned when the result is incomplete.
func (f FileCredentials) Load() (Credentials, error) {
	var c Credentials

	data, err := os.ReadFile(f.Path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return c, errors.Wrapf(err, "read %s", f.Path)
	default:
		if err := json.Unmarshal(data, &c); err != nil {
			return c, errors.Wrapf(err, "parse %s", f.Path)
		}
	}

	if err := env.Parse(&c); err != nil {
		return c, errors.Wrap(err, "parse environment")
	}
	if c.Validate() != nil {
		return c, ErrNoCredentials
	}
	return c, nil
}

// Save writes the credentials file with owner-only permissions.
func (f FileCredentials) Save(c Credentials) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return writeJSON(f.Path, c)
}

// Remove deletes the credentials file. A missing file is not an error.
func (f FileCredentials) Remove() error {
	if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove credentials")
	}
	return nil
}
