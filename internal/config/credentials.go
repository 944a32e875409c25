package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Simulated users have fictitious addresses like driver-3@cldr-apps-webdriver.org
const (
	emailPrefix   = "driver-"
	emailAtDomain = "@cldr-apps-webdriver.org"
)

// ErrNoPassword means the shared password of the simulated users is unset
var ErrNoPassword = errors.New("password not set (" + EnvPassword + ")")

type Credentials struct {
	Email    string
	Password string
}

// CredentialsForUser returns the login of simulated user n
func (c Config) CredentialsForUser(n int) (Credentials, error) {
	if c.Password == "" {
		return Credentials{}, ErrNoPassword
	}
	return Credentials{Email: fmt.Sprintf("%s%d%s", emailPrefix, n, emailAtDomain), Password: c.Password}, nil
}

// LoginURL builds the query-string login address for creds
func LoginURL(base string, creds Credentials) string {
	q := url.Values{}
	q.Set("email", creds.Email)
	q.Set("uid", creds.Password)
	return base + "survey?" + q.Encode()
}
