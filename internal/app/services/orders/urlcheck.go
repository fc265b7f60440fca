package orders

import (
	"errors"
	"net/url"
	"strings"
)

// DefaultURLValidator accepts absolute http(s) URLs with a dotted hostname.
type DefaultURLValidator struct{}

var _ URLValidator = DefaultURLValidator{}

func (DefaultURLValidator) Validate(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("scheme must be http or https")
	}
	host := u.Hostname()
	if host == "" {
		return errors.New("missing host")
	}
	if !strings.Contains(host, ".") || strings.HasPrefix(host, ".") || strings.HasSuffix(host, ".") {
		return errors.New("host is not a valid domain")
	}
	return nil
}
