// Package credentials holds an application's id, secret and the options that
// control cookie and upload behavior.
package credentials

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var ErrInvalidConfig = errors.New("invalid credentials config")

var validate = validator.New()

// Config is the input record for New. The optional fields apply only when
// set; nil leaves the documented default in place.
type Config struct {
	AppID      string  `yaml:"appId" validate:"required"`
	Secret     string  `yaml:"secret" validate:"required"`
	Cookie     *bool   `yaml:"cookie,omitempty"`
	Domain     *string `yaml:"domain,omitempty"`
	FileUpload *bool   `yaml:"fileUpload,omitempty"`
}

// Credentials is created once per application context. Setters mutate in
// place and return the receiver so configuration can be chained.
type Credentials struct {
	appID             string
	apiSecret         string
	cookieSupport     bool
	baseDomain        string
	fileUploadSupport bool
}

func New(config Config) (*Credentials, error) {
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	c := &Credentials{}
	c.SetAppID(config.AppID).SetAPISecret(config.Secret)
	if config.Cookie != nil {
		c.SetCookieSupport(*config.Cookie)
	}
	if config.Domain != nil {
		c.SetBaseDomain(*config.Domain)
	}
	if config.FileUpload != nil {
		c.SetFileUploadSupport(*config.FileUpload)
	}
	return c, nil
}

func (c *Credentials) AppID() string           { return c.appID }
func (c *Credentials) APISecret() string       { return c.apiSecret }
func (c *Credentials) CookieSupport() bool     { return c.cookieSupport }
func (c *Credentials) BaseDomain() string      { return c.baseDomain }
func (c *Credentials) FileUploadSupport() bool { return c.fileUploadSupport }

func (c *Credentials) SetAppID(appID string) *Credentials {
	c.appID = appID
	return c
}

func (c *Credentials) SetAPISecret(secret string) *Credentials {
	c.apiSecret = secret
	return c
}

func (c *Credentials) SetCookieSupport(enabled bool) *Credentials {
	c.cookieSupport = enabled
	return c
}

func (c *Credentials) SetBaseDomain(domain string) *Credentials {
	c.baseDomain = domain
	return c
}

func (c *Credentials) SetFileUploadSupport(enabled bool) *Credentials {
	c.fileUploadSupport = enabled
	return c
}
