package blobreader

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultPrefix is the virtual path claimed when no prefix is configured.
const DefaultPrefix = "/azure"

// Config is the mount configuration of one reader instance.
type Config struct {
	// Prefix is the virtual path root, e.g. "/azure".
	Prefix string
	// ConnectionString is either the name of an external setting holding the
	// connection string, or the connection string itself.
	ConnectionString string
	// Endpoint overrides the public endpoint used for redirects.
	Endpoint string
	// RedirectIfUnmodified sends clients straight to the blob endpoint when a
	// request carries no processing directive.
	RedirectIfUnmodified bool
}

// ConfigFromArgs reads a Config from plugin style arguments. Keys are
// case-insensitive: prefix, connectionstring, blobstorageendpoint (or
// endpoint) and redirectToBlobIfUnmodified.
func ConfigFromArgs(args map[string]string) (Config, error) {
	lower := make(map[string]string, len(args))
	for k, v := range args {
		lower[strings.ToLower(k)] = strings.TrimSpace(v)
	}
	cfg := Config{
		Prefix:               lower["prefix"],
		ConnectionString:     lower["connectionstring"],
		Endpoint:             lower["blobstorageendpoint"],
		RedirectIfUnmodified: true,
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = lower["endpoint"]
	}
	if raw := lower["redirecttoblobifunmodified"]; raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, &ConfigurationError{
				Mount: cfg.Prefix,
				Msg:   fmt.Sprintf("invalid redirectToBlobIfUnmodified value %q", raw),
				Err:   err,
			}
		}
		cfg.RedirectIfUnmodified = v
	}
	return cfg, nil
}

// NormalizePrefix returns prefix with a single leading slash and no trailing
// separators. An app-relative "~/" prefix is accepted.
func NormalizePrefix(prefix string) string {
	prefix = strings.TrimPrefix(strings.TrimSpace(prefix), "~")
	prefix = strings.TrimRight(prefix, `/\`)
	if prefix == "" {
		return DefaultPrefix
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return prefix
}

// ConfigurationError reports unusable configuration found while installing a
// reader. It is fatal for that reader.
type ConfigurationError struct {
	Mount string
	Msg   string
	Err   error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("blobreader %s: %s", e.Mount, e.Msg)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
