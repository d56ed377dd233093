// Package settings resolves named connection settings through an ordered chain
// of sources, falling back to treating the name as the literal value.
package settings

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Source looks a named setting up. ok is false when the source does not know
// the name or holds an empty value for it.
type Source interface {
	Lookup(name string) (value string, ok bool)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(name string) (string, bool)

func (f SourceFunc) Lookup(name string) (string, bool) {
	return f(name)
}

// Chain tries each source in order.
type Chain []Source

// Resolve returns the first value found for name, or name itself when no
// source knows it.
func (c Chain) Resolve(name string) string {
	for _, src := range c {
		if src == nil {
			continue
		}
		if v, ok := src.Lookup(name); ok {
			return v
		}
	}
	v, _ := Literal.Lookup(name)
	return v
}

// Literal always succeeds and returns the name unchanged.
var Literal Source = SourceFunc(func(name string) (string, bool) {
	return name, true
})

// Map is a static set of named settings.
type Map map[string]string

func (m Map) Lookup(name string) (string, bool) {
	v, ok := m[name]
	return v, ok && v != ""
}

// Env reads settings from the process environment.
var Env Source = SourceFunc(func(name string) (string, bool) {
	v, ok := os.LookupEnv(name)
	return v, ok && v != ""
})

// DotEnv loads the given .env files into a Map without touching the process
// environment. Later files override earlier ones.
func DotEnv(paths ...string) (Map, error) {
	out := Map{}
	for _, p := range paths {
		vals, err := godotenv.Read(p)
		if err != nil {
			return nil, fmt.Errorf("read env file %s: %w", p, err)
		}
		for k, v := range vals {
			out[k] = v
		}
	}
	return out, nil
}

// Viper looks names up under appSettings first, then connectionStrings.
type Viper struct {
	V *viper.Viper
}

func (s Viper) Lookup(name string) (string, bool) {
	if s.V == nil {
		return "", false
	}
	// viper keys are case-insensitive and dot separated.
	key := strings.ToLower(name)
	for _, section := range []string{"appsettings", "connectionstrings"} {
		if v := s.V.GetStringMapString(section)[key]; v != "" {
			return v, true
		}
	}
	return "", false
}
