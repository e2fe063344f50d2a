// Package identitykey implements the identifier-key grammar and the loose
// input resolution algorithm from spec.md §3 and §4.6.
package identitykey

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/letta-ai/letta-sync/internal/errkind"
)

var (
	orgSlugRE = regexp.MustCompile(`^[a-z][a-z0-9-]{1,31}$`)
	handleRE  = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{1,63}$`)
)

// Type is one of the allowed identity types.
type Type string

const (
	TypeUser    Type = "user"
	TypeService Type = "service"
	TypeTeam    Type = "team"
)

func (t Type) valid() bool {
	switch t {
	case TypeUser, TypeService, TypeTeam:
		return true
	default:
		return false
	}
}

// Key is a parsed identifier key: org:<org-slug>:<type>:<handle>.
type Key struct {
	Org    string
	Type   Type
	Handle string
}

func (k Key) String() string {
	return fmt.Sprintf("org:%s:%s:%s", k.Org, k.Type, k.Handle)
}

// Parse validates and decomposes a raw identifier key string.
func Parse(raw string) (Key, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 4 || parts[0] != "org" {
		return Key{}, errkind.New(errkind.Validation, "identifier key %q must have the form org:<org-slug>:<type>:<handle>", raw).
			WithField("identifierKey")
	}
	org, typ, handle := parts[1], Type(parts[2]), parts[3]

	if !orgSlugRE.MatchString(org) {
		return Key{}, errkind.New(errkind.Validation, "identifier key %q has an invalid org slug %q", raw, org).
			WithField("identifierKey.org").
			WithSuggestion("org slugs match [a-z][a-z0-9-]{1,31}")
	}
	if !typ.valid() {
		return Key{}, errkind.New(errkind.Validation, "identifier key %q has an invalid type %q", raw, typ).
			WithField("identifierKey.type").
			WithSuggestion("type must be one of user, service, team")
	}
	if !handleRE.MatchString(handle) {
		return Key{}, errkind.New(errkind.Validation, "identifier key %q has an invalid handle %q", raw, handle).
			WithField("identifierKey.handle").
			WithSuggestion("handles match [a-z0-9][a-z0-9_-]{1,63}")
	}

	return Key{Org: org, Type: typ, Handle: handle}, nil
}

// Build composes a Key from parts, validating the same grammar as Parse.
func Build(org string, typ Type, handle string) (Key, error) {
	return Parse(fmt.Sprintf("org:%s:%s:%s", org, typ, handle))
}

// Valid reports whether raw is a syntactically valid identifier key.
func Valid(raw string) bool {
	_, err := Parse(raw)
	return err == nil
}
