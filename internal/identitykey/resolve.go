package identitykey

import "strings"

// ResolveOptions controls how loose identity inputs are normalized into a
// Key, per spec.md §4.6.
type ResolveOptions struct {
	// DefaultOrg is used when raw does not already carry a full org:... key.
	DefaultOrg string
	// DefaultType is composed with every input that is not already a full
	// key (TypeUser when empty); no input form implies a type of its own.
	DefaultType Type
}

// Resolve turns a loose identity reference — a full identifier key, an
// email address, a provider-prefixed handle (e.g. "slack:U0123"), or a raw
// handle — into a normalized, composed Key.
//
// Resolution order:
//  1. If raw already parses as a full "org:<slug>:<type>:<handle>" key, use
//     it verbatim (still validated against the grammar).
//  2. Otherwise extract a bare handle:
//     - an email address contributes its local part (before '@'), dropping
//       any subdomain/domain entirely;
//     - a provider-prefixed value ("provider:handle") contributes the
//       right-most segment, so doubly-prefixed input
//       ("provider1:provider2:handle") also resolves to "handle";
//     - anything else is used as-is.
//  3. The bare handle is normalized (normalizeHandle) and composed with
//     opts.DefaultOrg / opts.DefaultType.
func Resolve(raw string, opts ResolveOptions) (Key, error) {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "org:") {
		if key, err := Parse(raw); err == nil {
			return key, nil
		}
	}

	bare := raw
	if idx := strings.IndexByte(bare, '@'); idx >= 0 {
		bare = bare[:idx]
	} else if idx := strings.LastIndexByte(bare, ':'); idx >= 0 {
		bare = bare[idx+1:]
	}

	handle := normalizeHandle(bare)

	typ := opts.DefaultType
	if typ == "" {
		typ = TypeUser
	}
	org := opts.DefaultOrg

	return Build(org, typ, handle)
}

// normalizeHandle lowercases raw and coerces it into the handle grammar
// ([a-z0-9][a-z0-9_-]{1,63}):
//   - dots and whitespace become underscores
//   - any other disallowed character is dropped
//   - a non-alphanumeric leading character gets a "u_" prefix
//   - a result shorter than two characters gets a "user_" prefix instead
//   - the result is truncated to 64 characters
func normalizeHandle(raw string) string {
	lower := strings.ToLower(strings.TrimSpace(raw))

	var b strings.Builder
	for _, r := range lower {
		switch {
		case r == '.' || r == ' ' || r == '\t' || r == '\n':
			b.WriteRune('_')
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-':
			b.WriteRune(r)
		}
	}
	handle := b.String()

	if handle == "" {
		handle = "u"
	}
	first := handle[0]
	if !((first >= 'a' && first <= 'z') || (first >= '0' && first <= '9')) {
		handle = "u_" + handle
	}
	if len(handle) < 2 {
		handle = "user_" + handle
	}
	if len(handle) > 64 {
		handle = handle[:64]
	}
	// truncation may leave a trailing char that is still valid; the handle
	// regex has no constraint on the last character, only the first.
	return handle
}
