package manifest

import (
	"encoding/hex"
	"fmt"
	"sort"

	"golang.org/x/crypto/blake2b"
)

// ContentVersion computes a deterministic fingerprint for one layer's
// entities. No caller in this module stamps it as a layer version: the
// upgrade controller's GitTargetVersion takes versions from git only and
// fails outside a git work tree.
//
// The fingerprint is stable under entity re-ordering: it sorts by
// (kind, name) before hashing, so re-saving a file with different map
// iteration order never changes the version.
func ContentVersion(entities []Entity) string {
	keys := make([]string, 0, len(entities))
	byKey := make(map[string]Entity, len(entities))
	for _, e := range entities {
		k := string(e.Kind) + "/" + e.Name
		keys = append(keys, k)
		byKey[k] = e
	}
	sort.Strings(keys)

	h, _ := blake2b.New256(nil)
	for _, k := range keys {
		e := byKey[k]
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(e.Description))
		h.Write([]byte{0})
		for _, sk := range sortedSpecKeys(e.Spec) {
			h.Write([]byte(sk))
			h.Write([]byte("="))
			h.Write([]byte(specValueString(e.Spec[sk])))
			h.Write([]byte{0})
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ManifestSha is the first seven hex characters of a full version string,
// invariant 5 in spec.md §8.
func ManifestSha(version string) string {
	if len(version) < 7 {
		return version
	}
	return version[:7]
}

func sortedSpecKeys(spec map[string]interface{}) []string {
	keys := make([]string, 0, len(spec))
	for k := range spec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func specValueString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}
