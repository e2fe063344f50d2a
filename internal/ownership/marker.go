// Package ownership implements the ownership classifier from spec.md §4.2:
// partitioning observed control-plane resources into managed, adopted,
// orphaned, and foreign sets using tags, metadata, and manifest membership.
package ownership

import (
	"strings"
	"time"

	"github.com/letta-ai/letta-sync/internal/models"
)

// marker tag/metadata key names, spec.md §4.2.
const (
	keyManagedBy      = "managed_by"
	keyLayer          = "layer"
	keyLastSynced     = "last_synced"
	keyOrg            = "org"
	keyProject        = "project"
	keyPackageVersion = "package_version"
	keyAdoptedAt      = "adopted_at"
	keyOriginalName   = "original_name"
	keyAutoCreated    = "auto_created"
	keyCreatedAt      = "created_at"
	keyCreatedBy      = "created_by"
)

// MarkerFromMetadata reads a models.Marker out of a metadata map (the
// representation used by blocks and folders, which carry no tag set).
// The second return value is false when no managed_by entry is present.
func MarkerFromMetadata(meta map[string]string) (models.Marker, bool) {
	if meta == nil {
		return models.Marker{}, false
	}
	managedBy, ok := meta[keyManagedBy]
	if !ok || managedBy == "" {
		return models.Marker{}, false
	}
	return models.Marker{
		ManagedBy:      managedBy,
		Layer:          models.Layer(meta[keyLayer]),
		LastSynced:     meta[keyLastSynced],
		Org:            meta[keyOrg],
		Project:        meta[keyProject],
		PackageVersion: meta[keyPackageVersion],
		AdoptedAt:      meta[keyAdoptedAt],
		OriginalName:   meta[keyOriginalName],
	}, true
}

// MarkerToMetadata serializes a marker into a metadata map, merging it over
// any existing non-reserved entries so user metadata survives.
func MarkerToMetadata(existing map[string]string, m models.Marker) map[string]string {
	out := make(map[string]string, len(existing)+8)
	for k, v := range existing {
		if !isReservedKey(k) {
			out[k] = v
		}
	}
	out[keyManagedBy] = m.ManagedBy
	out[keyLayer] = string(m.Layer)
	out[keyLastSynced] = m.LastSynced
	if m.Org != "" {
		out[keyOrg] = m.Org
	}
	if m.Project != "" {
		out[keyProject] = m.Project
	}
	if m.PackageVersion != "" {
		out[keyPackageVersion] = m.PackageVersion
	}
	if m.AdoptedAt != "" {
		out[keyAdoptedAt] = m.AdoptedAt
	}
	if m.OriginalName != "" {
		out[keyOriginalName] = m.OriginalName
	}
	return out
}

func isReservedKey(k string) bool {
	switch k {
	case keyManagedBy, keyLayer, keyLastSynced, keyOrg, keyProject,
		keyPackageVersion, keyAdoptedAt, keyOriginalName:
		return true
	default:
		return false
	}
}

// MarkerFromTags reads a models.Marker out of a "key:value" tag set (the
// representation used by tools and agents).
func MarkerFromTags(tags []string) (models.Marker, bool) {
	values := make(map[string]string, len(tags))
	for _, tag := range tags {
		k, v, found := strings.Cut(tag, ":")
		if !found {
			continue
		}
		values[k] = v
	}
	managedBy, ok := values[keyManagedBy]
	if !ok || managedBy == "" {
		return models.Marker{}, false
	}
	return models.Marker{
		ManagedBy:      managedBy,
		Layer:          models.Layer(values[keyLayer]),
		LastSynced:     values[keyLastSynced],
		Org:            values[keyOrg],
		Project:        values[keyProject],
		PackageVersion: values[keyPackageVersion],
		AdoptedAt:      values[keyAdoptedAt],
		OriginalName:   values[keyOriginalName],
	}, true
}

// MarkerToTags rebuilds a "key:value" tag set from a marker, preserving any
// tag whose key is not one of the reserved marker keys.
func MarkerToTags(existing []string, m models.Marker) []string {
	out := make([]string, 0, len(existing)+8)
	for _, tag := range existing {
		k, _, found := strings.Cut(tag, ":")
		if found && isReservedKey(k) {
			continue
		}
		out = append(out, tag)
	}
	out = append(out, keyManagedBy+":"+m.ManagedBy, keyLayer+":"+string(m.Layer))
	if m.LastSynced != "" {
		out = append(out, keyLastSynced+":"+m.LastSynced)
	}
	if m.Org != "" {
		out = append(out, keyOrg+":"+m.Org)
	}
	if m.Project != "" {
		out = append(out, keyProject+":"+m.Project)
	}
	if m.PackageVersion != "" {
		out = append(out, keyPackageVersion+":"+m.PackageVersion)
	}
	if m.AdoptedAt != "" {
		out = append(out, keyAdoptedAt+":"+m.AdoptedAt)
	}
	if m.OriginalName != "" {
		out = append(out, keyOriginalName+":"+m.OriginalName)
	}
	return out
}

// NewMarker builds a fresh marker for a newly managed or re-synced resource.
func NewMarker(layer models.Layer, org, project, packageVersion string, now time.Time) models.Marker {
	return models.Marker{
		ManagedBy:      models.ManagedBySystem,
		Layer:          layer,
		LastSynced:     now.UTC().Format(time.RFC3339),
		Org:            org,
		Project:        project,
		PackageVersion: packageVersion,
	}
}

// AdoptionStamp stamps adoption bookkeeping onto a marker being written for
// a resource that is transitioning from adopted to managed.
func AdoptionStamp(m models.Marker, originalName string, now time.Time) models.Marker {
	m.AdoptedAt = now.UTC().Format(time.RFC3339)
	m.OriginalName = originalName
	return m
}
