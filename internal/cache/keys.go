package cache

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

const namespace = "ss"

// ListFilterAll is the canonical list key suffix for an unfiltered listing.
const ListFilterAll = "all"

// DetailKey addresses one contribution's rendered detail payload. Payloads
// differ per viewer (enrollment state changes what they see), so an
// authenticated read gets a viewer-scoped key.
func DetailKey(contributionID uuid.UUID, viewerID *uuid.UUID) string {
	if viewerID == nil || *viewerID == uuid.Nil {
		return join("contribution", "detail", contributionID.String())
	}
	return join("contribution", "detail", contributionID.String(), "viewer", viewerID.String())
}

// DetailPrefix covers every viewer variant of one contribution's detail.
func DetailPrefix(contributionID uuid.UUID) string {
	return join("contribution", "detail", contributionID.String())
}

// ListKey addresses one filtered page of the contribution listing. Filters are
// sorted by name so equivalent queries share a key regardless of parameter
// order; no filters collapses to the canonical "all" suffix. A user filter
// becomes its own key segment so user-scoped pages can be dropped by prefix.
func ListKey(filters map[string]string) string {
	clean := make(map[string]string, len(filters))
	for name, value := range filters {
		if strings.TrimSpace(value) == "" {
			continue
		}
		clean[name] = value
	}

	parts := []string{"contribution", "list"}
	if user, ok := clean["user"]; ok {
		parts = append(parts, "user", user)
		delete(clean, "user")
	}

	if len(clean) == 0 {
		return join(append(parts, ListFilterAll)...)
	}
	names := make([]string, 0, len(clean))
	for name := range clean {
		names = append(names, name)
	}
	sort.Strings(names)
	pairs := make([]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, name+"="+clean[name])
	}
	return join(append(parts, strings.Join(pairs, "&"))...)
}

// ListPrefix covers every cached page of the contribution listing, the
// user-scoped pages included.
func ListPrefix() string {
	return join("contribution", "list") + ":"
}

// UserListPrefix covers every cached list page scoped to one user.
func UserListPrefix(userID uuid.UUID) string {
	return join("contribution", "list", "user", userID.String()) + ":"
}

// UserEnrollmentsKey addresses one user's enrollment collection.
func UserEnrollmentsKey(userID uuid.UUID) string {
	return join("user", "enrollments", userID.String())
}

// ContributionEnrollmentsKey addresses the roster of one contribution.
func ContributionEnrollmentsKey(contributionID uuid.UUID) string {
	return join("contribution", "enrollments", contributionID.String())
}

func join(parts ...string) string {
	return namespace + ":" + strings.Join(parts, ":")
}
