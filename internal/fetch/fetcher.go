package fetch

import (
	"context"
	"fmt"
	"strings"

	"github.com/joescharf/ghwatch/internal/models"
)

// Fetcher retrieves new activity of one source-type family for one repo.
//
// A fetcher may serve several related source types when they share a
// single round trip (discussions and their comments, for example). It must
// only return items created strictly after the watermark of their type and
// must not modify repoState. Expected transport failures are logged by the
// fetcher and reported as an empty result with a nil error.
type Fetcher interface {
	SourceTypes() []models.SourceType
	FetchNewActivities(ctx context.Context, repoFullName string, repoState models.RepositoryState) ([]models.ActivityItem, error)
}

// SplitRepo parses "owner/name" into its parts.
func SplitRepo(fullName string) (owner, name string, err error) {
	parts := strings.Split(fullName, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository name %q: want owner/name", fullName)
	}
	return parts[0], parts[1], nil
}

// Describe renders a fetcher's source types for log messages.
func Describe(f Fetcher) string {
	types := f.SourceTypes()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
