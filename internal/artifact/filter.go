package artifact

import (
	"sort"
	"strings"

	"mediascribe-backend/internal/domain"
)

// Apply filters and sorts an artifact listing into a fresh slice, leaving
// the input untouched. A nil filter means no filtering with the default
// newest-first sort.
func Apply(artifacts []domain.UserArtifact, filter *domain.ArtifactFilter) []domain.UserArtifact {
	out := make([]domain.UserArtifact, 0, len(artifacts))
	if filter == nil {
		out = append(out, artifacts...)
		sortArtifacts(out, domain.SortNewest)
		return out
	}

	for _, a := range artifacts {
		if filter.FileType != "" && !matchesFileType(&a, filter.FileType) {
			continue
		}
		if filter.Language != "" && !matchesLanguage(&a, filter.Language) {
			continue
		}
		if filter.Search != "" && !matchesSearch(&a, strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, a)
	}

	order := filter.Sort
	if order == "" {
		order = domain.SortNewest
	}
	sortArtifacts(out, order)
	return out
}

func matchesFileType(a *domain.UserArtifact, ft domain.FileTypeFilter) bool {
	switch ft {
	case domain.FileTypeVideo:
		return strings.HasPrefix(a.File.ContentType, "video/")
	case domain.FileTypeAudio:
		return strings.HasPrefix(a.File.ContentType, "audio/")
	}
	return false
}

func matchesLanguage(a *domain.UserArtifact, language string) bool {
	return a.Transcription != nil && strings.EqualFold(a.Transcription.Language, language)
}

// matchesSearch checks the title and the filename, case-insensitively.
func matchesSearch(a *domain.UserArtifact, query string) bool {
	if strings.Contains(strings.ToLower(a.File.Title), query) {
		return true
	}
	return strings.Contains(strings.ToLower(a.File.Filename), query)
}

func sortArtifacts(artifacts []domain.UserArtifact, order domain.SortOrder) {
	switch order {
	case domain.SortOldest:
		sort.SliceStable(artifacts, func(i, j int) bool {
			return artifacts[i].File.CreatedAt.Before(artifacts[j].File.CreatedAt)
		})
	case domain.SortAlphaAsc:
		sort.SliceStable(artifacts, func(i, j int) bool {
			return displayName(&artifacts[i]) < displayName(&artifacts[j])
		})
	case domain.SortAlphaDesc:
		sort.SliceStable(artifacts, func(i, j int) bool {
			return displayName(&artifacts[i]) > displayName(&artifacts[j])
		})
	default: // newest
		sort.SliceStable(artifacts, func(i, j int) bool {
			return artifacts[i].File.CreatedAt.After(artifacts[j].File.CreatedAt)
		})
	}
}

// displayName picks the string listings sort on: the title when set,
// otherwise the filename.
func displayName(a *domain.UserArtifact) string {
	if a.File.Title != "" {
		return strings.ToLower(a.File.Title)
	}
	return strings.ToLower(a.File.Filename)
}
