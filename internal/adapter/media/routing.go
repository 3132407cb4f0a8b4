package media

import (
	"fmt"
	"strings"

	"wads/internal/infra/config"
)

// asianLanguages holds ISO 639-1 codes and full English names for languages
// routed to the dedicated Asian-cinema folder when one is configured.
var asianLanguages = map[string]bool{
	"ja": true, "ko": true, "zh": true, "th": true, "hi": true,
	"ta": true, "te": true, "vi": true, "ms": true, "tl": true, "id": true,
	"japanese": true, "korean": true, "chinese": true, "mandarin": true,
	"cantonese": true, "thai": true, "hindi": true, "tamil": true,
	"telugu": true, "vietnamese": true, "malay": true, "tagalog": true,
	"indonesian": true,
}

// RoutingDecision is where a new movie or series should land.
type RoutingDecision struct {
	RootFolderPath   string
	QualityProfileID int64
	SeriesType       string // "standard" or "anime"; empty for movies
	Reason           string
}

// FindQualityProfile matches the hint against profile names, falling back
// to the first profile.
func FindQualityProfile(profiles []QualityProfile, hint string) (int64, error) {
	if hint != "" {
		lower := strings.ToLower(hint)
		for _, p := range profiles {
			if strings.Contains(strings.ToLower(p.Name), lower) {
				return p.ID, nil
			}
		}
	}
	if len(profiles) == 0 {
		return 0, fmt.Errorf("no quality profiles available")
	}
	return profiles[0].ID, nil
}

func findRootFolder(folders []RootFolder, hint string) (RootFolder, error) {
	if hint != "" {
		lower := strings.ToLower(hint)
		for _, f := range folders {
			if strings.Contains(strings.ToLower(f.Path), lower) {
				return f, nil
			}
		}
	}
	if len(folders) == 0 {
		return RootFolder{}, fmt.Errorf("no root folders available")
	}
	return folders[0], nil
}

// IsAnime detects anime from genre and language signals. An explicit
// "anime" genre is a strong signal on its own; otherwise both Japanese
// original language and an "animation" genre are required.
func IsAnime(originalLanguage string, genres []string) bool {
	hasAnimation := false
	for _, g := range genres {
		switch strings.ToLower(g) {
		case "anime":
			return true
		case "animation":
			hasAnimation = true
		}
	}
	return originalLanguage == "ja" && hasAnimation
}

func isAsianLanguage(language string) bool {
	return asianLanguages[strings.ToLower(language)]
}

// RouteMovie picks a root folder and quality profile for a new movie.
// Asian-language movies go to the configured CMovies folder when set.
func RouteMovie(originalLanguage string, folders []RootFolder, profiles []QualityProfile, cfg config.RoutingConfig) (RoutingDecision, error) {
	profileID, err := FindQualityProfile(profiles, cfg.QualityHint)
	if err != nil {
		return RoutingDecision{}, err
	}

	if isAsianLanguage(originalLanguage) && cfg.CMoviesHint != "" {
		folder, err := findRootFolder(folders, cfg.CMoviesHint)
		if err != nil {
			return RoutingDecision{}, err
		}
		return RoutingDecision{
			RootFolderPath:   folder.Path,
			QualityProfileID: profileID,
			Reason:           fmt.Sprintf("Asian-language movie (%s), routed to %s", originalLanguage, folder.Path),
		}, nil
	}

	folder, err := findRootFolder(folders, "")
	if err != nil {
		return RoutingDecision{}, err
	}
	return RoutingDecision{
		RootFolderPath:   folder.Path,
		QualityProfileID: profileID,
		Reason:           fmt.Sprintf("Standard movie, routed to default folder %s", folder.Path),
	}, nil
}

// RouteSeries picks a root folder, quality profile and series type for a
// new series. Anime goes to the configured anime folder when set.
func RouteSeries(originalLanguage string, genres []string, folders []RootFolder, profiles []QualityProfile, cfg config.RoutingConfig) (RoutingDecision, error) {
	profileID, err := FindQualityProfile(profiles, cfg.QualityHint)
	if err != nil {
		return RoutingDecision{}, err
	}

	if IsAnime(originalLanguage, genres) {
		folder, err := findRootFolder(folders, cfg.AnimeHint)
		if err != nil {
			return RoutingDecision{}, err
		}
		return RoutingDecision{
			RootFolderPath:   folder.Path,
			QualityProfileID: profileID,
			SeriesType:       "anime",
			Reason:           fmt.Sprintf("Detected as anime, routed to %s", folder.Path),
		}, nil
	}

	folder, err := findRootFolder(folders, "")
	if err != nil {
		return RoutingDecision{}, err
	}
	return RoutingDecision{
		RootFolderPath:   folder.Path,
		QualityProfileID: profileID,
		SeriesType:       "standard",
		Reason:           fmt.Sprintf("Standard series, routed to default folder %s", folder.Path),
	}, nil
}
