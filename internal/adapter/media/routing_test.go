package media

import (
	"testing"

	"wads/internal/infra/config"
)

var (
	routeFolders  = []RootFolder{{ID: 1, Path: "/data/media/Movies"}, {ID: 2, Path: "/data/media/CMovies"}, {ID: 3, Path: "/data/media/Anime"}}
	routeProfiles = []QualityProfile{{ID: 1, Name: "Any"}, {ID: 4, Name: "HD-1080p"}}
)

func TestIsAnime(t *testing.T) {
	tests := []struct {
		lang   string
		genres []string
		want   bool
	}{
		{"ja", []string{"Animation", "Comedy"}, true},
		{"en", []string{"Anime"}, true}, // explicit genre overrides language
		{"ja", []string{"Drama"}, false},
		{"en", []string{"Animation"}, false}, // western animation
	}
	for _, tc := range tests {
		if got := IsAnime(tc.lang, tc.genres); got != tc.want {
			t.Errorf("IsAnime(%q, %v) = %v, want %v", tc.lang, tc.genres, got, tc.want)
		}
	}
}

func TestRouteMovieAsianLanguage(t *testing.T) {
	cfg := config.RoutingConfig{CMoviesHint: "cmovies", QualityHint: "1080"}

	dec, err := RouteMovie("ko", routeFolders, routeProfiles, cfg)
	if err != nil {
		t.Fatalf("RouteMovie: %v", err)
	}
	if dec.RootFolderPath != "/data/media/CMovies" {
		t.Errorf("folder = %q", dec.RootFolderPath)
	}
	if dec.QualityProfileID != 4 {
		t.Errorf("profile = %d", dec.QualityProfileID)
	}

	// Full language names from Radarr lookups route the same way.
	dec, err = RouteMovie("Korean", routeFolders, routeProfiles, cfg)
	if err != nil {
		t.Fatalf("RouteMovie: %v", err)
	}
	if dec.RootFolderPath != "/data/media/CMovies" {
		t.Errorf("folder = %q", dec.RootFolderPath)
	}
}

func TestRouteMovieDefault(t *testing.T) {
	dec, err := RouteMovie("en", routeFolders, routeProfiles, config.RoutingConfig{CMoviesHint: "cmovies"})
	if err != nil {
		t.Fatalf("RouteMovie: %v", err)
	}
	if dec.RootFolderPath != "/data/media/Movies" {
		t.Errorf("folder = %q", dec.RootFolderPath)
	}
	if dec.QualityProfileID != 1 {
		t.Errorf("profile = %d, want first", dec.QualityProfileID)
	}
}

func TestRouteMovieNoCMoviesHintKeepsDefault(t *testing.T) {
	dec, err := RouteMovie("ja", routeFolders, routeProfiles, config.RoutingConfig{})
	if err != nil {
		t.Fatalf("RouteMovie: %v", err)
	}
	if dec.RootFolderPath != "/data/media/Movies" {
		t.Errorf("folder = %q", dec.RootFolderPath)
	}
}

func TestRouteSeriesAnime(t *testing.T) {
	dec, err := RouteSeries("ja", []string{"Animation"}, routeFolders, routeProfiles, config.RoutingConfig{AnimeHint: "anime"})
	if err != nil {
		t.Fatalf("RouteSeries: %v", err)
	}
	if dec.RootFolderPath != "/data/media/Anime" || dec.SeriesType != "anime" {
		t.Errorf("decision = %+v", dec)
	}
}

func TestRouteSeriesStandard(t *testing.T) {
	dec, err := RouteSeries("en", []string{"Drama"}, routeFolders, routeProfiles, config.RoutingConfig{AnimeHint: "anime"})
	if err != nil {
		t.Fatalf("RouteSeries: %v", err)
	}
	if dec.RootFolderPath != "/data/media/Movies" || dec.SeriesType != "standard" {
		t.Errorf("decision = %+v", dec)
	}
}

func TestRouteMovieNoFolders(t *testing.T) {
	if _, err := RouteMovie("en", nil, routeProfiles, config.RoutingConfig{}); err == nil {
		t.Error("expected error with no folders")
	}
	if _, err := RouteMovie("en", routeFolders, nil, config.RoutingConfig{}); err == nil {
		t.Error("expected error with no profiles")
	}
}
