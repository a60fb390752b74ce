package library

import (
	"fmt"

	"github.com/Nezreka/SoulSync-sub002/internal/shared"
)

// NewFromConfig constructs the MediaLibrary backend selected by
// cfg.MediaLibrary.Backend.
func NewFromConfig(cfg *shared.Config) (MediaLibrary, error) {
	switch cfg.MediaLibrary.Backend {
	case "plex":
		p := cfg.MediaLibrary.Plex
		return NewPlexClient(p.BaseURL, p.Token, p.MusicLibrary), nil
	case "jellyfin":
		j := cfg.MediaLibrary.Jellyfin
		return NewJellyfinClient(j.BaseURL, j.APIKey, j.UserID), nil
	case "navidrome":
		n := cfg.MediaLibrary.Navidrome
		return NewNavidromeClient(n.BaseURL, n.Username, n.Password), nil
	default:
		return nil, fmt.Errorf("unknown media_library backend %q", cfg.MediaLibrary.Backend)
	}
}
