// Package services defines the [Catalog] interface for music streaming providers and implements it for Spotify and YouTube Music.
//
// # Catalog Interface
//
// All music providers implement a common abstraction, enabling playlist operations to work uniformly across providers.
//
// # Spotify Implementation
//
// [SpotifyService] uses OAuth2 for authentication with automatic token refresh.
//
// The [oauth2.Client] automatically refreshes expired tokens using the refresh token.
//
// # YouTube Music Implementation
//
// YouTubeService communicates with the FastAPI proxy server (music/) wrapping ytmusicapi
//
// The proxy handles YouTube Music authentication complexities.
// The auth_file path is sent via X-Auth-File header on each request.
// All YouTube operations are synchronous HTTP calls to the proxy endpoints.
//
// # OAuth
//
// There is no separate OAuth interface; [SpotifyService] exposes the
// authorization URL of its OAuth flow directly via GetAuthURL.
//
// # Error Handling
//
// HTTP and decoding failures are returned as plain errors built with fmt.Errorf.
// The only shared sentinel the services return is [shared.ErrNotImplemented],
// for endpoints and request bodies this package does not support.
//
// # API Mappings
//
// Both services convert provider-specific JSON responses to models.Playlist and models.Track:
//   - Spotify: Maps [SpotifyPlaylist] → [models.Playlist]
//   - YouTube: Maps [YouTubePlaylist] → [models.Playlist]
//
// The provider response types carry an ISRC field, but [models.Track] has none,
// so the mapping drops it; track matching compares normalized title and artist.
package services
