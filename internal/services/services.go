// package services implements clients for the upstream music and video APIs
//
// Spotify (library reads with a per-request token handle), YouTube (search via
// the Data API, audio resolution via a resolver sidecar)
package services

import "context"

// LikedTrack is the shaped form of one saved library track returned to clients.
type LikedTrack struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Artist   string `json:"artist"`
	Album    string `json:"album"`
	AlbumArt string `json:"album_art"`
}

// Library reads the authenticated user's music library.
//
// Implementations wrap exactly one access token and are constructed per
// request, never stored.
type Library interface {
	CurrentUser(ctx context.Context) (*SpotifyUser, error)
	AllSavedTracks(ctx context.Context) ([]LikedTrack, error)
}

// LibraryFactory constructs a Library handle around a single valid access token.
type LibraryFactory func(accessToken string) Library

// VideoSearch finds videos matching a query and resolves playable audio URLs.
type VideoSearch interface {
	Search(ctx context.Context, query string) (string, error)
	SearchMultiple(ctx context.Context, query string, max int) ([]VideoResult, error)
	AudioURL(ctx context.Context, videoID string) (string, error)
}

// VideoResult is one video search hit.
type VideoResult struct {
	VideoID      string `json:"videoId"`
	Title        string `json:"title"`
	ChannelTitle string `json:"channelTitle"`
	Thumbnail    string `json:"thumbnail"`
}
