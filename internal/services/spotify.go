// Spotify API client
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/apolloyr/tunebridge/internal/shared"
)

const spotifyBaseURL = "https://api.spotify.com/v1"

// savedTracksPageSize is the maximum page size the saved-tracks endpoint allows.
const savedTracksPageSize = 50

type followers struct {
	Total int `json:"total"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Product     string         `json:"product"`
	Followers   followers      `json:"followers"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []SpotifyImage `json:"images"`
	URI    string         `json:"uri"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	URI        string          `json:"uri"`
}

// SpotifySavedTrack represents a track saved in the user's library.
type SpotifySavedTrack struct {
	AddedAt string       `json:"added_at"`
	Track   SpotifyTrack `json:"track"`
}

// SpotifyPaginatedTracks represents a paginated response of saved tracks.
type SpotifyPaginatedTracks struct {
	Items    []SpotifySavedTrack `json:"items"`
	Total    int                 `json:"total"`
	Limit    int                 `json:"limit"`
	Offset   int                 `json:"offset"`
	Next     *string             `json:"next"`
	Previous *string             `json:"previous"`
}

// SpotifyClient is an ephemeral handle over a single valid access token.
// Constructed per request once the gateway has resolved a token; holds no
// refresh state of its own.
type SpotifyClient struct {
	accessToken string
	baseURL     string
	httpClient  *http.Client
}

// NewSpotifyClient creates a client handle wrapping the given access token.
func NewSpotifyClient(accessToken string) *SpotifyClient {
	return &SpotifyClient{
		accessToken: accessToken,
		baseURL:     spotifyBaseURL,
		httpClient:  http.DefaultClient,
	}
}

// doRequest performs an authenticated GET against the Spotify API.
// The endpoint may be a path relative to the API base or an absolute
// pagination URL returned by a previous response.
func (c *SpotifyClient) doRequest(ctx context.Context, endpoint string, result any) error {
	apiURL := endpoint
	if !strings.HasPrefix(endpoint, "http") {
		apiURL = c.baseURL + endpoint
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: spotify unreachable", shared.ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: spotify returned %d", shared.ErrUpstreamUnavailable, resp.StatusCode)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: spotify rejected token", shared.ErrInvalidGrant)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: spotify returned %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// CurrentUser retrieves the authenticated user's profile.
func (c *SpotifyClient) CurrentUser(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := c.doRequest(ctx, "/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SavedTracks retrieves one page of the user's saved tracks.
func (c *SpotifyClient) SavedTracks(ctx context.Context, limit, offset int) (*SpotifyPaginatedTracks, error) {
	if limit <= 0 || limit > savedTracksPageSize {
		limit = savedTracksPageSize
	}

	endpoint := fmt.Sprintf("/me/tracks?limit=%d&offset=%d", limit, offset)

	var page SpotifyPaginatedTracks
	if err := c.doRequest(ctx, endpoint, &page); err != nil {
		return nil, err
	}

	return &page, nil
}

// AllSavedTracks walks the saved-tracks pagination to the end and shapes each
// track for clients: first artist, album name, first album image.
func (c *SpotifyClient) AllSavedTracks(ctx context.Context) ([]LikedTrack, error) {
	tracks := []LikedTrack{}

	page, err := c.SavedTracks(ctx, savedTracksPageSize, 0)
	if err != nil {
		return nil, err
	}

	for page != nil {
		for _, item := range page.Items {
			tracks = append(tracks, shapeTrack(item.Track))
		}

		if page.Next == nil || *page.Next == "" {
			break
		}

		var next SpotifyPaginatedTracks
		if err := c.doRequest(ctx, *page.Next, &next); err != nil {
			return nil, err
		}
		page = &next
	}

	return tracks, nil
}

func shapeTrack(t SpotifyTrack) LikedTrack {
	track := LikedTrack{
		ID:    t.ID,
		Name:  t.Name,
		Album: t.Album.Name,
	}
	if len(t.Artists) > 0 {
		track.Artist = t.Artists[0].Name
	}
	if len(t.Album.Images) > 0 {
		track.AlbumArt = t.Album.Images[0].URL
	}
	return track
}
