// YouTube search and audio resolution
//
// Video search talks to the Data API v3 directly with an API key. Audio URL
// extraction is delegated to a resolver sidecar wrapping yt-dlp, reached over
// plain HTTP like any other upstream.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/apolloyr/tunebridge/internal/shared"
	"golang.org/x/time/rate"
)

const (
	youtubeSearchURL   = "https://www.googleapis.com/youtube/v3/search"
	defaultResolverURL = "http://localhost:8091"

	// youtubeQPS caps outbound Data API calls; search costs 100 quota units each.
	youtubeQPS = 5
)

// YouTubeService implements VideoSearch against the Data API and the resolver sidecar.
type YouTubeService struct {
	apiKey      string
	searchURL   string
	resolverURL string
	httpClient  *http.Client
	limiter     *rate.Limiter
}

// NewYouTubeService creates a YouTube service with the given API key and
// resolver base URL. An empty resolverURL falls back to the local default.
func NewYouTubeService(apiKey, resolverURL string) *YouTubeService {
	if resolverURL == "" {
		resolverURL = defaultResolverURL
	}

	return &YouTubeService{
		apiKey:      apiKey,
		searchURL:   youtubeSearchURL,
		resolverURL: resolverURL,
		httpClient:  http.DefaultClient,
		limiter:     rate.NewLimiter(rate.Limit(youtubeQPS), 1),
	}
}

// searchResponse mirrors the Data API search list response.
type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			ChannelTitle string `json:"channelTitle"`
			Thumbnails   struct {
				Default struct {
					URL string `json:"url"`
				} `json:"default"`
			} `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}

func (y *YouTubeService) search(ctx context.Context, query string, max int) (*searchResponse, error) {
	if err := y.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrTimeout, err)
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("type", "video")
	params.Set("maxResults", fmt.Sprintf("%d", max))
	params.Set("key", y.apiKey)
	params.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.searchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: youtube unreachable", shared.ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: youtube returned %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &result, nil
}

// Search returns the best-matching video ID for a query, or empty when nothing matches.
func (y *YouTubeService) Search(ctx context.Context, query string) (string, error) {
	result, err := y.search(ctx, query, 1)
	if err != nil {
		return "", err
	}
	if len(result.Items) == 0 {
		return "", nil
	}
	return result.Items[0].ID.VideoID, nil
}

// SearchMultiple returns up to max video results for a query.
func (y *YouTubeService) SearchMultiple(ctx context.Context, query string, max int) ([]VideoResult, error) {
	if max <= 0 {
		max = 5
	}

	result, err := y.search(ctx, query, max)
	if err != nil {
		return nil, err
	}

	results := make([]VideoResult, len(result.Items))
	for i, item := range result.Items {
		results[i] = VideoResult{
			VideoID:      item.ID.VideoID,
			Title:        item.Snippet.Title,
			ChannelTitle: item.Snippet.ChannelTitle,
			Thumbnail:    item.Snippet.Thumbnails.Default.URL,
		}
	}

	return results, nil
}

// AudioURL resolves a direct audio stream URL for a video via the resolver sidecar.
func (y *YouTubeService) AudioURL(ctx context.Context, videoID string) (string, error) {
	endpoint := fmt.Sprintf("%s/api/audio?videoId=%s", y.resolverURL, url.QueryEscape(videoID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: resolver unreachable", shared.ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Detail string `json:"detail"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Detail != "" {
			return "", fmt.Errorf("%w: resolver error (status %d): %s", shared.ErrAPIRequest, resp.StatusCode, errResp.Detail)
		}
		return "", fmt.Errorf("%w: resolver returned %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	var result struct {
		AudioURL string `json:"audio_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if result.AudioURL == "" {
		return "", fmt.Errorf("%w: resolver returned no audio url", shared.ErrAPIRequest)
	}

	return result.AudioURL, nil
}
