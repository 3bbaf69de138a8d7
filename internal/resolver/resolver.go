// Package resolver turns YouTube URLs into an entity kind and ID without network access.
package resolver

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/Taichi-iskw/yt-library/internal/errors"
	"github.com/Taichi-iskw/yt-library/internal/model"
)

var (
	channelIDRegex  = regexp.MustCompile(`^UC[a-zA-Z0-9_-]{22}$`)
	videoIDRegex    = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)
	playlistIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{10,}$`)
	nameRegex       = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
)

var youtubeHosts = map[string]bool{
	"youtube.com":              true,
	"www.youtube.com":          true,
	"m.youtube.com":            true,
	"music.youtube.com":        true,
	"youtube-nocookie.com":     true,
	"www.youtube-nocookie.com": true,
}

// Target is the result of resolving a URL. ID is the canonical ID, except for
// channels addressed by handle or legacy name where it is "@handle", "user/name"
// or "c/name" until the provider reports the canonical one.
type Target struct {
	Kind model.EntityKind `json:"kind"`
	ID   string           `json:"id"`
}

// IsCanonical reports whether ID is already the platform's canonical ID
func (t Target) IsCanonical() bool {
	if t.Kind == model.KindChannel {
		return channelIDRegex.MatchString(t.ID)
	}
	return true
}

// Resolve parses a YouTube URL. Priority follows the page the URL points at:
// channel pages, then playlist pages, then videos and shorts.
func Resolve(rawURL string) (Target, error) {
	s := strings.TrimSpace(rawURL)
	if s == "" {
		return Target{}, errors.New(errors.CodeParse, "URL is empty")
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return Target{}, errors.Wrap(err, errors.CodeParse, "malformed URL: "+rawURL)
	}

	host := strings.ToLower(u.Hostname())
	segments := splitPath(u.Path)

	if host == "youtu.be" {
		if len(segments) > 0 && videoIDRegex.MatchString(segments[0]) {
			return Target{Kind: model.KindVideo, ID: segments[0]}, nil
		}
		return Target{}, errors.New(errors.CodeParse, "short link without a video ID: "+rawURL)
	}
	if !youtubeHosts[host] {
		return Target{}, errors.New(errors.CodeParse, "not a YouTube URL: "+rawURL)
	}

	if t, ok := resolveChannel(segments); ok {
		return t, nil
	}

	query := u.Query()
	if len(segments) > 0 && segments[0] == "playlist" {
		id := query.Get("list")
		if id == "" && len(segments) > 1 {
			id = segments[1]
		}
		if playlistIDRegex.MatchString(id) {
			return Target{Kind: model.KindPlaylist, ID: id}, nil
		}
		return Target{}, errors.New(errors.CodeParse, "playlist URL without a valid list ID: "+rawURL)
	}

	if id, ok := videoID(segments, query); ok {
		return Target{Kind: model.KindVideo, ID: id}, nil
	}

	return Target{}, errors.New(errors.CodeParse, "unsupported YouTube URL format: "+rawURL)
}

func resolveChannel(segments []string) (Target, bool) {
	if len(segments) == 0 {
		return Target{}, false
	}

	first := segments[0]
	if strings.HasPrefix(first, "@") {
		handle := strings.TrimPrefix(first, "@")
		if nameRegex.MatchString(handle) {
			return Target{Kind: model.KindChannel, ID: "@" + handle}, true
		}
		return Target{}, false
	}
	if len(segments) < 2 {
		return Target{}, false
	}

	switch first {
	case "channel":
		if channelIDRegex.MatchString(segments[1]) {
			return Target{Kind: model.KindChannel, ID: segments[1]}, true
		}
	case "user", "c":
		if nameRegex.MatchString(segments[1]) {
			return Target{Kind: model.KindChannel, ID: first + "/" + segments[1]}, true
		}
	}
	return Target{}, false
}

func videoID(segments []string, query url.Values) (string, bool) {
	if len(segments) == 0 {
		return "", false
	}

	var id string
	switch segments[0] {
	case "watch":
		id = query.Get("v")
	case "shorts", "embed", "v", "live":
		if len(segments) > 1 {
			id = segments[1]
		}
	}
	return id, videoIDRegex.MatchString(id)
}

func splitPath(p string) []string {
	var out []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

// ChannelURL builds the page URL for a channel ID or handle form
func ChannelURL(id string) string {
	switch {
	case strings.HasPrefix(id, "@"), strings.HasPrefix(id, "user/"), strings.HasPrefix(id, "c/"):
		return "https://www.youtube.com/" + id
	default:
		return "https://www.youtube.com/channel/" + id
	}
}

// VideoURL builds the watch URL for a video ID
func VideoURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

// PlaylistURL builds the page URL for a playlist ID
func PlaylistURL(id string) string {
	return "https://www.youtube.com/playlist?list=" + id
}
