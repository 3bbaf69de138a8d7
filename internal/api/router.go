// Package api exposes the library over a JSON HTTP interface.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Taichi-iskw/yt-library/internal/logger"
	"github.com/Taichi-iskw/yt-library/internal/service/library"
)

// DefaultRequestTimeout bounds every request except downloads
const DefaultRequestTimeout = 2 * time.Minute

// Options tunes the router
type Options struct {
	RequestTimeout time.Duration
}

// NewRouter builds the HTTP handler over lib
func NewRouter(lib library.Library, log *logger.Logger, opts Options) http.Handler {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	h := &Handler{lib: lib, log: log}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(RequestLogger(log))
	r.Use(chiMiddleware.Recoverer)

	r.Get("/healthz", h.Health)

	r.Route("/api", func(r chi.Router) {
		// Downloads run as long as the transfer takes and are cancelled through
		// their own route, so only the other routes carry the request timeout.
		bounded := r.With(chiMiddleware.Timeout(opts.RequestTimeout))

		bounded.Post("/process", h.ProcessURL)

		r.Route("/videos", func(r chi.Router) {
			bounded := r.With(chiMiddleware.Timeout(opts.RequestTimeout))
			bounded.Get("/", h.ListVideos)
			bounded.Post("/verify", h.VerifyDownloads)
			bounded.Post("/scan", h.ScanLibrary)

			r.Route("/{videoId}", func(r chi.Router) {
				bounded := r.With(chiMiddleware.Timeout(opts.RequestTimeout))
				bounded.Get("/", h.GetVideo)
				bounded.Delete("/", h.DeleteVideo)
				bounded.Post("/update", h.UpdateVideo)
				bounded.Get("/transcript", h.GetTranscript)
				bounded.Post("/ask", h.Ask)

				r.Post("/download", h.Download)
				r.Delete("/download", h.CancelDownload)
			})
		})

		r.Route("/channels", func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(opts.RequestTimeout))
			r.Get("/", h.ListChannels)
			r.Get("/{channelId}", h.GetChannel)
			r.Get("/{channelId}/tags", h.ListChannelTags)
		})

		bounded.Get("/tags", h.ListTags)

		r.Route("/playlists", func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(opts.RequestTimeout))
			r.Get("/", h.ListPlaylists)
			r.Get("/{playlistId}", h.GetPlaylist)
			r.Get("/{playlistId}/videos", h.GetPlaylistVideos)
			r.Delete("/{playlistId}", h.DeletePlaylist)
		})
	})

	return r
}
