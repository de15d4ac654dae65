// Package seo serves the built single-page app and the crawler-facing share
// pages for videos.
package seo

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	zlog "github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"splikz/internal/config"
	"splikz/internal/models"
	"splikz/internal/services"
)

//go:embed templates/*.html
var templateFS embed.FS

// VideoMeta is the subset of a video exposed to link unfurlers.
type VideoMeta struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
	VideoURL    string `json:"video_url"`
}

type sharePage struct {
	SiteName     string
	Title        string
	Description  string
	Image        string
	VideoURL     string
	CanonicalURL string
	RedirectPath string
}

type Server struct {
	cfg    config.WebConfig
	appURL string
	db     *gorm.DB
	cache  *services.RedisCache
	tmpl   *template.Template
}

// NewServer builds the SEO server. db and cache may be nil; share pages
// then fall back to generic tags.
func NewServer(cfg config.WebConfig, appURL string, db *gorm.DB, cache *services.RedisCache) (*Server, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/share.html")
	if err != nil {
		return nil, fmt.Errorf("parse share template: %w", err)
	}
	return &Server{
		cfg:    cfg,
		appURL: strings.TrimRight(appURL, "/"),
		db:     db,
		cache:  cache,
		tmpl:   tmpl,
	}, nil
}

// Echo returns the router. Registered routes take precedence over files in
// the dist directory; unknown extensionless paths get index.html.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.StaticWithConfig(middleware.StaticConfig{
		Skipper: routedPath,
		Root:    s.cfg.DistDir,
		Index:   "index.html",
	}))

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/v/:id", s.ShareVideo)
	e.RouteNotFound("/*", s.spaFallback)

	return e
}

// routedPath keeps dist files from shadowing the server's own routes.
func routedPath(c echo.Context) bool {
	p := c.Request().URL.Path
	return p == "/healthz" || strings.HasPrefix(p, "/v/")
}

func (s *Server) spaFallback(c echo.Context) error {
	p := c.Request().URL.Path
	if path.Ext(p) != "" {
		return echo.ErrNotFound
	}
	if m := c.Request().Method; m != http.MethodGet && m != http.MethodHead {
		return echo.ErrNotFound
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
	return c.File(filepath.Join(s.cfg.DistDir, "index.html"))
}

// ShareVideo renders Open Graph and Twitter tags for a video and sends the
// browser on to the client route.
func (s *Server) ShareVideo(c echo.Context) error {
	id := c.Param("id")
	meta := s.lookup(c.Request().Context(), id)

	page := sharePage{
		SiteName:     s.cfg.SiteName,
		Title:        meta.Title,
		Description:  meta.Description,
		Image:        s.absolute(meta.Image),
		VideoURL:     meta.VideoURL,
		RedirectPath: "/video/" + url.PathEscape(id),
	}
	page.CanonicalURL = s.appURL + page.RedirectPath
	if page.Title == "" {
		page.Title = "Watch on " + s.cfg.SiteName
	}
	if page.Description == "" {
		page.Description = "Short videos, prayer and testimony on " + s.cfg.SiteName + "."
	}
	if page.Image == "" {
		page.Image = s.absolute(s.cfg.DefaultImage)
	}

	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().Header().Set(echo.HeaderCacheControl, "public, max-age=300")
	c.Response().WriteHeader(http.StatusOK)
	return s.tmpl.ExecuteTemplate(c.Response(), "share.html", page)
}

func (s *Server) lookup(ctx context.Context, id string) VideoMeta {
	if s.db == nil || id == "" {
		return VideoMeta{}
	}

	meta, err := services.GetOrSet(s.cache, ctx, "seo:video:"+id, s.cfg.MetaCacheTTL, func() (VideoMeta, error) {
		var video models.Video
		if err := s.db.WithContext(ctx).Select("id", "title", "description", "thumbnail_url", "video_url").
			First(&video, "id = ?", id).Error; err != nil {
			return VideoMeta{}, err
		}
		return VideoMeta{
			ID:          video.ID,
			Title:       video.Title,
			Description: video.Description,
			Image:       video.ThumbnailURL,
			VideoURL:    video.VideoURL,
		}, nil
	})
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			zlog.Warn().Err(err).Str("video_id", id).Msg("failed to load share metadata")
		}
		return VideoMeta{}
	}
	return meta
}

func (s *Server) absolute(ref string) string {
	if ref == "" || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	return s.appURL + "/" + strings.TrimLeft(ref, "/")
}
