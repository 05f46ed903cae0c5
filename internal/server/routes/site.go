package routes

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ugfund/ugfsync/internal/site"
)

const siteCacheControl = "public, s-maxage=86400, stale-while-revalidate=86400"

// SiteReader builds the documents the public website reads.
type SiteReader interface {
	ActiveMembers(ctx context.Context) ([]site.Member, error)
	ManagementTeam(ctx context.Context) ([]site.Member, error)
	Alumni(ctx context.Context) ([]site.Alumnus, error)
	Portfolio(ctx context.Context) ([]site.Deal, error)
	MembersDeals(ctx context.Context) (map[string][][2]string, error)
	VCCC(ctx context.Context, office string) (site.VCCC, error)
}

// SiteRoutes registers the cached read API.
type SiteRoutes struct {
	reader SiteReader
	cache  *site.Cache
	log    *slog.Logger
}

func NewSiteRoutes(reader SiteReader, cache *site.Cache, logger *slog.Logger) *SiteRoutes {
	if logger == nil {
		logger = slog.Default()
	}
	return &SiteRoutes{reader: reader, cache: cache, log: logger.With("component", "site_api")}
}

// RegisterRoutes registers site endpoints.
func (r *SiteRoutes) RegisterRoutes(s *echo.Echo) {
	api := s.Group("/api")

	api.GET("/members", r.serve("Failed to fetch members", []string{site.PageTeam}, func(ctx context.Context) (any, error) {
		return r.reader.ActiveMembers(ctx)
	}))
	api.GET("/management", r.serve("Failed to fetch management", []string{site.PageTeam}, func(ctx context.Context) (any, error) {
		return r.reader.ManagementTeam(ctx)
	}))
	api.GET("/alumni", r.serve("Failed to fetch alumni", []string{site.PageTeam}, func(ctx context.Context) (any, error) {
		return r.reader.Alumni(ctx)
	}))
	api.GET("/portfolio", r.serve("Failed to fetch portfolio", []string{site.PagePortfolio, site.PageTeam}, func(ctx context.Context) (any, error) {
		return r.reader.Portfolio(ctx)
	}))
	api.GET("/members-deals", r.serve("Something went wrong.", []string{site.PageTeam, site.PagePortfolio}, func(ctx context.Context) (any, error) {
		return r.reader.MembersDeals(ctx)
	}))
	api.GET("/vccc", r.handleVCCC)
}

func (r *SiteRoutes) handleVCCC(c echo.Context) error {
	office := strings.TrimSpace(c.QueryParam("office"))
	if office == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "office is required"})
	}
	key := c.Path() + "?office=" + url.QueryEscape(office)
	return r.respond(c, key, "Failed to fetch VCCC data", []string{site.PageVCCC}, func(ctx context.Context) (any, error) {
		return r.reader.VCCC(ctx, office)
	})
}

func (r *SiteRoutes) serve(failure string, tags []string, build func(context.Context) (any, error)) echo.HandlerFunc {
	return func(c echo.Context) error {
		return r.respond(c, c.Path(), failure, tags, build)
	}
}

// respond serves the cached document under key, building it on a miss.
func (r *SiteRoutes) respond(c echo.Context, key, failure string, tags []string, build func(context.Context) (any, error)) error {
	ctx := c.Request().Context()
	load := func(ctx context.Context) ([]byte, error) {
		value, err := build(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(value)
	}

	var (
		body []byte
		hit  bool
		err  error
	)
	if r.cache != nil {
		body, hit, err = r.cache.GetOrLoad(ctx, key, tags, load)
	} else {
		body, err = load(ctx)
	}
	if err != nil {
		r.log.ErrorContext(ctx, "site document failed", "route", key, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": failure})
	}

	c.Response().Header().Set("Cache-Control", siteCacheControl)
	if hit {
		c.Response().Header().Set("X-Cache", "HIT")
	} else {
		c.Response().Header().Set("X-Cache", "MISS")
	}
	return c.JSONBlob(http.StatusOK, body)
}
