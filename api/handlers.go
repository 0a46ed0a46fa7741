package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chxlky/trello-citydash/integrations"
	"github.com/chxlky/trello-citydash/internal/auth"
	"github.com/chxlky/trello-citydash/internal/cache"
	"github.com/chxlky/trello-citydash/internal/dashboard"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CacheHeader reports whether a response was served fresh, computed or stale.
const CacheHeader = "X-Cache"

type SnapshotLoader interface {
	Load(ctx context.Context) (*dashboard.Snapshot, cache.Status, error)
	Invalidate(ctx context.Context) error
}

type Handler struct {
	Snapshots SnapshotLoader
	Sessions  *auth.Manager
	Logger    *zap.Logger
}

func (h *Handler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

func (h *Handler) HealthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type loginRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
	From     string `form:"from" json:"from"`
}

// LoginHandler accepts a form post (answered with redirects) or a JSON body
// (answered with JSON).
func (h *Handler) LoginHandler(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid login payload"})
		return
	}
	username := strings.TrimSpace(req.Username)
	password := strings.TrimSpace(req.Password)
	from := auth.SanitizeRedirectPath(strings.TrimSpace(req.From))
	wantsJSON := c.ContentType() == gin.MIMEJSON

	if !h.Sessions.CheckCredentials(username, password) {
		h.logger().Warn("Rejected login", zap.String("username", username), zap.String("ip", c.ClientIP()))
		if wantsJSON {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		q := url.Values{"error": {"1"}}
		if from != "/" {
			q.Set("from", from)
		}
		c.Redirect(http.StatusSeeOther, "/login?"+q.Encode())
		return
	}

	token, err := h.Sessions.Issue(username)
	if err != nil {
		h.logger().Error("Failed to issue session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create session"})
		return
	}
	h.Sessions.SetCookie(c, token)

	if wantsJSON {
		c.JSON(http.StatusOK, gin.H{"ok": true, "redirect": from})
		return
	}
	c.Redirect(http.StatusSeeOther, from)
}

func (h *Handler) LogoutHandler(c *gin.Context) {
	h.Sessions.ClearCookie(c)
	if c.ContentType() == gin.MIMEJSON {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}
	c.Redirect(http.StatusSeeOther, "/login")
}

func (h *Handler) load(c *gin.Context) (*dashboard.Snapshot, bool) {
	snap, status, err := h.Snapshots.Load(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return nil, false
	}
	c.Header(CacheHeader, string(status))
	return snap, true
}

// DashboardHandler serves the snapshot, narrowed by the optional q, designer,
// filter and city query parameters.
func (h *Handler) DashboardHandler(c *gin.Context) {
	quick, err := dashboard.ParseQuickFilter(c.Query("filter"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	query := dashboard.Query{
		Text:     c.Query("q"),
		Designer: c.Query("designer"),
		Quick:    quick,
		City:     c.Query("city"),
	}

	snap, ok := h.load(c)
	if !ok {
		return
	}
	if query.IsZero() {
		c.JSON(http.StatusOK, snap)
		return
	}

	view := dashboard.Filter(snap, query)
	filtered := *snap
	filtered.Cities = view.Cities
	filtered.Totals = view.Totals
	filtered.LabelCounters = view.LabelCounters
	c.JSON(http.StatusOK, &filtered)
}

type cityEntry struct {
	City   string             `json:"city"`
	Source dashboard.CityMode `json:"source"`
	Stats  dashboard.Stats    `json:"stats"`
}

func (h *Handler) CitiesHandler(c *gin.Context) {
	snap, ok := h.load(c)
	if !ok {
		return
	}
	cities := make([]cityEntry, 0, len(snap.Cities))
	for _, city := range snap.Cities {
		cities = append(cities, cityEntry{City: city.City, Source: city.Source, Stats: city.Stats})
	}
	c.JSON(http.StatusOK, gin.H{"cities": cities, "totals": snap.Totals})
}

func (h *Handler) CityHandler(c *gin.Context) {
	snap, ok := h.load(c)
	if !ok {
		return
	}
	city, found := snap.City(c.Param("city"))
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "city not found"})
		return
	}
	c.JSON(http.StatusOK, city)
}

type galleryItem struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	URL           string `json:"url"`
	CoverImageURL string `json:"coverImageUrl"`
	IsUndefined   bool   `json:"isUndefined"`
}

// GalleryHandler lists the covers of one city, the first city when none is asked for.
func (h *Handler) GalleryHandler(c *gin.Context) {
	snap, ok := h.load(c)
	if !ok {
		return
	}

	names := make([]string, 0, len(snap.Cities))
	for _, city := range snap.Cities {
		names = append(names, city.City)
	}
	name := c.Query("city")
	if name == "" && len(names) > 0 {
		name = names[0]
	}
	city, found := snap.City(name)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "city not found", "cities": names})
		return
	}

	items := make([]galleryItem, 0, len(city.Designs))
	for _, d := range city.Designs {
		if d.CoverImageURL == nil {
			continue
		}
		items = append(items, galleryItem{
			ID:            d.ID,
			Name:          d.Name,
			URL:           d.URL,
			CoverImageURL: *d.CoverImageURL,
			IsUndefined:   d.IsUndefined,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"city":           city.City,
		"cities":         names,
		"designs":        len(city.Designs),
		"undefinedCount": city.Stats.UndefinedCount,
		"covers":         items,
	})
}

// RefreshHandler expires the cached snapshot; the next read rebuilds it.
func (h *Handler) RefreshHandler(c *gin.Context) {
	if err := h.Snapshots.Invalidate(c.Request.Context()); err != nil {
		h.logger().Error("Failed to share dashboard invalidation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "refresh was only applied to this instance"})
		return
	}
	h.logger().Info("Dashboard cache invalidated", zap.String("user", c.GetString(auth.UserKey)))
	c.JSON(http.StatusOK, gin.H{
		"ok":            true,
		"revalidatedAt": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	status := StatusForError(err)
	h.logger().Error("Failed to load dashboard", zap.Int("status", status), zap.Error(err))
	c.JSON(status, gin.H{"error": err.Error()})
}

// StatusForError maps pipeline failures to HTTP statuses.
func StatusForError(err error) int {
	var apiErr *integrations.APIError
	switch {
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	case errors.Is(err, dashboard.ErrCityConfig), errors.Is(err, dashboard.ErrCityAmbiguous):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
