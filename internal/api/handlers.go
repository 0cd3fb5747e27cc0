// Package api wires the HTTP surface: routing, rate-limit admission,
// identity resolution, and the mapping from service errors to status codes.
package api

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/axellelanca/shortly/internal/cache"
	apperrors "github.com/axellelanca/shortly/internal/errors"
	"github.com/axellelanca/shortly/internal/identity"
	"github.com/axellelanca/shortly/internal/models"
	"github.com/axellelanca/shortly/internal/ratelimit"
	"github.com/axellelanca/shortly/internal/services"
)

// ClickEventsChannel carries click events from the redirect handler to the
// worker pool. Enqueueing never blocks: a full buffer drops the event rather
// than delaying the user's redirect.
var ClickEventsChannel chan models.ClickEvent

const currentUserKey = "currentUser"

// Deps groups everything the routes need.
type Deps struct {
	LinkService *services.LinkService
	Limiter     ratelimit.Limiter
	Identity    identity.Provider
	BaseURL     string
	BufferSize  int
}

// SetupRoutes configures all Gin routes and middleware.
func SetupRoutes(router *gin.Engine, deps Deps) {
	if ClickEventsChannel == nil {
		ClickEventsChannel = make(chan models.ClickEvent, deps.BufferSize)
	}

	router.GET("/health", HealthCheckHandler)

	api := router.Group("/api/v1", IdentityMiddleware(deps.Identity))
	{
		api.POST("/links",
			RateLimitMiddleware(deps.Limiter, ratelimit.TierShorten),
			CreateLinkHandler(deps.LinkService, deps.BaseURL))
		api.GET("/links",
			RateLimitMiddleware(deps.Limiter, ratelimit.TierSearch),
			ListLinksHandler(deps.LinkService))
		api.GET("/links/:key/stats",
			RateLimitMiddleware(deps.Limiter, ratelimit.TierGeneral),
			GetLinkStatsHandler(deps.LinkService))
		api.PATCH("/links/:key",
			RateLimitMiddleware(deps.Limiter, ratelimit.TierGeneral),
			EditLinkHandler(deps.LinkService))
		api.PATCH("/links/:key/status",
			RateLimitMiddleware(deps.Limiter, ratelimit.TierGeneral),
			UpdateStatusHandler(deps.LinkService))
		api.DELETE("/links/:key",
			RateLimitMiddleware(deps.Limiter, ratelimit.TierGeneral),
			DeleteLinkHandler(deps.LinkService))
		api.GET("/cache/stats",
			RateLimitMiddleware(deps.Limiter, ratelimit.TierAdmin),
			CacheStatsHandler(deps.LinkService))
	}

	// Public redirect route at root level (e.g. localhost:8080/abc123).
	router.GET("/:shortID",
		RateLimitMiddleware(deps.Limiter, ratelimit.TierRedirect),
		RedirectHandler(deps.LinkService))
}

// clientIdentifier keys rate-limit windows: first hop of X-Forwarded-For if
// the proxy set it, otherwise the peer address.
func clientIdentifier(c *gin.Context) string {
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "anonymous"
}

// RateLimitMiddleware rejects requests over the tier's budget with 429.
func RateLimitMiddleware(limiter ratelimit.Limiter, tier ratelimit.Tier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Admit(c.Request.Context(), clientIdentifier(c), tier) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": apperrors.ErrRateLimited.Error()})
			return
		}
		c.Next()
	}
}

// IdentityMiddleware resolves the requesting principal, if any, into the
// request context. It never rejects: endpoints decide whether they need one.
func IdentityMiddleware(provider identity.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := provider.CurrentUser(c.Request)
		if err != nil {
			log.Printf("identity: error resolving user: %v", err)
		}
		if user != nil {
			c.Set(currentUserKey, user)
		}
		c.Next()
	}
}

// currentUser retrieves the principal stored by IdentityMiddleware.
func currentUser(c *gin.Context) *identity.User {
	if v, ok := c.Get(currentUserKey); ok {
		if u, ok := v.(*identity.User); ok {
			return u
		}
	}
	return nil
}

// respondError translates service errors into HTTP responses.
func respondError(c *gin.Context, err error) {
	var validationErr *apperrors.ValidationError

	switch {
	case errors.Is(err, apperrors.ErrLinkNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Link not found"})
	case errors.Is(err, apperrors.ErrAliasTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "Alias already exists"})
	case errors.Is(err, apperrors.ErrAliasGenerationFailed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Unable to generate unique alias. Please try again later."})
	case errors.Is(err, apperrors.ErrInvalidURL):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid URL format"})
	case errors.Is(err, apperrors.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
	case errors.Is(err, apperrors.ErrNotAuthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Reason})
	default:
		log.Printf("internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// HealthCheckHandler reports service liveness for load balancers.
func HealthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CreateLinkRequest is the JSON body for shortening a URL.
type CreateLinkRequest struct {
	TargetURL   string `json:"target_url" binding:"required"`
	CustomAlias string `json:"custom_alias"`
}

// CreateLinkHandler shortens a URL for the authenticated user.
func CreateLinkHandler(linkService *services.LinkService, baseURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		if user == nil {
			respondError(c, apperrors.ErrNotAuthenticated)
			return
		}

		var req CreateLinkRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}

		link, err := linkService.CreateLink(c.Request.Context(), req.TargetURL, user.ID, req.CustomAlias)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"id":         link.ID,
			"alias":      link.ShortID,
			"target_url": link.TargetURL,
			"short_url":  baseURL + "/" + link.ShortID,
		})
	}
}

// RedirectHandler is the public hot path: resolve the alias and send the
// visitor on, queuing a click event for the analytics workers.
func RedirectHandler(linkService *services.LinkService) gin.HandlerFunc {
	return func(c *gin.Context) {
		shortID := c.Param("shortID")

		link, err := linkService.ResolveRedirect(c.Request.Context(), shortID)
		if err != nil {
			// Absent, paused and store failure all answer the same way here.
			c.JSON(http.StatusNotFound, gin.H{"error": "Short URL not found"})
			return
		}

		clickEvent := models.ClickEvent{
			LinkID:    link.ID,
			Timestamp: time.Now(),
			UserAgent: c.GetHeader("User-Agent"),
			IPAddress: c.ClientIP(),
		}

		select {
		case ClickEventsChannel <- clickEvent:
		default:
			log.Printf("WARNING: ClickEventsChannel is full, dropping click event for %s", shortID)
		}

		c.Redirect(http.StatusFound, link.TargetURL)
	}
}

// linkJSON is the representation returned by the management endpoints.
func linkJSON(link *models.Link) gin.H {
	return gin.H{
		"id":         link.ID,
		"alias":      link.ShortID,
		"target_url": link.TargetURL,
		"owner_id":   link.OwnerID,
		"clicks":     link.Clicks,
		"status":     link.Status,
		"created_at": link.CreatedAt.Format(time.RFC3339),
	}
}

// ListLinksHandler returns the requester's links, optionally filtered by ?q=.
func ListLinksHandler(linkService *services.LinkService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		if user == nil {
			respondError(c, apperrors.ErrNotAuthenticated)
			return
		}

		var (
			links []models.Link
			err   error
		)
		if q := c.Query("q"); q != "" {
			links, err = linkService.SearchLinks(c.Request.Context(), user.ID, q)
		} else {
			links, err = linkService.ListLinks(c.Request.Context(), user.ID)
		}
		if err != nil {
			respondError(c, err)
			return
		}

		out := make([]gin.H, 0, len(links))
		for i := range links {
			out = append(out, linkJSON(&links[i]))
		}
		c.JSON(http.StatusOK, gin.H{"links": out, "total": len(out)})
	}
}

// GetLinkStatsHandler returns the link and its click analytics. Owners see
// their own links; admins see any.
func GetLinkStatsHandler(linkService *services.LinkService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		if user == nil {
			respondError(c, apperrors.ErrNotAuthenticated)
			return
		}

		link, recorded, err := linkService.GetLinkStats(c.Request.Context(), c.Param("key"))
		if err != nil {
			respondError(c, err)
			return
		}
		if link.OwnerID != user.ID && !user.IsAdmin() {
			respondError(c, apperrors.ErrForbidden)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"alias":           link.ShortID,
			"target_url":      link.TargetURL,
			"total_clicks":    link.Clicks,
			"recorded_clicks": recorded,
			"status":          link.Status,
			"created_at":      link.CreatedAt.Format(time.RFC3339),
		})
	}
}

// EditLinkRequest is the JSON body for the general edit endpoint. Omitted
// fields stay unchanged.
type EditLinkRequest struct {
	TargetURL *string `json:"target_url"`
	Alias     *string `json:"alias"`
	Status    *string `json:"status"`
}

func statusFromString(raw string) (models.LinkStatus, bool) {
	switch strings.ToUpper(raw) {
	case string(models.StatusActive):
		return models.StatusActive, true
	case string(models.StatusPaused):
		return models.StatusPaused, true
	}
	return "", false
}

// EditLinkHandler updates target URL, alias and/or status of the link
// addressed by :key (alias or internal id).
func EditLinkHandler(linkService *services.LinkService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req EditLinkRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}

		patch := models.LinkPatch{
			TargetURL: req.TargetURL,
			ShortID:   req.Alias,
		}
		if req.Status != nil {
			status, ok := statusFromString(*req.Status)
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
				return
			}
			patch.Status = &status
		}

		link, err := linkService.EditLink(c.Request.Context(), c.Param("key"), patch, currentUser(c))
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Link updated successfully", "link": linkJSON(link)})
	}
}

// UpdateStatusRequest is the JSON body for the status-only endpoint.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateStatusHandler flips a link between ACTIVE and PAUSED.
func UpdateStatusHandler(linkService *services.LinkService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}

		status, ok := statusFromString(req.Status)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
			return
		}

		link, err := linkService.EditLink(c.Request.Context(), c.Param("key"),
			models.LinkPatch{Status: &status}, currentUser(c))
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Status updated", "status": strings.ToLower(string(link.Status))})
	}
}

// DeleteLinkHandler removes the link addressed by :key.
func DeleteLinkHandler(linkService *services.LinkService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := linkService.DeleteLink(c.Request.Context(), c.Param("key"), currentUser(c)); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Link deleted successfully"})
	}
}

// CacheStatsHandler exposes existence-cache diagnostics to admins.
func CacheStatsHandler(linkService *services.LinkService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		if user == nil {
			respondError(c, apperrors.ErrNotAuthenticated)
			return
		}
		if !user.IsAdmin() {
			respondError(c, apperrors.ErrForbidden)
			return
		}

		stats, err := linkService.CacheStats(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get cache stats"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"cache": gin.H{
				"totalKeys":   stats.TotalKeys,
				"memoryUsage": stats.MemoryUsage,
				"keyPrefix":   cache.KeyPrefix,
			},
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}
