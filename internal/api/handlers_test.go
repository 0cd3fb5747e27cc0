package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/axellelanca/shortly/internal/cache"
	"github.com/axellelanca/shortly/internal/identity"
	"github.com/axellelanca/shortly/internal/models"
	"github.com/axellelanca/shortly/internal/ratelimit"
	"github.com/axellelanca/shortly/internal/repository"
	"github.com/axellelanca/shortly/internal/services"
)

const testAdminToken = "test-admin-token"

// newTestRouter wires the full HTTP stack over an in-memory database, with no
// Redis: the existence cache falls through to the store and rate limiting runs
// in process.
func newTestRouter(t *testing.T, limits ratelimit.Limits) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.Link{}, &models.Click{}))

	linkRepo := repository.NewLinkRepository(db)
	clickRepo := repository.NewClickRepository(db)
	existence := cache.NewExistence(nil, linkRepo, 0)
	linkService := services.NewLinkService(linkRepo, clickRepo, existence)

	router := gin.New()
	SetupRoutes(router, Deps{
		LinkService: linkService,
		Limiter:     ratelimit.NewMemoryLimiter(limits),
		Identity:    identity.NewHeaderProvider(testAdminToken),
		BaseURL:     "http://localhost:8080",
		BufferSize:  64,
	})
	return router
}

func doJSON(router *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			panic(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func asUser(id string) map[string]string {
	return map[string]string{"X-User-Id": id}
}

func asAdmin() map[string]string {
	return map[string]string{"Authorization": "Bearer " + testAdminToken}
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doJSON(router, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeBody(t, w)["status"])
}

func TestCreateLinkRequiresIdentity(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doJSON(router, http.MethodPost, "/api/v1/links",
		gin.H{"target_url": "https://example.com"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateAndRedirect(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doJSON(router, http.MethodPost, "/api/v1/links",
		gin.H{"target_url": "https://example.com/page", "custom_alias": "My Page!"}, asUser("alice"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decodeBody(t, w)
	assert.Equal(t, "my-page", body["alias"])
	assert.Equal(t, "http://localhost:8080/my-page", body["short_url"])

	w = doJSON(router, http.MethodGet, "/my-page", nil, nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://example.com/page", w.Header().Get("Location"))
}

func TestCreateLinkValidationResponses(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doJSON(router, http.MethodPost, "/api/v1/links",
		gin.H{"target_url": "notaurl"}, asUser("alice"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPost, "/api/v1/links",
		gin.H{"target_url": "https://example.com", "custom_alias": "1234"}, asUser("alice"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeBody(t, w)["error"], "numbers")

	w = doJSON(router, http.MethodPost, "/api/v1/links", gin.H{}, asUser("alice"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateLinkAliasConflict(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doJSON(router, http.MethodPost, "/api/v1/links",
		gin.H{"target_url": "https://example.com", "custom_alias": "claimed"}, asUser("alice"))
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(router, http.MethodPost, "/api/v1/links",
		gin.H{"target_url": "https://other.example", "custom_alias": "claimed"}, asUser("bob"))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRedirectUnknownAlias(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doJSON(router, http.MethodGet, "/no-such-alias", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRateLimitShortenTier(t *testing.T) {
	router := newTestRouter(t, ratelimit.Limits{ratelimit.TierShorten: 2})

	client := map[string]string{"X-User-Id": "alice", "X-Forwarded-For": "203.0.113.7"}

	for i := 0; i < 2; i++ {
		w := doJSON(router, http.MethodPost, "/api/v1/links",
			gin.H{"target_url": fmt.Sprintf("https://example.com/%d", i)}, client)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := doJSON(router, http.MethodPost, "/api/v1/links",
		gin.H{"target_url": "https://example.com/over"}, client)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// A different client still has its own budget.
	other := map[string]string{"X-User-Id": "alice", "X-Forwarded-For": "198.51.100.9"}
	w = doJSON(router, http.MethodPost, "/api/v1/links",
		gin.H{"target_url": "https://example.com/fresh"}, other)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestStatusEndpointPausesRedirects(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doJSON(router, http.MethodPost, "/api/v1/links",
		gin.H{"target_url": "https://example.com", "custom_alias": "pausable"}, asUser("alice"))
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(router, http.MethodPatch, "/api/v1/links/pausable/status",
		gin.H{"status": "paused"}, asUser("alice"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "paused", decodeBody(t, w)["status"])

	w = doJSON(router, http.MethodGet, "/pausable", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(router, http.MethodPatch, "/api/v1/links/pausable/status",
		gin.H{"status": "ACTIVE"}, asUser("alice"))
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/pausable", nil, nil)
	assert.Equal(t, http.StatusFound, w.Code)
}

func TestStatusEndpointRejectsUnknownStatus(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doJSON(router, http.MethodPost, "/api/v1/links",
		gin.H{"target_url": "https://example.com", "custom_alias": "typo-target"}, asUser("alice"))
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(router, http.MethodPatch, "/api/v1/links/typo-target/status",
		gin.H{"status": "SLEEPING"}, asUser("alice"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEditOwnership(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doJSON(router, http.MethodPost, "/api/v1/links",
		gin.H{"target_url": "https://example.com", "custom_alias": "owned"}, asUser("alice"))
	require.Equal(t, http.StatusCreated, w.Code)

	patch := gin.H{"target_url": "https://example.com/v2"}

	w = doJSON(router, http.MethodPatch, "/api/v1/links/owned", patch, asUser("bob"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(router, http.MethodPatch, "/api/v1/links/owned", patch, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(router, http.MethodPatch, "/api/v1/links/owned", patch, asAdmin())
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodPatch, "/api/v1/links/owned",
		gin.H{"alias": "renamed"}, asUser("alice"))
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/renamed", nil, nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://example.com/v2", w.Header().Get("Location"))
}

func TestDeleteLinkEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doJSON(router, http.MethodPost, "/api/v1/links",
		gin.H{"target_url": "https://example.com", "custom_alias": "doomed"}, asUser("alice"))
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(router, http.MethodDelete, "/api/v1/links/doomed", nil, asUser("bob"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(router, http.MethodDelete, "/api/v1/links/doomed", nil, asUser("alice"))
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/doomed", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(router, http.MethodDelete, "/api/v1/links/doomed", nil, asUser("alice"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListAndSearchEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	for _, l := range []gin.H{
		{"target_url": "https://blog.golang.org", "custom_alias": "go-blog"},
		{"target_url": "https://example.com", "custom_alias": "plain"},
	} {
		w := doJSON(router, http.MethodPost, "/api/v1/links", l, asUser("alice"))
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := doJSON(router, http.MethodGet, "/api/v1/links", nil, asUser("alice"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decodeBody(t, w)["total"])

	w = doJSON(router, http.MethodGet, "/api/v1/links?q=go-b", nil, asUser("alice"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decodeBody(t, w)["total"])

	// Other owners never see alice's links.
	w = doJSON(router, http.MethodGet, "/api/v1/links", nil, asUser("bob"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, decodeBody(t, w)["total"])
}

func TestStatsEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doJSON(router, http.MethodPost, "/api/v1/links",
		gin.H{"target_url": "https://example.com", "custom_alias": "tracked"}, asUser("alice"))
	require.Equal(t, http.StatusCreated, w.Code)

	for i := 0; i < 3; i++ {
		w = doJSON(router, http.MethodGet, "/tracked", nil, nil)
		require.Equal(t, http.StatusFound, w.Code)
	}

	w = doJSON(router, http.MethodGet, "/api/v1/links/tracked/stats", nil, asUser("alice"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 3, decodeBody(t, w)["total_clicks"])

	w = doJSON(router, http.MethodGet, "/api/v1/links/tracked/stats", nil, asUser("bob"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(router, http.MethodGet, "/api/v1/links/tracked/stats", nil, asAdmin())
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCacheStatsAdminOnly(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doJSON(router, http.MethodGet, "/api/v1/cache/stats", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(router, http.MethodGet, "/api/v1/cache/stats", nil, asUser("alice"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(router, http.MethodGet, "/api/v1/cache/stats", nil, asAdmin())
	assert.Equal(t, http.StatusOK, w.Code)
}
