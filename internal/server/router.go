package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dochub-labs/dochub/backend/internal/adminsession"
	"github.com/dochub-labs/dochub/backend/internal/auth"
	"github.com/dochub-labs/dochub/backend/internal/catalog"
	"github.com/dochub-labs/dochub/backend/internal/icons"
	"github.com/dochub-labs/dochub/backend/internal/reconcile"
	"github.com/dochub-labs/dochub/backend/internal/stream"
	"github.com/dochub-labs/dochub/backend/internal/tablemodel"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const userIDContextKey = "dochub_user_id"

var (
	errMissingGoogleVerifier = errors.New("google verifier dependency required")
	errMissingTokenManager   = errors.New("token manager dependency required")
	errMissingIdentities     = errors.New("identity resolver dependency required")
	errMissingCatalogService = errors.New("catalog service dependency required")
	errMissingReconciler     = errors.New("reconciler dependency required")
	errMissingStream         = errors.New("stream dispatcher dependency required")
	errMissingAdminState     = errors.New("admin session store dependency required")
	errInvalidAuthorization  = errors.New("authorization header missing or invalid")
)

// GoogleVerifier validates provider ID tokens.
type GoogleVerifier interface {
	Verify(ctx context.Context, token string) (auth.GoogleClaims, error)
}

// BackendTokenManager issues and validates backend access tokens.
type BackendTokenManager interface {
	IssueBackendToken(ctx context.Context, subject string) (string, int64, error)
	ValidateToken(token string) (string, error)
}

// IdentityResolver maps verified provider claims to a canonical user id.
type IdentityResolver interface {
	ResolveCanonicalUserID(claims auth.GoogleClaims) (string, error)
}

// Dependencies wires the HTTP layer to the rest of the application.
type Dependencies struct {
	GoogleVerifier GoogleVerifier
	TokenManager   BackendTokenManager
	Identities     IdentityResolver
	Catalog        *catalog.Service
	Reconciler     *reconcile.Reconciler
	Stream         *stream.Dispatcher
	AdminState     *adminsession.Store
	Logger         *zap.Logger
}

// NewHTTPHandler builds the gin router for the API surface.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.GoogleVerifier == nil {
		return nil, errMissingGoogleVerifier
	}
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.Identities == nil {
		return nil, errMissingIdentities
	}
	if deps.Catalog == nil {
		return nil, errMissingCatalogService
	}
	if deps.Reconciler == nil {
		return nil, errMissingReconciler
	}
	if deps.Stream == nil {
		return nil, errMissingStream
	}
	if deps.AdminState == nil {
		return nil, errMissingAdminState
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	handler := &httpHandler{
		verifier:   deps.GoogleVerifier,
		tokens:     deps.TokenManager,
		identities: deps.Identities,
		catalog:    deps.Catalog,
		reconciler: deps.Reconciler,
		stream:     deps.Stream,
		adminState: deps.AdminState,
		logger:     logger,
	}

	router.POST("/auth/google", handler.handleGoogleAuth)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.POST("/auth/logout", handler.handleLogout)
	protected.GET("/admin/mode", handler.handleGetAdminMode)
	protected.PUT("/admin/mode", handler.handleSetAdminMode)
	protected.GET("/catalog/sections", handler.handleListSections)
	protected.GET("/catalog/stream", handler.handleCatalogStream)
	protected.GET("/catalog/links/:id/export.csv", handler.handleExportTableCSV)

	mutations := protected.Group("/")
	mutations.Use(handler.requireAdminMode)
	mutations.POST("/catalog/sections", handler.handleAddSection)
	mutations.PUT("/catalog/sections/:id", handler.handleUpdateSection)
	mutations.DELETE("/catalog/sections/:id", handler.handleDeleteSection)
	mutations.POST("/catalog/links", handler.handleAddResource)
	mutations.PUT("/catalog/links/:id", handler.handleUpdateResource)
	mutations.DELETE("/catalog/links/:id", handler.handleDeleteResource)

	return router, nil
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	})
}

type httpHandler struct {
	verifier   GoogleVerifier
	tokens     BackendTokenManager
	identities IdentityResolver
	catalog    *catalog.Service
	reconciler *reconcile.Reconciler
	stream     *stream.Dispatcher
	adminState *adminsession.Store
	logger     *zap.Logger
}

type authRequestPayload struct {
	IDToken string `json:"id_token"`
}

type authResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (h *httpHandler) handleGoogleAuth(c *gin.Context) {
	var request authRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.IDToken) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	claims, err := h.verifier.Verify(c.Request.Context(), request.IDToken)
	if err != nil {
		h.logger.Warn("google token verification failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	userID, err := h.identities.ResolveCanonicalUserID(claims)
	if err != nil {
		h.logger.Error("failed to resolve canonical user id", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "identity_resolution_failed"})
		return
	}

	token, expiresIn, err := h.tokens.IssueBackendToken(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to issue backend token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.JSON(http.StatusOK, authResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
	})
}

// Logout always clears the admin-mode flag, regardless of who held it.
func (h *httpHandler) handleLogout(c *gin.Context) {
	if err := h.adminState.Reset(); err != nil {
		h.logger.Warn("failed to reset admin mode on logout", zap.Error(err))
	}
	c.Status(http.StatusNoContent)
}

type adminModePayload struct {
	Enabled bool `json:"enabled"`
}

func (h *httpHandler) handleGetAdminMode(c *gin.Context) {
	c.JSON(http.StatusOK, adminModePayload{Enabled: h.adminState.Enabled()})
}

func (h *httpHandler) handleSetAdminMode(c *gin.Context) {
	var request adminModePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err := h.adminState.SetEnabled(request.Enabled); err != nil {
		h.logger.Error("failed to persist admin mode", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "admin_state_failed"})
		return
	}
	c.JSON(http.StatusOK, adminModePayload{Enabled: h.adminState.Enabled()})
}

type sectionPayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       string `json:"color"`
	IconName    string `json:"icon_name"`
}

type resourcePayload struct {
	SectionID   string             `json:"section_id"`
	Type        string             `json:"type"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Tags        []string           `json:"tags"`
	URL         string             `json:"url"`
	TableData   *catalog.TableData `json:"table_data"`
	Content     string             `json:"content"`
}

type sectionResponse struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Color       string             `json:"color"`
	IconName    string             `json:"icon_name"`
	CreatedBy   string             `json:"created_by"`
	Links       []resourceResponse `json:"links"`
}

type resourceResponse struct {
	ID          string             `json:"id"`
	SectionID   string             `json:"section_id"`
	Type        string             `json:"type"`
	Title       string             `json:"title"`
	Description string             `json:"description,omitempty"`
	Tags        []string           `json:"tags,omitempty"`
	URL         string             `json:"url,omitempty"`
	TableData   *catalog.TableData `json:"table_data,omitempty"`
	Content     string             `json:"content,omitempty"`
}

func toResourceResponse(resource catalog.Resource) resourceResponse {
	return resourceResponse{
		ID:          resource.ID,
		SectionID:   resource.SectionID,
		Type:        string(resource.Type),
		Title:       resource.Title,
		Description: resource.Description,
		Tags:        resource.Tags,
		URL:         resource.URL,
		TableData:   resource.TableData,
		Content:     resource.Content,
	}
}

func toSectionResponse(aggregate catalog.SectionAggregate) sectionResponse {
	links := make([]resourceResponse, 0, len(aggregate.Links))
	for _, link := range aggregate.Links {
		links = append(links, toResourceResponse(link))
	}
	return sectionResponse{
		ID:          aggregate.ID,
		Title:       aggregate.Title,
		Description: aggregate.Description,
		Color:       aggregate.Color,
		IconName:    icons.Resolve(aggregate.IconName),
		CreatedBy:   aggregate.CreatedBy,
		Links:       links,
	}
}

func (h *httpHandler) handleListSections(c *gin.Context) {
	aggregates, err := h.reconciler.Aggregates()
	if err != nil {
		h.logger.Warn("catalog view unavailable", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "catalog_unavailable"})
		return
	}

	aggregates = catalog.FilterAggregates(aggregates, c.Query("q"))

	response := make([]sectionResponse, 0, len(aggregates))
	for _, aggregate := range aggregates {
		response = append(response, toSectionResponse(aggregate))
	}
	c.JSON(http.StatusOK, gin.H{"sections": response})
}

func (h *httpHandler) handleAddSection(c *gin.Context) {
	var request sectionPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	userID, err := catalog.NewUserID(c.GetString(userIDContextKey))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	draft := catalog.Section{
		Title:       request.Title,
		Description: request.Description,
		Color:       request.Color,
		IconName:    icons.Resolve(request.IconName),
	}
	if draft.Color == "" {
		draft.Color = icons.DefaultColor()
	}

	section, err := h.catalog.AddSection(c.Request.Context(), draft, userID)
	if err != nil {
		h.writeCatalogError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toSectionResponse(catalog.SectionAggregate{Section: section}))
}

func (h *httpHandler) handleUpdateSection(c *gin.Context) {
	var request sectionPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	section := catalog.Section{
		ID:          c.Param("id"),
		Title:       request.Title,
		Description: request.Description,
		Color:       request.Color,
		IconName:    icons.Resolve(request.IconName),
	}
	if section.Color == "" {
		section.Color = icons.DefaultColor()
	}

	updated, err := h.catalog.UpdateSection(c.Request.Context(), section)
	if err != nil {
		h.writeCatalogError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSectionResponse(catalog.SectionAggregate{Section: updated}))
}

func (h *httpHandler) handleDeleteSection(c *gin.Context) {
	sectionID, err := catalog.NewSectionID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	if err := h.catalog.DeleteSection(c.Request.Context(), sectionID); err != nil {
		h.writeCatalogError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleAddResource(c *gin.Context) {
	var request resourcePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	userID, err := catalog.NewUserID(c.GetString(userIDContextKey))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sectionID, err := catalog.NewSectionID(request.SectionID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	draft, err := resourceFromPayload(request)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resource, err := h.catalog.AddResource(c.Request.Context(), draft, sectionID, userID)
	if err != nil {
		h.writeCatalogError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toResourceResponse(resource))
}

func (h *httpHandler) handleUpdateResource(c *gin.Context) {
	var request resourcePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	draft, err := resourceFromPayload(request)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	draft.ID = c.Param("id")

	resource, err := h.catalog.UpdateResource(c.Request.Context(), draft)
	if err != nil {
		h.writeCatalogError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResourceResponse(resource))
}

func (h *httpHandler) handleDeleteResource(c *gin.Context) {
	resourceID, err := catalog.NewResourceID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	if err := h.catalog.DeleteResource(c.Request.Context(), resourceID); err != nil {
		h.writeCatalogError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleExportTableCSV(c *gin.Context) {
	resourceID, err := catalog.NewResourceID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	resource, err := h.catalog.GetResource(c.Request.Context(), resourceID)
	if err != nil {
		h.writeCatalogError(c, err)
		return
	}
	if resource.Type != catalog.ResourceTypeTable || resource.TableData == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "not_a_table"})
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", resource.Title+".csv"))
	if err := tablemodel.ExportCSV(c.Writer, *resource.TableData); err != nil {
		h.logger.Warn("csv export aborted", zap.Error(err), zap.String("resource_id", resource.ID))
	}
}

func resourceFromPayload(payload resourcePayload) (catalog.Resource, error) {
	resourceType, err := catalog.ParseResourceType(payload.Type)
	if err != nil {
		return catalog.Resource{}, err
	}
	return catalog.Resource{
		SectionID:   payload.SectionID,
		Type:        resourceType,
		Title:       payload.Title,
		Description: payload.Description,
		Tags:        payload.Tags,
		URL:         payload.URL,
		TableData:   payload.TableData,
		Content:     payload.Content,
	}, nil
}

// writeCatalogError translates service failures into the API error taxonomy:
// validation problems are recoverable 400s, unknown documents are 404s, and
// everything else is a backend write failure that left local state untouched.
func (h *httpHandler) writeCatalogError(c *gin.Context, err error) {
	switch {
	case isValidationError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, catalog.ErrSectionNotFound), errors.Is(err, catalog.ErrResourceNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	default:
		h.logger.Error("catalog write failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "write_failed"})
	}
}

func isValidationError(err error) bool {
	return errors.Is(err, catalog.ErrTitleRequired) ||
		errors.Is(err, catalog.ErrDescriptionRequired) ||
		errors.Is(err, catalog.ErrInvalidResourceURL) ||
		errors.Is(err, catalog.ErrTableColumnsRequired) ||
		errors.Is(err, catalog.ErrNotesContentRequired) ||
		errors.Is(err, catalog.ErrUnknownResourceType) ||
		errors.Is(err, catalog.ErrMissingSectionReference) ||
		errors.Is(err, catalog.ErrInvalidSectionID) ||
		errors.Is(err, catalog.ErrInvalidResourceID)
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		// expiry is routine churn, not an operational signal.
		if errors.Is(err, jwt.ErrTokenExpired) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, subject)
	c.Next()
}

// bearerToken accepts the Authorization header, falling back to the
// access_token query parameter for EventSource clients that cannot set
// headers.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		if token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")); token != "" {
			return token
		}
	}
	return strings.TrimSpace(c.Query("access_token"))
}

func (h *httpHandler) requireAdminMode(c *gin.Context) {
	if !h.adminState.Enabled() {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin_required"})
		return
	}
	c.Next()
}
