package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/EnowBibi/KontriVibeBackend/internal/logger"
	"github.com/EnowBibi/KontriVibeBackend/internal/middleware"
	"github.com/EnowBibi/KontriVibeBackend/internal/services"
	"github.com/EnowBibi/KontriVibeBackend/internal/validator"
	"github.com/EnowBibi/KontriVibeBackend/pkg/apperrors"
)

// ============================================================================
// 1. Base handler
// ============================================================================

type BaseHandler struct {
	validator *validator.Validator
}

func NewBaseHandler(v *validator.Validator) *BaseHandler {
	return &BaseHandler{
		validator: v,
	}
}

// ============================================================================
// 2. Binding and validation
// ============================================================================

// BindAndValidate_JSON binds the body by content type (JSON or form) and
// runs the struct validator. It writes the error response itself.
func (h *BaseHandler) BindAndValidate_JSON(c *gin.Context, obj interface{}) bool {
	ctx := c.Request.Context()

	if err := c.ShouldBind(obj); err != nil {
		logger.CtxWithError(ctx, "Failed to bind request body", err, "path", c.Request.URL.Path)
		apperrors.HandleError(c, apperrors.NewBadRequestError("Invalid request body: "+err.Error()))
		return false
	}
	return h.validate(c, obj)
}

func (h *BaseHandler) BindAndValidate_Query(c *gin.Context, obj interface{}) bool {
	ctx := c.Request.Context()

	if err := c.ShouldBindQuery(obj); err != nil {
		logger.CtxWithError(ctx, "Failed to bind query params", err, "path", c.Request.URL.Path)
		apperrors.HandleError(c, apperrors.NewBadRequestError("Invalid query parameters: "+err.Error()))
		return false
	}
	return h.validate(c, obj)
}

func (h *BaseHandler) validate(c *gin.Context, obj interface{}) bool {
	ctx := c.Request.Context()

	if err := h.validator.Validate(obj); err != nil {
		if vErr, ok := err.(*validator.ValidationError); ok {
			logger.CtxWarn(ctx, "Validation failed", "errors", vErr.Errors, "path", c.Request.URL.Path)
			apperrors.HandleError(c, apperrors.ValidationError(vErr.Errors))
		} else {
			logger.CtxWithError(ctx, "Internal validator error", err, "path", c.Request.URL.Path)
			apperrors.HandleError(c, apperrors.InternalError(err))
		}
		return false
	}
	return true
}

// ============================================================================
// 3. Service errors
// ============================================================================

// HandleServiceError logs err with the request logger and writes it.
// Server-side failures are logged as errors, client mistakes as warnings.
func (h *BaseHandler) HandleServiceError(c *gin.Context, err error) {
	ctx := c.Request.Context()

	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		logger.CtxWithError(ctx, "Internal server error", err, "path", c.Request.URL.Path)
		apperrors.HandleError(c, apperrors.InternalError(err))
		return
	}

	if appErr.HTTPCode >= 500 {
		logger.CtxWithError(ctx, "Service error", err,
			"code", appErr.Code,
			"path", c.Request.URL.Path,
		)
	} else {
		logger.CtxWarn(ctx, "Service error",
			"error", appErr.Message,
			"details", appErr.Details,
			"path", c.Request.URL.Path,
		)
	}
	apperrors.HandleError(c, appErr)
}

// ============================================================================
// 4. Caller identity
// ============================================================================

func (h *BaseHandler) GetAndAuthorizeUserID(c *gin.Context) (string, bool) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		logger.CtxWarn(c.Request.Context(), "Unauthorized access: userID not found in context",
			"path", c.Request.URL.Path,
			"ip", c.ClientIP(),
		)
		apperrors.HandleError(c, apperrors.NewUnauthorizedError("User not authenticated"))
		return "", false
	}
	return userID, true
}

// Viewer describes the caller for services that also serve anonymous
// users, with the entitlement when a middleware already resolved it.
func (h *BaseHandler) Viewer(c *gin.Context) services.Viewer {
	viewer := services.Viewer{
		UserID: middleware.GetUserID(c),
		Role:   middleware.GetRole(c),
	}
	if ent, ok := middleware.GetEntitlement(c); ok {
		viewer.Entitlement = ent
	}
	return viewer
}

// ============================================================================
// 5. Parsing
// ============================================================================

func ParseQueryInt(c *gin.Context, key string, defaultValue int) int {
	valueStr := c.Query(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// ParseQueryBool returns nil when the parameter is absent or not a bool.
func ParseQueryBool(c *gin.Context, key string) *bool {
	value, err := strconv.ParseBool(c.Query(key))
	if err != nil {
		return nil
	}
	return &value
}
