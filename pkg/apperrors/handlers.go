package apperrors

import (
	"github.com/gin-gonic/gin"
)

// ErrorResponse is the standard error envelope
type ErrorResponse struct {
	Error *AppError `json:"error"`
}

// GinErrorHandler writes AppErrors to a gin response.
type GinErrorHandler struct {
	Debug bool
}

var defaultHandler = &GinErrorHandler{Debug: false}

// SetDebug toggles exposure of internal error messages. Set from config at startup.
func SetDebug(debug bool) {
	defaultHandler = &GinErrorHandler{Debug: debug}
}

// HandleGinError maps err to a status code and JSON body. The wrapped
// cause never reaches the client unless Debug is on. Logging is the
// caller's job.
func (h *GinErrorHandler) HandleGinError(c *gin.Context, err error) {
	appErr, ok := AsAppError(err)
	if !ok {
		appErr = InternalError(err)
	}

	if h.Debug && appErr.HTTPCode >= 500 && appErr.Err != nil && appErr.Details == nil {
		appErr = appErr.WithDetails(map[string]string{"cause": appErr.Err.Error()})
	}

	c.JSON(appErr.HTTPCode, ErrorResponse{Error: appErr})
}

// HandleError uses the process-wide handler.
func HandleError(c *gin.Context, err error) {
	defaultHandler.HandleGinError(c, err)
}

// AsAppError tries to unwrap err into *AppError
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HandleValidationError converts binding errors into our format
func HandleValidationError(c *gin.Context, err error) {
	HandleError(c, ValidationError(gin.H{"details": err.Error()}))
}
