package analysis

import (
	"VisionAnalytica/pkg/response"
	"net/http"
)

var (
	ErrBadRequest         = response.NewError(http.StatusBadRequest, "bad request")
	ErrUnexpectedResult   = response.NewError(http.StatusInternalServerError, "provider returned an unexpected result shape")
	ErrInvalidDisplaySize = response.NewError(http.StatusBadRequest, "display_width and display_height must both be positive")
	ErrOverlayFailed      = response.NewError(http.StatusUnprocessableEntity, "overlay could not be rendered for this image")
)
