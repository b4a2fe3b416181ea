package echo

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiResponse struct {
	Data  any        `json:"data,omitempty"`
	Error *errorBody `json:"error,omitempty"`
}

func writeError(c echo.Context, status int, code, message string) error {
	return c.JSON(status, apiResponse{Error: &errorBody{
		Code:    code,
		Message: message,
	}})
}

func unauthorized(c echo.Context) error {
	return writeError(c, http.StatusUnauthorized, "unauthorized", "missing or invalid caller identity")
}
