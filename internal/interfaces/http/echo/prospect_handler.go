package echo

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	app "github.com/mohammadpnp/prospect-import/internal/application/prospect"
)

type ProspectHandler struct {
	progress app.GetImportProgress
	list     app.ListProspects
}

func NewProspectHandler(progress app.GetImportProgress, list app.ListProspects) *ProspectHandler {
	return &ProspectHandler{progress: progress, list: list}
}

func (h *ProspectHandler) GetImportProgress(c echo.Context) error {
	fileID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return writeError(c, http.StatusBadRequest, "invalid_file_id", "id must be an integer")
	}

	out, err := h.progress.Execute(c.Request().Context(), app.GetImportProgressInput{
		CallerID: callerID(c),
		FileID:   fileID,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrUnauthorized):
			return unauthorized(c)
		case errors.Is(err, app.ErrForbidden):
			return writeError(c, http.StatusForbidden, "forbidden", "file belongs to another user")
		case errors.Is(err, app.ErrNotFound):
			return writeError(c, http.StatusNotFound, "not_found", "import file not found")
		}
		return writeError(c, http.StatusInternalServerError, "internal_error", "failed to get import progress")
	}

	return c.JSON(http.StatusOK, apiResponse{Data: out})
}

func (h *ProspectHandler) ListProspects(c echo.Context) error {
	page, err := queryInt(c, "page")
	if err != nil {
		return writeError(c, http.StatusBadRequest, "bad_request", "page must be an integer")
	}
	pageSize, err := queryInt(c, "page_size")
	if err != nil {
		return writeError(c, http.StatusBadRequest, "bad_request", "page_size must be an integer")
	}

	out, err := h.list.Execute(c.Request().Context(), app.ListProspectsInput{
		CallerID: callerID(c),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		if errors.Is(err, app.ErrUnauthorized) {
			return unauthorized(c)
		}
		return writeError(c, http.StatusInternalServerError, "internal_error", "failed to list prospects")
	}

	return c.JSON(http.StatusOK, apiResponse{Data: out})
}

func queryInt(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
