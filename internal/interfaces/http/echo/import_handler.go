package echo

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	app "github.com/mohammadpnp/prospect-import/internal/application/prospect"
	domain "github.com/mohammadpnp/prospect-import/internal/domain/prospect"
)

type ImportHandler struct {
	useCase app.StartImport
}

func NewImportHandler(useCase app.StartImport) *ImportHandler {
	return &ImportHandler{useCase: useCase}
}

func (h *ImportHandler) ImportProspects(c echo.Context) error {
	caller := callerID(c)
	if caller <= 0 {
		return unauthorized(c)
	}

	opts, err := parseImportForm(c)
	if err != nil {
		return writeError(c, http.StatusBadRequest, "bad_request", err.Error())
	}

	header, err := c.FormFile("file")
	if err != nil {
		return writeError(c, http.StatusBadRequest, "bad_request", "file is required")
	}
	file, err := header.Open()
	if err != nil {
		return writeError(c, http.StatusBadRequest, "bad_request", "file could not be read")
	}
	defer file.Close()

	out, err := h.useCase.Execute(c.Request().Context(), app.StartImportInput{
		OwnerID:  caller,
		FileName: header.Filename,
		File:     file,
		Mapping:  opts.Mapping,
		Force:    opts.Force,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrUnauthorized):
			return unauthorized(c)
		case errors.Is(err, app.ErrInvalidColumnMapping):
			return writeError(c, http.StatusBadRequest, "invalid_column_mapping", err.Error())
		case errors.Is(err, app.ErrUploadRejected):
			return writeError(c, http.StatusBadRequest, "upload_rejected", "file has no data rows")
		}
		return writeError(c, http.StatusInternalServerError, "internal_error", "failed to start import")
	}

	return c.JSON(http.StatusOK, apiResponse{Data: out})
}

func parseImportForm(c echo.Context) (domain.ImportOptions, error) {
	raw := c.FormValue("email_index")
	if raw == "" {
		return domain.ImportOptions{}, errors.New("email_index is required")
	}
	emailIndex, err := strconv.Atoi(raw)
	if err != nil {
		return domain.ImportOptions{}, errors.New("email_index must be an integer")
	}

	firstNameIndex, err := formInt(c, "first_name_index", -1)
	if err != nil {
		return domain.ImportOptions{}, err
	}
	lastNameIndex, err := formInt(c, "last_name_index", -1)
	if err != nil {
		return domain.ImportOptions{}, err
	}
	force, err := formBool(c, "force", false)
	if err != nil {
		return domain.ImportOptions{}, err
	}
	hasHeaders, err := formBool(c, "has_headers", true)
	if err != nil {
		return domain.ImportOptions{}, err
	}

	return domain.ImportOptions{
		Mapping: domain.ColumnMapping{
			EmailIndex:     emailIndex,
			FirstNameIndex: firstNameIndex,
			LastNameIndex:  lastNameIndex,
			HasHeaders:     hasHeaders,
		},
		Force: force,
	}, nil
}

func formInt(c echo.Context, name string, fallback int) (int, error) {
	raw := c.FormValue(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}

func formBool(c echo.Context, name string, fallback bool) (bool, error) {
	raw := c.FormValue(name)
	if raw == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean", name)
	}
	return b, nil
}
