package remittance

import (
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medbill/edi-gateway/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/remittances/ingest", h.Ingest)
	api.GET("/remittances", h.List)
	api.GET("/remittances/:id", h.Get)
}

// Ingest accepts a raw 835 file in the request body for partners whose
// remittances arrive out of band.
func (h *Handler) Ingest(c echo.Context) error {
	partnerID, err := uuid.Parse(c.QueryParam("partner_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid partner_id")
	}
	fileName := c.QueryParam("file_name")
	if fileName == "" {
		fileName = "upload.edi"
	}
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, 16<<20))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(payload) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "empty remittance file")
	}
	r, err := h.svc.ProcessFile(c.Request().Context(), partnerID, fileName, payload)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	r, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "remittance not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) List(c echo.Context) error {
	partnerID, err := uuid.Parse(c.QueryParam("partner_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid partner_id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), partnerID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
