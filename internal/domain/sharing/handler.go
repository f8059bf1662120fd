package sharing

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/docere/docere/internal/platform/auth"
	"github.com/docere/docere/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/shares", h.CreateShare)
	api.GET("/shares", h.ListShares)
	api.GET("/shares/:id/records", h.ListRequestShares)
	api.POST("/shares/:id/accept", h.AcceptRequest)
	api.POST("/shares/:id/decline", h.DeclineRequest)
	api.POST("/record-shares/:id/accept", h.AcceptShare)
	api.POST("/record-shares/:id/decline", h.DeclineShare)
}

type createShareRequest struct {
	PatientID uuid.UUID   `json:"patient_id"`
	ToEmail   string      `json:"to_email"`
	RecordIDs []uuid.UUID `json:"record_ids"`
}

type createShareResponse struct {
	Request *ShareRequest  `json:"request"`
	Shares  []*RecordShare `json:"shares"`
}

func (h *Handler) CreateShare(c echo.Context) error {
	userID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid user id")
	}
	var body createShareRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	req, shares, err := h.svc.CreateShare(c.Request().Context(), userID, body.PatientID, body.ToEmail, body.RecordIDs)
	if err != nil {
		var notAllowed *RecordsNotAllowedError
		if errors.As(err, &notAllowed) {
			return c.JSON(http.StatusForbidden, map[string]interface{}{
				"error":      "records not allowed",
				"record_ids": notAllowed.RecordIDs,
			})
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, createShareResponse{Request: req, Shares: shares})
}

func (h *Handler) ListShares(c echo.Context) error {
	userID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid user id")
	}
	pg := pagination.FromContext(c)

	var items []*ShareRequest
	var total int
	if c.QueryParam("direction") == "outgoing" {
		items, total, err = h.svc.ListOutgoing(c.Request().Context(), userID, pg.Limit, pg.Offset)
	} else {
		items, total, err = h.svc.ListIncoming(c.Request().Context(), userID, pg.Limit, pg.Offset)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListRequestShares(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	shares, err := h.svc.ListRequestShares(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, shares)
}

func (h *Handler) AcceptRequest(c echo.Context) error {
	return h.respondToRequest(c, true)
}

func (h *Handler) DeclineRequest(c echo.Context) error {
	return h.respondToRequest(c, false)
}

func (h *Handler) respondToRequest(c echo.Context, accept bool) error {
	ctx := c.Request().Context()
	userID, err := uuid.Parse(auth.UserIDFromContext(ctx))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid user id")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	req, err := h.svc.RespondToRequest(ctx, userID, auth.RoleFromContext(ctx), id, accept)
	if err != nil {
		return mapShareErr(err)
	}
	return c.JSON(http.StatusOK, req)
}

func (h *Handler) AcceptShare(c echo.Context) error {
	return h.respondToShare(c, true)
}

func (h *Handler) DeclineShare(c echo.Context) error {
	return h.respondToShare(c, false)
}

func (h *Handler) respondToShare(c echo.Context, accept bool) error {
	ctx := c.Request().Context()
	userID, err := uuid.Parse(auth.UserIDFromContext(ctx))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid user id")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	share, err := h.svc.RespondToShare(ctx, userID, auth.RoleFromContext(ctx), id, accept)
	if err != nil {
		return mapShareErr(err)
	}
	return c.JSON(http.StatusOK, share)
}

func mapShareErr(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "share not found")
	case errors.Is(err, ErrNotRecipient):
		return echo.NewHTTPError(http.StatusForbidden, "not the share recipient")
	case errors.Is(err, ErrAlreadyResolved):
		return echo.NewHTTPError(http.StatusConflict, "share already resolved")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
