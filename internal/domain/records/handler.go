package records

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
	api.POST("/records", h.CreateRecord)
	api.GET("/records/:id", h.GetRecord)
	api.PUT("/records/:id", h.UpdateRecord)
	api.GET("/records/:id/files", h.ListRecordFiles)
	api.GET("/patients/:id/records", h.ListPatientRecords)
}

func (h *Handler) actor(c echo.Context) (Actor, error) {
	ctx := c.Request().Context()
	userID, err := uuid.Parse(auth.UserIDFromContext(ctx))
	if err != nil {
		return Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "invalid user id")
	}
	actor, err := h.svc.ResolveActor(ctx, userID, auth.RoleFromContext(ctx))
	if err != nil {
		return Actor{}, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return actor, nil
}

func (h *Handler) CreateRecord(c echo.Context) error {
	actor, err := h.actor(c)
	if err != nil {
		return err
	}
	var rec MedicalRecord
	if err := c.Bind(&rec); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec.OwnerPrimaryID = actor.UserID
	if actor.DoctorID != nil && rec.DoctorID == nil {
		rec.DoctorID = actor.DoctorID
	}
	if err := h.svc.CreateRecord(c.Request().Context(), &rec); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) GetRecord(c echo.Context) error {
	actor, err := h.actor(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rec, err := h.svc.GetRecord(c.Request().Context(), actor, id)
	if err != nil {
		return mapAccessErr(err, "record not found")
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) UpdateRecord(c echo.Context) error {
	actor, err := h.actor(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var rec MedicalRecord
	if err := c.Bind(&rec); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec.ID = id
	if err := h.svc.UpdateRecord(c.Request().Context(), actor, &rec); err != nil {
		return mapAccessErr(err, "record not found")
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) ListRecordFiles(c echo.Context) error {
	actor, err := h.actor(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	files, err := h.svc.ListRecordFiles(c.Request().Context(), actor, id)
	if err != nil {
		return mapAccessErr(err, "record not found")
	}
	return c.JSON(http.StatusOK, files)
}

func (h *Handler) ListPatientRecords(c echo.Context) error {
	actor, err := h.actor(c)
	if err != nil {
		return err
	}
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPatientRecords(c.Request().Context(), actor, patientID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func mapAccessErr(err error, notFoundMsg string) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, notFoundMsg)
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "access denied")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
