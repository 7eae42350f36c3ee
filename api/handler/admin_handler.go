package handler

import (
	"encoding/json"
	"net/http"

	"rcms/internal/dto"
	"rcms/internal/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type AdminHandler struct {
	Service *service.AdminService
}

func NewAdminHandler(svc *service.AdminService) *AdminHandler {
	return &AdminHandler{Service: svc}
}

func (h *AdminHandler) List(c echo.Context) error {
	admins, err := h.Service.List(c.Request().Context())
	if err != nil {
		return writeServiceError(c, err, "Failed to fetch admins")
	}
	return c.JSON(http.StatusOK, dto.AdminResponsesFromEntities(admins))
}

func (h *AdminHandler) Update(c echo.Context) error {
	var payload map[string]any
	if err := json.NewDecoder(c.Request().Body).Decode(&payload); err != nil {
		return writeError(c, http.StatusBadRequest, "Invalid request body")
	}
	admin, err := h.Service.Update(c.Request().Context(), c.Param("id"), payload, actorID(c), requestMeta(c))
	if err != nil {
		return writeServiceError(c, err, "Failed to update admin")
	}
	return c.JSON(http.StatusOK, dto.AdminResponseFromEntity(admin))
}

func (h *AdminHandler) Delete(c echo.Context) error {
	if err := h.Service.Delete(c.Request().Context(), c.Param("id"), actorID(c), requestMeta(c)); err != nil {
		return writeServiceError(c, err, "Failed to delete admin")
	}
	return writeMessage(c, http.StatusOK, "Admin deleted successfully")
}

func actorID(c echo.Context) *uuid.UUID {
	identity := identityOrNil(c)
	if identity == nil {
		return nil
	}
	return &identity.UserID
}
