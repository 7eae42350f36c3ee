package handler

import (
	"net/http"

	"rcms/internal/dto"
	"rcms/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type SaaSHandler struct {
	Service  *service.ProviderService
	Validate *validator.Validate
}

func NewSaaSHandler(svc *service.ProviderService, validate *validator.Validate) *SaaSHandler {
	return &SaaSHandler{Service: svc, Validate: validate}
}

func (h *SaaSHandler) Get(c echo.Context) error {
	user, err := h.Service.Get(c.Request().Context(), identityOrNil(c))
	if err != nil {
		return writeServiceError(c, err, "Internal server error")
	}
	return c.JSON(http.StatusOK, dto.SaaSProfileResponse{Success: true, Data: dto.SaaSProfileFromEntity(user)})
}

func (h *SaaSHandler) Update(c echo.Context) error {
	var req dto.SaaSUpdateRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := validate(h.Validate, req); err != nil {
		return writeError(c, http.StatusBadRequest, validationMessage(err))
	}
	user, err := h.Service.Update(c.Request().Context(), identityOrNil(c), req, requestMeta(c))
	if err != nil {
		return writeServiceError(c, err, "Internal server error")
	}
	return c.JSON(http.StatusOK, dto.SaaSProfileResponse{Success: true, Data: dto.SaaSProfileFromEntity(user)})
}
