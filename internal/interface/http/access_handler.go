package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/rakaadit/go-rbac-navigation/internal/application"
	"github.com/rakaadit/go-rbac-navigation/pkg/response"
	"github.com/rakaadit/go-rbac-navigation/pkg/validation"
)

type AccessHandler struct {
	Svc    *application.AccessService
	Logger *logrus.Logger
}

func NewAccessHandler(svc *application.AccessService, logger *logrus.Logger) *AccessHandler {
	return &AccessHandler{Svc: svc, Logger: logger}
}

type roleRequest struct {
	Name     string   `json:"name" binding:"required,max=255"`
	Color    string   `json:"color" binding:"omitempty,hexcolor"`
	EntryIDs []string `json:"entries" binding:"dive,uuid"`
}

func (h *AccessHandler) ListRoles(c *gin.Context) {
	roles, err := h.Svc.ListRoles(c.Request.Context(), c.Query("search"))
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	resp := response.Success(c, http.StatusOK, roles, "roles", nil)
	c.JSON(resp.Status, resp)
}

func (h *AccessHandler) CreateRole(c *gin.Context) {
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp := response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		c.JSON(resp.Status, resp)
		return
	}
	role, err := h.Svc.CreateRole(c.Request.Context(), application.RoleInput{Name: req.Name, Color: req.Color, EntryIDs: req.EntryIDs})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	resp := response.Success(c, http.StatusCreated, role, "role created", nil)
	c.JSON(resp.Status, resp)
}

func (h *AccessHandler) UpdateRole(c *gin.Context) {
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp := response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		c.JSON(resp.Status, resp)
		return
	}
	role, err := h.Svc.UpdateRole(c.Request.Context(), c.Param("id"), application.RoleInput{Name: req.Name, Color: req.Color, EntryIDs: req.EntryIDs})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	resp := response.Success(c, http.StatusOK, role, "role updated", nil)
	c.JSON(resp.Status, resp)
}

func (h *AccessHandler) DeleteRole(c *gin.Context) {
	if err := h.Svc.DeleteRole(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	resp := response.Success[any](c, http.StatusOK, gin.H{"deleted": true}, "role deleted", nil)
	c.JSON(resp.Status, resp)
}

func (h *AccessHandler) AssignUserRoles(c *gin.Context) {
	var req assignRolesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp := response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		c.JSON(resp.Status, resp)
		return
	}
	if err := h.Svc.AssignUserRoles(c.Request.Context(), c.Param("id"), req.RoleIDs); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	resp := response.Success[any](c, http.StatusOK, gin.H{"assigned": true}, "user roles assigned", nil)
	c.JSON(resp.Status, resp)
}
