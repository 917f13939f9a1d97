package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/rakaadit/go-rbac-navigation/internal/application"
	"github.com/rakaadit/go-rbac-navigation/internal/domain/entity"
	"github.com/rakaadit/go-rbac-navigation/pkg/response"
	"github.com/rakaadit/go-rbac-navigation/pkg/validation"
)

type NavigationHandler struct {
	Svc    *application.NavigationService
	Logger *logrus.Logger
}

func NewNavigationHandler(svc *application.NavigationService, logger *logrus.Logger) *NavigationHandler {
	return &NavigationHandler{Svc: svc, Logger: logger}
}

type entryRequest struct {
	Label     string  `json:"label" binding:"required,max=255"`
	Icon      string  `json:"icon" binding:"max=255"`
	Target    string  `json:"target" binding:"max=255"`
	ParentID  *string `json:"parent_id" binding:"omitempty,uuid"`
	SortNum   *int    `json:"sort_num"`
	IsActive  *bool   `json:"is_active"`
	IsDivider bool    `json:"is_divider"`
}

func (r *entryRequest) toInput() application.EntryInput {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return application.EntryInput{
		Label:     r.Label,
		Icon:      r.Icon,
		Target:    r.Target,
		ParentID:  r.ParentID,
		SortNum:   r.SortNum,
		IsActive:  active,
		IsDivider: r.IsDivider,
	}
}

type applyOrderRequest struct {
	Order []entity.OrderNode `json:"order"`
}

type assignRolesRequest struct {
	RoleIDs []string `json:"role_ids" binding:"dive,uuid"`
}

// Render serves the caller's navigation view through the cache. Role
// ids are resolved fresh from user_roles on every request.
func (h *NavigationHandler) Render(c *gin.Context) {
	uid := c.GetString("userID")
	roleIDs, err := h.Svc.RoleIDsForUser(c.Request.Context(), uid)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	view, err := h.Svc.RenderNavigation(c.Request.Context(), uid, roleIDs)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	resp := response.Success(c, http.StatusOK, view, "navigation", nil)
	c.JSON(resp.Status, resp)
}

func (h *NavigationHandler) List(c *gin.Context) {
	var isActive *bool
	if raw, ok := c.GetQuery("status"); ok {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			resp := response.Error[any](c, http.StatusBadRequest, "invalid status filter", nil)
			c.JSON(resp.Status, resp)
			return
		}
		isActive = &b
	}
	entries, err := h.Svc.ListEntries(c.Request.Context(), c.Query("search"), isActive)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	resp := response.Success(c, http.StatusOK, entries, "entries", gin.H{
		"search": c.Query("search"),
		"status": c.Query("status"),
	})
	c.JSON(resp.Status, resp)
}

func (h *NavigationHandler) Tree(c *gin.Context) {
	forest, err := h.Svc.EntryTree(c.Request.Context())
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	resp := response.Success(c, http.StatusOK, forest, "entry tree", nil)
	c.JSON(resp.Status, resp)
}

func (h *NavigationHandler) Create(c *gin.Context) {
	var req entryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp := response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		c.JSON(resp.Status, resp)
		return
	}
	e, err := h.Svc.CreateEntry(c.Request.Context(), req.toInput())
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	resp := response.Success(c, http.StatusCreated, e, "entry created", nil)
	c.JSON(resp.Status, resp)
}

func (h *NavigationHandler) Update(c *gin.Context) {
	var req entryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp := response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		c.JSON(resp.Status, resp)
		return
	}
	e, err := h.Svc.UpdateEntry(c.Request.Context(), c.Param("id"), req.toInput())
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	resp := response.Success(c, http.StatusOK, e, "entry updated", nil)
	c.JSON(resp.Status, resp)
}

func (h *NavigationHandler) Delete(c *gin.Context) {
	if err := h.Svc.DeleteEntry(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	resp := response.Success[any](c, http.StatusOK, gin.H{"deleted": true}, "entry deleted", nil)
	c.JSON(resp.Status, resp)
}

func (h *NavigationHandler) ApplyOrder(c *gin.Context) {
	var req applyOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp := response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		c.JSON(resp.Status, resp)
		return
	}
	if err := h.Svc.ApplyOrder(c.Request.Context(), req.Order); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	resp := response.Success[any](c, http.StatusOK, gin.H{"ordered": true}, "order applied", nil)
	c.JSON(resp.Status, resp)
}

func (h *NavigationHandler) AssignRoles(c *gin.Context) {
	var req assignRolesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp := response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		c.JSON(resp.Status, resp)
		return
	}
	if err := h.Svc.AssignEntryRoles(c.Request.Context(), c.Param("id"), req.RoleIDs); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	resp := response.Success[any](c, http.StatusOK, gin.H{"assigned": true}, "entry roles assigned", nil)
	c.JSON(resp.Status, resp)
}

// Search queries the Elasticsearch entry index.
func (h *NavigationHandler) Search(c *gin.Context) {
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))
	hits, err := h.Svc.SearchEntries(c.Request.Context(), c.Query("q"), size)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	resp := response.Success(c, http.StatusOK, hits, "search results", nil)
	c.JSON(resp.Status, resp)
}

// respondError maps application errors onto the API envelope.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	var ve *application.ValidationError
	switch {
	case errors.As(err, &ve):
		resp := response.Error[any](c, http.StatusBadRequest, "validation failed", map[string]string{ve.Field: ve.Reason})
		c.JSON(resp.Status, resp)
	case errors.Is(err, application.ErrEntryNotFound),
		errors.Is(err, application.ErrRoleNotFound),
		errors.Is(err, application.ErrUserNotFound):
		resp := response.Error[any](c, http.StatusNotFound, err.Error(), nil)
		c.JSON(resp.Status, resp)
	case errors.Is(err, application.ErrConflict):
		resp := response.Error[any](c, http.StatusConflict, "duplicate value", nil)
		c.JSON(resp.Status, resp)
	default:
		if logger != nil {
			logger.WithError(err).Error("request failed")
		}
		resp := response.Error[any](c, http.StatusInternalServerError, "internal error", nil)
		c.JSON(resp.Status, resp)
	}
}
