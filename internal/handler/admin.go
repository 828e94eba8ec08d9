package handler

import (
	"net/http"

	"github.com/astrobalance/vaultgate/internal/middleware"
	"github.com/astrobalance/vaultgate/internal/model"
	"github.com/astrobalance/vaultgate/internal/pkg/apperrors"
	"github.com/astrobalance/vaultgate/internal/vault"
	"github.com/gin-gonic/gin"
)

// AdminHandler covers the protocol-roster and configuration surface. The
// admin check itself lives in the core; these handlers just shuttle requests.
type AdminHandler struct {
	svc *vault.Service
}

func NewAdminHandler(svc *vault.Service) *AdminHandler {
	return &AdminHandler{svc: svc}
}

func (h *AdminHandler) AddProtocol(c *gin.Context) {
	caller := middleware.Caller(c)

	var req model.AddProtocolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.New(apperrors.ErrInvalidRequest, err.Error(), err))
		return
	}

	res, err := h.svc.AddProtocol(c.Request.Context(), caller, req.Name, req.ContractAddr, req.InitialAllocation)
	if err != nil {
		middleware.AddAuditContext(c, "error", err.Error())
		_ = c.Error(err)
		return
	}

	middleware.AddAuditContext(c, "protocol", req.Name)
	c.JSON(http.StatusOK, res)
}

func (h *AdminHandler) RemoveProtocol(c *gin.Context) {
	caller := middleware.Caller(c)
	name := c.Param("name")
	if name == "" {
		_ = c.Error(apperrors.New(apperrors.ErrInvalidRequest, "protocol name is required", nil))
		return
	}

	res, err := h.svc.RemoveProtocol(c.Request.Context(), caller, name)
	if err != nil {
		middleware.AddAuditContext(c, "error", err.Error())
		_ = c.Error(err)
		return
	}

	middleware.AddAuditContext(c, "protocol", name)
	c.JSON(http.StatusOK, res)
}

func (h *AdminHandler) UpdateProtocol(c *gin.Context) {
	caller := middleware.Caller(c)
	name := c.Param("name")

	var req model.UpdateProtocolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.New(apperrors.ErrInvalidRequest, err.Error(), err))
		return
	}

	res, err := h.svc.UpdateProtocol(c.Request.Context(), caller, name, req.Enabled, req.ContractAddr)
	if err != nil {
		middleware.AddAuditContext(c, "error", err.Error())
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *AdminHandler) UpdateRiskParameters(c *gin.Context) {
	caller := middleware.Caller(c)

	var req model.UpdateRiskParametersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.New(apperrors.ErrInvalidRequest, err.Error(), err))
		return
	}

	res, err := h.svc.UpdateRiskParameters(c.Request.Context(), caller, req.RiskParameters)
	if err != nil {
		middleware.AddAuditContext(c, "error", err.Error())
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *AdminHandler) AddSupportedDenom(c *gin.Context) {
	caller := middleware.Caller(c)

	var req model.DenomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.New(apperrors.ErrInvalidRequest, err.Error(), err))
		return
	}

	res, err := h.svc.AddSupportedDenom(c.Request.Context(), caller, req.Denom)
	if err != nil {
		middleware.AddAuditContext(c, "error", err.Error())
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *AdminHandler) RemoveSupportedDenom(c *gin.Context) {
	caller := middleware.Caller(c)
	denom := c.Param("denom")
	if denom == "" {
		_ = c.Error(apperrors.New(apperrors.ErrInvalidDenom, "denom is required", nil))
		return
	}

	res, err := h.svc.RemoveSupportedDenom(c.Request.Context(), caller, denom)
	if err != nil {
		middleware.AddAuditContext(c, "error", err.Error())
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *AdminHandler) UpdateAdmin(c *gin.Context) {
	h.updateRole(c, true)
}

func (h *AdminHandler) UpdateOperator(c *gin.Context) {
	h.updateRole(c, false)
}

func (h *AdminHandler) updateRole(c *gin.Context, admin bool) {
	caller := middleware.Caller(c)

	var req model.AddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.New(apperrors.ErrInvalidRequest, err.Error(), err))
		return
	}

	var res *model.OperationResult
	var err error
	if admin {
		res, err = h.svc.UpdateAdmin(c.Request.Context(), caller, req.Address)
	} else {
		res, err = h.svc.UpdateOperator(c.Request.Context(), caller, req.Address)
	}
	if err != nil {
		middleware.AddAuditContext(c, "error", err.Error())
		_ = c.Error(err)
		return
	}

	middleware.AddAuditContext(c, "address", req.Address)
	c.JSON(http.StatusOK, res)
}
