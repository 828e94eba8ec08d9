package handler

import (
	"net/http"

	"github.com/astrobalance/vaultgate/internal/middleware"
	"github.com/astrobalance/vaultgate/internal/model"
	"github.com/astrobalance/vaultgate/internal/pkg/apperrors"
	"github.com/astrobalance/vaultgate/internal/vault"
	"github.com/gin-gonic/gin"
)

// VaultHandler exposes the depositor-facing execute operations.
type VaultHandler struct {
	svc *vault.Service
}

func NewVaultHandler(svc *vault.Service) *VaultHandler {
	return &VaultHandler{svc: svc}
}

func (h *VaultHandler) Deposit(c *gin.Context) {
	caller := middleware.Caller(c)

	var req model.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.New(apperrors.ErrInvalidRequest, err.Error(), err))
		return
	}

	res, err := h.svc.Deposit(c.Request.Context(), caller, []model.Coin{
		{Denom: req.Denom, Amount: req.Amount},
	})
	if err != nil {
		middleware.AddAuditContext(c, "error", err.Error())
		_ = c.Error(err)
		return
	}

	middleware.AddAuditContext(c, "instructions", len(res.Instructions))
	c.JSON(http.StatusOK, res)
}

func (h *VaultHandler) Withdraw(c *gin.Context) {
	caller := middleware.Caller(c)

	var req model.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.New(apperrors.ErrInvalidRequest, err.Error(), err))
		return
	}

	res, err := h.svc.Withdraw(c.Request.Context(), caller, req.Amount, req.Denom)
	if err != nil {
		middleware.AddAuditContext(c, "error", err.Error())
		_ = c.Error(err)
		return
	}

	middleware.AddAuditContext(c, "instructions", len(res.Instructions))
	c.JSON(http.StatusOK, res)
}

func (h *VaultHandler) EmergencyWithdraw(c *gin.Context) {
	caller := middleware.Caller(c)

	// body is optional: an empty body means payout in the base denom
	var req model.EmergencyWithdrawRequest
	_ = c.ShouldBindJSON(&req)

	res, err := h.svc.EmergencyWithdraw(c.Request.Context(), caller, req.Denom)
	if err != nil {
		middleware.AddAuditContext(c, "error", err.Error())
		_ = c.Error(err)
		return
	}

	middleware.AddAuditContext(c, "fee_amount", res.Attributes["fee_amount"])
	c.JSON(http.StatusOK, res)
}

func (h *VaultHandler) RefreshBalances(c *gin.Context) {
	caller := middleware.Caller(c)

	res, err := h.svc.RefreshBalances(c.Request.Context(), caller)
	if err != nil {
		middleware.AddAuditContext(c, "error", err.Error())
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *VaultHandler) Rebalance(c *gin.Context) {
	caller := middleware.Caller(c)

	var req model.RebalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.New(apperrors.ErrInvalidRequest, err.Error(), err))
		return
	}

	res, err := h.svc.Rebalance(c.Request.Context(), caller, req.TargetAllocations, req.Reason)
	if err != nil {
		middleware.AddAuditContext(c, "error", err.Error())
		_ = c.Error(err)
		return
	}

	middleware.AddAuditContext(c, "withdrawals", res.Attributes["withdrawals"])
	middleware.AddAuditContext(c, "deposits", res.Attributes["deposits"])
	c.JSON(http.StatusOK, res)
}
