package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/astrobalance/vaultgate/internal/audit"
	"github.com/astrobalance/vaultgate/internal/model"
	"github.com/astrobalance/vaultgate/internal/pkg/apperrors"
	"github.com/astrobalance/vaultgate/internal/vault"
	"github.com/astrobalance/vaultgate/internal/venue"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// QueryHandler is the read-only surface: ledger queries, live rates and the
// audit trail.
type QueryHandler struct {
	svc      *vault.Service
	rates    *venue.RateBook
	auditSvc *audit.Service
}

func NewQueryHandler(svc *vault.Service, rates *venue.RateBook, auditSvc *audit.Service) *QueryHandler {
	return &QueryHandler{svc: svc, rates: rates, auditSvc: auditSvc}
}

func (h *QueryHandler) GetConfig(c *gin.Context) {
	cfg, err := h.svc.GetConfig(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (h *QueryHandler) GetRiskParameters(c *gin.Context) {
	rp, err := h.svc.GetRiskParameters(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, rp)
}

func (h *QueryHandler) GetUserInfo(c *gin.Context) {
	addr := c.Param("address")
	info, err := h.svc.GetUserInfo(c.Request.Context(), addr)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, model.UserInfoResponse{Address: addr, UserInfo: *info})
}

func (h *QueryHandler) GetProtocols(c *gin.Context) {
	protocols, err := h.svc.GetProtocols(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	out := make([]model.ProtocolInfo, 0, len(protocols))
	for _, p := range protocols {
		out = append(out, *p)
	}
	c.JSON(http.StatusOK, model.ProtocolsResponse{Protocols: out})
}

func (h *QueryHandler) GetProtocolInfo(c *gin.Context) {
	p, err := h.svc.GetProtocolInfo(c.Request.Context(), c.Param("name"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, model.ProtocolInfoResponse{Protocol: *p})
}

func (h *QueryHandler) GetProtocolAPY(c *gin.Context) {
	name := c.Param("name")
	apy, err := h.svc.GetProtocolAPY(c.Request.Context(), name)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, model.ProtocolAPYResponse{Protocol: name, APY: apy})
}

func (h *QueryHandler) GetTotalValue(c *gin.Context) {
	total, err := h.svc.GetTotalValue(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, model.TotalValueResponse{TotalValue: total})
}

func (h *QueryHandler) GetRebalanceHistory(c *gin.Context) {
	// records come back newest first, so limit takes the most recent
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	history, err := h.svc.GetRebalanceHistory(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, model.RebalanceHistoryResponse{History: history})
}

// CheckRebalance answers whether the posted target allocations deviate
// beyond the threshold.
func (h *QueryHandler) CheckRebalance(c *gin.Context) {
	var req struct {
		TargetAllocations map[string]decimal.Decimal `json:"target_allocations" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.New(apperrors.ErrInvalidRequest, err.Error(), err))
		return
	}

	needed, err := h.svc.CheckRebalanceNeeded(c.Request.Context(), req.TargetAllocations)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, model.RebalanceCheckResponse{RebalanceNeeded: needed})
}

// GetRates dumps the streamed conversion rates currently held in memory.
func (h *QueryHandler) GetRates(c *gin.Context) {
	if h.rates == nil {
		c.JSON(http.StatusOK, gin.H{"rates": []venue.Rate{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rates": h.rates.Snapshot()})
}

// GetAuditLogs lists recent audit entries, optionally filtered by caller.
func (h *QueryHandler) GetAuditLogs(c *gin.Context) {
	if h.auditSvc == nil {
		c.JSON(http.StatusOK, gin.H{"logs": []model.AuditLog{}})
		return
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	var from, to *time.Time
	if raw := c.Query("from"); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			from = &ts
		}
	}
	if raw := c.Query("to"); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			to = &ts
		}
	}

	logs, err := h.auditSvc.List(c.Request.Context(), c.Query("caller"), limit, from, to)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}
