package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/connect4-game/internal/middleware"
	"github.com/wfunc/connect4-game/internal/service"
	"go.uber.org/zap"
)

// WalletHandler 钱包处理器
type WalletHandler struct {
	walletService service.WalletService
	logger        *zap.Logger
}

// NewWalletHandler 创建钱包处理器
func NewWalletHandler(walletService service.WalletService, logger *zap.Logger) *WalletHandler {
	return &WalletHandler{
		walletService: walletService,
		logger:        logger,
	}
}

// GetBalance 获取余额
// @Summary 获取余额
// @Description 获取钱包余额、可提奖金与累计积分
// @Tags Wallet
// @Security Bearer
// @Produce json
// @Success 200 {object} service.BalanceResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/wallet/balance [get]
func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists || userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未登录"})
		return
	}

	balance, err := h.walletService.GetBalance(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("获取余额失败",
			zap.Uint("user_id", userID),
			zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, balance)
}

// Withdraw 提取奖金
// @Summary 提取奖金
// @Description 把结算账户的全部可提奖金转入钱包余额
// @Tags Wallet
// @Security Bearer
// @Produce json
// @Success 200 {object} service.WithdrawResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/wallet/withdraw [post]
func (h *WalletHandler) Withdraw(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists || userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未登录"})
		return
	}

	resp, err := h.walletService.Withdraw(c.Request.Context(), userID)
	if err != nil {
		h.logger.Warn("提取奖金失败",
			zap.Uint("user_id", userID),
			zap.Error(err))
		respondError(c, err)
		return
	}

	h.logger.Info("提取奖金成功",
		zap.Uint("user_id", userID),
		zap.Int64("amount", resp.Amount))

	c.JSON(http.StatusOK, resp)
}

// GetTransactions 获取交易记录
// @Summary 交易记录
// @Description 分页获取当前用户的押注、奖金与退款流水
// @Tags Wallet
// @Security Bearer
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页数量（<=100）"
// @Success 200 {object} SuccessResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/wallet/transactions [get]
func (h *WalletHandler) GetTransactions(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists || userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未登录"})
		return
	}

	page, pageSize := pageParams(c)

	transactions, total, err := h.walletService.GetTransactions(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		h.logger.Error("获取交易记录失败",
			zap.Uint("user_id", userID),
			zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": transactions,
		"total":        total,
		"page":         page,
		"page_size":    pageSize,
	})
}

// GetWithdrawals 获取提取记录
// @Summary 提取记录
// @Description 分页获取当前用户的奖金提取记录
// @Tags Wallet
// @Security Bearer
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页数量（<=100）"
// @Success 200 {object} SuccessResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/wallet/withdrawals [get]
func (h *WalletHandler) GetWithdrawals(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists || userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未登录"})
		return
	}

	page, pageSize := pageParams(c)

	withdrawals, total, err := h.walletService.GetWithdrawals(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		h.logger.Error("获取提取记录失败",
			zap.Uint("user_id", userID),
			zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"withdrawals": withdrawals,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
	})
}

// GetLeaderboard 获取排行榜
// @Summary 排行榜
// @Description 按首次得分顺序分页获取有积分的账户
// @Tags Leaderboard
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页数量（<=100）"
// @Success 200 {object} SuccessResponse
// @Router /api/v1/leaderboard [get]
func (h *WalletHandler) GetLeaderboard(c *gin.Context) {
	page, pageSize := pageParams(c)

	entries, total, err := h.walletService.GetLeaderboard(c.Request.Context(), page, pageSize)
	if err != nil {
		h.logger.Error("获取排行榜失败", zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries":   entries,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}
