package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/connect4-game/internal/service"
	"go.uber.org/zap"
)

// UserHandler 用户管理处理器
type UserHandler struct {
	userService service.UserService
	logger      *zap.Logger
}

// NewUserHandler 创建用户管理处理器
func NewUserHandler(userService service.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger,
	}
}

// UpdateStatusRequest 更新用户状态请求
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// BanUserRequest 封禁用户请求
type BanUserRequest struct {
	Reason        string `json:"reason" binding:"required"`
	DurationHours int    `json:"duration_hours"`
}

// parseUserID 解析路径中的用户ID
func parseUserID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的用户ID"})
		return 0, false
	}
	return uint(id), true
}

// GetUser 查询用户
// @Summary 查询用户
// @Description 按ID获取用户公开信息
// @Tags User
// @Security Bearer
// @Produce json
// @Param id path int true "用户ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	user, err := h.userService.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "用户不存在"})
		return
	}

	c.JSON(http.StatusOK, user)
}

// GetUserStats 查询用户统计
// @Summary 用户统计
// @Description 获取用户的对局与积分统计
// @Tags User
// @Security Bearer
// @Produce json
// @Param id path int true "用户ID"
// @Success 200 {object} service.UserStats
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/users/{id}/stats [get]
func (h *UserHandler) GetUserStats(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	stats, err := h.userService.GetUserStats(c.Request.Context(), userID)
	if err != nil {
		if err == service.ErrUserNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "用户不存在"})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetUserMatches 查询用户对局历史
// @Summary 用户对局历史
// @Description 分页获取用户参与的对局
// @Tags User
// @Security Bearer
// @Produce json
// @Param id path int true "用户ID"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量（<=100）"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/users/{id}/matches [get]
func (h *UserHandler) GetUserMatches(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	page, pageSize := pageParams(c)

	matches, total, err := h.userService.GetUserMatchHistory(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		if err == service.ErrUserNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "用户不存在"})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"matches":   matches,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ListUsers 用户列表
// @Summary 用户列表
// @Description 分页获取全部用户（管理员）
// @Tags Admin
// @Security Bearer
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页数量（<=100）"
// @Success 200 {object} SuccessResponse
// @Failure 403 {object} ErrorResponse
// @Router /api/v1/admin/users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	page, pageSize := pageParams(c)

	users, total, err := h.userService.GetUserList(c.Request.Context(), page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"users":     users,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// UpdateUserStatus 更新用户状态
// @Summary 更新用户状态
// @Description 设置用户状态为active/inactive/banned（管理员）
// @Tags Admin
// @Security Bearer
// @Accept json
// @Produce json
// @Param id path int true "用户ID"
// @Param request body UpdateStatusRequest true "状态"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/admin/users/{id}/status [put]
func (h *UserHandler) UpdateUserStatus(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误: " + err.Error()})
		return
	}

	if err := h.userService.UpdateUserStatus(c.Request.Context(), userID, req.Status); err != nil {
		if err == service.ErrUserNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "用户不存在"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "状态已更新"})
}

// BanUser 封禁用户
// @Summary 封禁用户
// @Description 封禁用户并吊销其全部登录会话（管理员）
// @Tags Admin
// @Security Bearer
// @Accept json
// @Produce json
// @Param id path int true "用户ID"
// @Param request body BanUserRequest true "封禁信息"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/admin/users/{id}/ban [post]
func (h *UserHandler) BanUser(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	var req BanUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误: " + err.Error()})
		return
	}

	duration := time.Duration(req.DurationHours) * time.Hour
	if err := h.userService.BanUser(c.Request.Context(), userID, req.Reason, duration); err != nil {
		if err == service.ErrUserNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "用户不存在"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.logger.Warn("用户被封禁",
		zap.Uint("user_id", userID),
		zap.String("reason", req.Reason))

	c.JSON(http.StatusOK, SuccessResponse{Message: "用户已封禁"})
}

// UnbanUser 解封用户
// @Summary 解封用户
// @Description 恢复被封禁用户的访问（管理员）
// @Tags Admin
// @Security Bearer
// @Produce json
// @Param id path int true "用户ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/admin/users/{id}/unban [post]
func (h *UserHandler) UnbanUser(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	if err := h.userService.UnbanUser(c.Request.Context(), userID); err != nil {
		if err == service.ErrUserNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "用户不存在"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "用户已解封"})
}
