package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	apperrors "github.com/wfunc/connect4-game/internal/errors"
	"github.com/wfunc/connect4-game/internal/game"
	"github.com/wfunc/connect4-game/internal/middleware"
	"github.com/wfunc/connect4-game/internal/service"
	"go.uber.org/zap"
)

// MatchHandler 对局处理器
type MatchHandler struct {
	matchService service.MatchService
	logger       *zap.Logger
}

// NewMatchHandler 创建对局处理器
func NewMatchHandler(matchService service.MatchService, logger *zap.Logger) *MatchHandler {
	return &MatchHandler{
		matchService: matchService,
		logger:       logger,
	}
}

// CreateMatchRequest 创建对局请求
type CreateMatchRequest struct {
	Opponent string `json:"opponent"` // 留空表示虚位以待
}

// MoveRequest 落子请求
type MoveRequest struct {
	Column int `json:"column" binding:"gte=0,lte=6"`
}

// MatchResponse 对局响应，附带42字符棋盘编码
type MatchResponse struct {
	*game.Session
	Cells string `json:"cells"`
}

// MoveResponse 落子响应
type MoveResponse struct {
	Match    *MatchResponse `json:"match"`
	Column   int            `json:"column"`
	Row      int            `json:"row"`
	Terminal bool           `json:"terminal"`
}

func newMatchResponse(s *game.Session) *MatchResponse {
	return &MatchResponse{Session: s, Cells: s.Board.Encode()}
}

// statusForError 按业务错误码映射HTTP状态
func statusForError(err error) int {
	switch apperrors.GetCode(err) {
	case apperrors.ErrSessionNotFound, apperrors.ErrWalletNotFound, apperrors.ErrNotFound:
		return http.StatusNotFound
	case apperrors.ErrNotParticipant, apperrors.ErrSelfPlay:
		return http.StatusForbidden
	case apperrors.ErrSessionNotLive, apperrors.ErrNotYourTurn, apperrors.ErrColumnFull,
		apperrors.ErrClaimOwnTurn, apperrors.ErrClaimTooEarly:
		return http.StatusConflict
	case apperrors.ErrColumnOutOfRange, apperrors.ErrInvalidParam, apperrors.ErrAmountInvalid,
		apperrors.ErrInsufficientBalance, apperrors.ErrNoBalance, apperrors.ErrInsufficientStake:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondError 回写业务错误
func respondError(c *gin.Context, err error) {
	c.JSON(statusForError(err), gin.H{
		"code":  int(apperrors.GetCode(err)),
		"error": err.Error(),
	})
}

// parseMatchID 解析路径中的对局ID
func parseMatchID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的对局ID"})
		return 0, false
	}
	return id, true
}

// pageParams 解析分页查询参数
func pageParams(c *gin.Context) (page, pageSize int) {
	page = 1
	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil {
			page = v
		}
	}
	pageSize = 20
	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil {
			pageSize = v
		}
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}

// CreateMatch 创建对局
// @Summary 创建对局
// @Description 创建新对局，可指定对手或留空等待应战
// @Tags Match
// @Security Bearer
// @Accept json
// @Produce json
// @Param request body CreateMatchRequest true "创建请求"
// @Success 200 {object} MatchResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/matches [post]
func (h *MatchHandler) CreateMatch(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists || userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未登录"})
		return
	}

	var req CreateMatchRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误: " + err.Error()})
			return
		}
	}

	session, err := h.matchService.CreateMatch(c.Request.Context(), userID, req.Opponent)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newMatchResponse(session))
}

// Move 落子
// @Summary 落子
// @Description 在指定对局落子，每手从钱包扣除固定押注并注入奖池
// @Tags Match
// @Security Bearer
// @Accept json
// @Produce json
// @Param id path int true "对局ID"
// @Param request body MoveRequest true "落子请求"
// @Success 200 {object} MoveResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/matches/{id}/move [post]
func (h *MatchHandler) Move(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists || userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未登录"})
		return
	}

	matchID, ok := parseMatchID(c)
	if !ok {
		return
	}

	var req MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误: " + err.Error()})
		return
	}

	result, err := h.matchService.Move(c.Request.Context(), userID, matchID, req.Column)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, MoveResponse{
		Match:    newMatchResponse(result.Session),
		Column:   result.Column,
		Row:      result.Row,
		Terminal: result.Terminal,
	})
}

// Resign 认输
// @Summary 认输
// @Description 主动认输，奖池判给对手；无人应战时退回创建者
// @Tags Match
// @Security Bearer
// @Produce json
// @Param id path int true "对局ID"
// @Success 200 {object} MatchResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/matches/{id}/resign [post]
func (h *MatchHandler) Resign(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists || userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未登录"})
		return
	}

	matchID, ok := parseMatchID(c)
	if !ok {
		return
	}

	session, err := h.matchService.Resign(c.Request.Context(), userID, matchID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newMatchResponse(session))
}

// ClaimForfeit 超时判负
// @Summary 超时判负
// @Description 对手超时未落子后，判其负并领取奖池
// @Tags Match
// @Security Bearer
// @Produce json
// @Param id path int true "对局ID"
// @Success 200 {object} MatchResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/matches/{id}/claim [post]
func (h *MatchHandler) ClaimForfeit(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists || userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未登录"})
		return
	}

	matchID, ok := parseMatchID(c)
	if !ok {
		return
	}

	session, err := h.matchService.ClaimForfeit(c.Request.Context(), userID, matchID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newMatchResponse(session))
}

// GetMatch 查询对局
// @Summary 查询对局
// @Description 按ID获取对局详情
// @Tags Match
// @Produce json
// @Param id path int true "对局ID"
// @Success 200 {object} MatchResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/matches/{id} [get]
func (h *MatchHandler) GetMatch(c *gin.Context) {
	matchID, ok := parseMatchID(c)
	if !ok {
		return
	}

	session, err := h.matchService.GetMatch(c.Request.Context(), matchID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newMatchResponse(session))
}

// GetBoard 查询棋盘
// @Summary 查询棋盘
// @Description 获取对局棋盘的编码与可读渲染
// @Tags Match
// @Produce json
// @Param id path int true "对局ID"
// @Success 200 {object} service.BoardView
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/matches/{id}/board [get]
func (h *MatchHandler) GetBoard(c *gin.Context) {
	matchID, ok := parseMatchID(c)
	if !ok {
		return
	}

	view, err := h.matchService.GetBoard(c.Request.Context(), matchID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// GetMoves 查询落子历史
// @Summary 落子历史
// @Description 按手数顺序获取对局的全部落子
// @Tags Match
// @Produce json
// @Param id path int true "对局ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/matches/{id}/moves [get]
func (h *MatchHandler) GetMoves(c *gin.Context) {
	matchID, ok := parseMatchID(c)
	if !ok {
		return
	}

	moves, err := h.matchService.GetMatchMoves(c.Request.Context(), matchID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"match_id": matchID,
		"moves":    moves,
		"total":    len(moves),
	})
}

// ListMatches 对局列表
// @Summary 对局列表
// @Description 分页获取全部对局，按ID升序
// @Tags Match
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页数量（<=100）"
// @Success 200 {object} SuccessResponse
// @Router /api/v1/matches [get]
func (h *MatchHandler) ListMatches(c *gin.Context) {
	page, pageSize := pageParams(c)

	sessions, total, err := h.matchService.ListMatches(c.Request.Context(), page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}

	matches := make([]*MatchResponse, 0, len(sessions))
	for _, s := range sessions {
		matches = append(matches, newMatchResponse(s))
	}

	c.JSON(http.StatusOK, gin.H{
		"matches":   matches,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ListOpenMatches 待应战对局列表
// @Summary 待应战对局
// @Description 分页获取虚位以待的对局
// @Tags Match
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页数量（<=100）"
// @Success 200 {object} SuccessResponse
// @Router /api/v1/matches/open [get]
func (h *MatchHandler) ListOpenMatches(c *gin.Context) {
	page, pageSize := pageParams(c)

	matches, total, err := h.matchService.ListOpenMatches(c.Request.Context(), page, pageSize)
	if err != nil {
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

// MyMatches 我的对局
// @Summary 我的对局
// @Description 分页获取当前用户参与的对局
// @Tags Match
// @Security Bearer
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页数量（<=100）"
// @Success 200 {object} SuccessResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/matches/mine [get]
func (h *MatchHandler) MyMatches(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists || userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未登录"})
		return
	}

	page, pageSize := pageParams(c)

	matches, total, err := h.matchService.GetPlayerMatches(c.Request.Context(), userID, page, pageSize)
	if err != nil {
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
