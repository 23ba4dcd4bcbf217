package service

import (
	"context"
	"fmt"
	"time"

	"github.com/wfunc/connect4-game/internal/models"
	"github.com/wfunc/connect4-game/internal/repository"
	"github.com/wfunc/connect4-game/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// userService 用户服务实现
type userService struct {
	db         *gorm.DB
	userRepo   repository.UserRepository
	authRepo   repository.UserAuthRepository
	walletRepo repository.WalletRepository
	matchRepo  repository.MatchRepository
	log        *zap.Logger
}

// NewUserService 创建用户服务
func NewUserService(
	db *gorm.DB,
	userRepo repository.UserRepository,
	authRepo repository.UserAuthRepository,
	walletRepo repository.WalletRepository,
	matchRepo repository.MatchRepository,
	log *zap.Logger,
) UserService {
	return &userService{
		db:         db,
		userRepo:   userRepo,
		authRepo:   authRepo,
		walletRepo: walletRepo,
		matchRepo:  matchRepo,
		log:        log,
	}
}

// GetUserByID 根据ID获取用户
func (s *userService) GetUserByID(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// GetUserByUsername 根据用户名获取用户
func (s *userService) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// GetUserByEmail 根据邮箱获取用户
func (s *userService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// UpdateUser 更新用户信息
// 只允许更新白名单内的字段
func (s *userService) UpdateUser(ctx context.Context, userID uint, updates map[string]interface{}) error {
	// 检查用户是否存在
	if _, err := s.userRepo.FindByID(ctx, userID); err != nil {
		return ErrUserNotFound
	}

	// 过滤允许更新的字段
	allowedFields := map[string]bool{
		"nickname": true,
		"avatar":   true,
		"email":    true,
	}

	filtered := make(map[string]interface{})
	for key, value := range updates {
		if allowedFields[key] {
			filtered[key] = value
		}
	}

	if len(filtered) == 0 {
		return fmt.Errorf("没有可更新的字段")
	}

	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(filtered).Error; err != nil {
		s.log.Error("更新用户失败", zap.Error(err), zap.Uint("user_id", userID))
		return fmt.Errorf("更新用户失败: %w", err)
	}

	s.log.Info("用户信息已更新", zap.Uint("user_id", userID))
	return nil
}

// UpdatePassword 修改密码
func (s *userService) UpdatePassword(ctx context.Context, userID uint, oldPassword, newPassword string) error {
	// 获取认证信息
	auth, err := s.authRepo.FindByUserID(ctx, userID)
	if err != nil {
		return ErrUserNotFound
	}

	// 验证旧密码
	valid, err := utils.VerifyPassword(oldPassword, auth.Password)
	if err != nil || !valid {
		return ErrInvalidCredentials
	}

	// 验证新密码
	if len(newPassword) < 6 {
		return fmt.Errorf("新密码长度至少6个字符")
	}

	// 加密新密码
	hashedPassword, err := utils.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("密码加密失败: %w", err)
	}

	if err := s.authRepo.UpdatePassword(ctx, userID, hashedPassword); err != nil {
		s.log.Error("更新密码失败", zap.Error(err), zap.Uint("user_id", userID))
		return fmt.Errorf("更新密码失败: %w", err)
	}

	s.log.Info("用户密码已更新", zap.Uint("user_id", userID))
	return nil
}

// GetUserList 获取用户列表
func (s *userService) GetUserList(ctx context.Context, page, pageSize int) ([]*models.User, int64, error) {
	pagination := repository.NewPagination(page, pageSize)
	users, err := s.userRepo.GetAll(ctx, pagination)
	if err != nil {
		return nil, 0, fmt.Errorf("获取用户列表失败: %w", err)
	}
	return users, pagination.Total, nil
}

// UpdateUserStatus 更新用户状态
func (s *userService) UpdateUserStatus(ctx context.Context, userID uint, status string) error {
	validStatuses := map[string]bool{
		"active":   true,
		"inactive": true,
		"banned":   true,
	}
	if !validStatuses[status] {
		return fmt.Errorf("无效的用户状态: %s", status)
	}

	if err := s.userRepo.UpdateStatus(ctx, userID, status); err != nil {
		return fmt.Errorf("更新用户状态失败: %w", err)
	}

	s.log.Info("用户状态已更新", zap.Uint("user_id", userID), zap.String("status", status))
	return nil
}

// BanUser 封禁用户
func (s *userService) BanUser(ctx context.Context, userID uint, reason string, duration time.Duration) error {
	if err := s.userRepo.UpdateStatus(ctx, userID, "banned"); err != nil {
		return fmt.Errorf("封禁用户失败: %w", err)
	}

	// 撤销该用户的所有会话，踢下线
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.UserSession{}).Error; err != nil {
		s.log.Error("撤销被封禁用户会话失败", zap.Error(err), zap.Uint("user_id", userID))
	}

	s.log.Warn("用户已被封禁",
		zap.Uint("user_id", userID),
		zap.String("reason", reason),
		zap.Duration("duration", duration))
	return nil
}

// UnbanUser 解封用户
func (s *userService) UnbanUser(ctx context.Context, userID uint) error {
	if err := s.userRepo.UpdateStatus(ctx, userID, "active"); err != nil {
		return fmt.Errorf("解封用户失败: %w", err)
	}

	s.log.Info("用户已解封", zap.Uint("user_id", userID))
	return nil
}

// GetUserStats 获取用户统计信息
// 资金口径来自钱包累计字段，对局口径来自对局表聚合
func (s *userService) GetUserStats(ctx context.Context, userID uint) (*UserStats, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	wallet, err := s.walletRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("获取钱包失败: %w", err)
	}

	matchStats, err := s.matchRepo.GetPlayerStatistics(ctx, wallet.AccountID)
	if err != nil {
		return nil, fmt.Errorf("获取对局统计失败: %w", err)
	}

	stats := &UserStats{
		TotalMatches: int64(matchStats.TotalMatches),
		Wins:         int64(matchStats.Wins),
		Draws:        int64(matchStats.Draws),
		LiveMatches:  int64(matchStats.LiveMatches),
		TotalPool:    matchStats.TotalPool,
		TotalStake:   wallet.TotalStake,
		TotalPrize:   wallet.TotalPrize,
	}

	// 胜率按已结束的对局计算
	finished := stats.TotalMatches - stats.LiveMatches
	if finished > 0 {
		stats.WinRate = float64(stats.Wins) / float64(finished)
	}

	if user.LastLoginAt != nil {
		stats.LastLoginAt = *user.LastLoginAt
	}

	return stats, nil
}

// GetUserMatchHistory 获取用户的历史对局
func (s *userService) GetUserMatchHistory(ctx context.Context, userID uint, page, pageSize int) ([]*models.Match, int64, error) {
	wallet, err := s.walletRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("获取钱包失败: %w", err)
	}

	pagination := repository.NewPagination(page, pageSize)
	matches, err := s.matchRepo.FindByPlayer(ctx, wallet.AccountID, pagination)
	if err != nil {
		return nil, 0, fmt.Errorf("获取对局记录失败: %w", err)
	}

	return matches, pagination.Total, nil
}
