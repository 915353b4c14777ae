// Package auth implements registration with sponsor linking, binary tree
// placement, login, and token issuance.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/amankumar-in/phantom-stake-sub001/internal/domain"
	"github.com/amankumar-in/phantom-stake-sub001/pkg/errors"
	"github.com/amankumar-in/phantom-stake-sub001/pkg/logger"
)

// UserRepository is the user persistence surface auth consumes.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByReferralCode(ctx context.Context, code string) (*domain.User, error)
	UpdateLastLogin(ctx context.Context, id string) error
}

// WalletRepository creates the two wallets every new member gets.
type WalletRepository interface {
	Create(ctx context.Context, wallet *domain.Wallet) error
}

// TreeRepository places members in the binary tree.
type TreeRepository interface {
	Create(ctx context.Context, node *domain.TreeNode) error
	FindByUserID(ctx context.Context, userID string) (*domain.TreeNode, error)
	FindChild(ctx context.Context, parentID string, position domain.TreePosition) (*domain.TreeNode, error)
}

// Service provides registration, login, and token issuance.
type Service struct {
	users     UserRepository
	wallets   WalletRepository
	tree      TreeRepository
	logger    logger.Logger
	jwtSecret string
	jwtExpiry time.Duration
}

func NewService(
	users UserRepository,
	wallets WalletRepository,
	tree TreeRepository,
	log logger.Logger,
	jwtSecret string,
	jwtExpiry time.Duration,
) *Service {
	return &Service{
		users:     users,
		wallets:   wallets,
		tree:      tree,
		logger:    log,
		jwtSecret: jwtSecret,
		jwtExpiry: jwtExpiry,
	}
}

// RegisterRequest captures the fields required to create a new member.
type RegisterRequest struct {
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=8"`
	FirstName    string `json:"first_name" validate:"required"`
	LastName     string `json:"last_name" validate:"required"`
	ReferralCode string `json:"referral_code" validate:"omitempty,len=8"`
}

// LoginRequest captures credentials for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// TokenResponse is returned on successful register/login with issued tokens.
type TokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresAt    time.Time    `json:"expires_at"`
	User         *domain.User `json:"user"`
}

// Register creates a member, their two wallets, and their binary tree node.
// A referral code, when present, links the sponsor and places the member in
// the sponsor's subtree; without one the member roots a new subtree.
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*TokenResponse, error) {
	var sponsor *domain.User
	if req.ReferralCode != "" {
		var err error
		sponsor, err = s.users.FindByReferralCode(ctx, req.ReferralCode)
		if err != nil {
			return nil, errors.ErrSponsorNotFound
		}
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	referralCode, err := generateReferralCode()
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:           uuid.New(),
		Email:        req.Email,
		PasswordHash: string(passwordHash),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		ReferralCode: referralCode,
		Rank:         domain.RankNone,
		IsActive:     true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if sponsor != nil {
		user.SponsorID = &sponsor.ID
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	for _, walletType := range []domain.WalletType{domain.WalletTypePrincipal, domain.WalletTypeIncome} {
		wallet := &domain.Wallet{
			ID:             uuid.New(),
			UserID:         user.ID,
			WalletType:     walletType,
			Balance:        decimal.Zero,
			TotalEarned:    decimal.Zero,
			TotalWithdrawn: decimal.Zero,
			CreatedAt:      time.Now(),
			UpdatedAt:      time.Now(),
		}
		if err := s.wallets.Create(ctx, wallet); err != nil {
			return nil, errors.Wrap(err, "failed to create wallet")
		}
	}

	if err := s.placeInTree(ctx, user, sponsor); err != nil {
		return nil, errors.Wrap(err, "failed to place member in tree")
	}

	return s.generateTokens(user)
}

// placeInTree finds the first open slot under the sponsor's node, breadth
// first and left before right, so spillover fills the subtree evenly.
func (s *Service) placeInTree(ctx context.Context, user *domain.User, sponsor *domain.User) error {
	node := &domain.TreeNode{
		ID:             uuid.New(),
		UserID:         user.ID,
		PersonalVolume: decimal.Zero,
		LeftLegVolume:  decimal.Zero,
		RightLegVolume: decimal.Zero,
		IsActive:       true,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}

	if sponsor == nil {
		node.Position = domain.TreePositionRoot
		node.Path = node.ID.String()
		node.Depth = 0
		return s.tree.Create(ctx, node)
	}

	sponsorNode, err := s.tree.FindByUserID(ctx, sponsor.ID.String())
	if err != nil {
		return err
	}

	parent, position, err := s.findOpenSlot(ctx, sponsorNode)
	if err != nil {
		return err
	}

	node.ParentID = &parent.ID
	node.SponsorID = &sponsor.ID
	node.Position = position
	node.Path = parent.Path + "." + node.ID.String()
	node.Depth = parent.Depth + 1
	return s.tree.Create(ctx, node)
}

func (s *Service) findOpenSlot(ctx context.Context, root *domain.TreeNode) (*domain.TreeNode, domain.TreePosition, error) {
	queue := []*domain.TreeNode{root}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]

		for _, position := range []domain.TreePosition{domain.TreePositionLeft, domain.TreePositionRight} {
			child, err := s.tree.FindChild(ctx, parent.ID.String(), position)
			if err != nil {
				return nil, "", err
			}
			if child == nil {
				return parent, position, nil
			}
			queue = append(queue, child)
		}
	}
	return nil, "", errors.ErrPositionOccupied
}

// Login authenticates a member and returns tokens.
func (s *Service) Login(ctx context.Context, req *LoginRequest) (*TokenResponse, error) {
	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, errors.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, errors.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, errors.ErrInvalidCredentials
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID.String()); err != nil {
		s.logger.Warn("Failed to stamp last login", map[string]interface{}{
			"user_id": user.ID,
			"error":   err.Error(),
		})
	}

	return s.generateTokens(user)
}

func (s *Service) generateTokens(user *domain.User) (*TokenResponse, error) {
	expiresAt := time.Now().Add(s.jwtExpiry)

	claims := jwt.MapClaims{
		"user_id":  user.ID.String(),
		"email":    user.Email,
		"is_admin": user.IsAdmin,
		"exp":      expiresAt.Unix(),
		"iat":      time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	accessToken, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	refreshToken, err := generateRandomToken(32)
	if err != nil {
		return nil, err
	}

	return &TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		User:         user,
	}, nil
}

func generateRandomToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

const referralAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func generateReferralCode() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = referralAlphabet[int(b[i])%len(referralAlphabet)]
	}
	return string(b), nil
}
