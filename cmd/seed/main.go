// Simple seeding tool to create a default admin and a small referral chain
// for local development.
//
// Usage (env overrides):
//
//	SEED_ADMIN_EMAIL=admin@example.com SEED_ADMIN_PASSWORD=Password123
//
// Reads DATABASE_URL and other core config via pkg/config.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/amankumar-in/phantom-stake-sub001/internal/domain"
	"github.com/amankumar-in/phantom-stake-sub001/internal/repository/postgres"
	"github.com/amankumar-in/phantom-stake-sub001/pkg/config"
	"github.com/amankumar-in/phantom-stake-sub001/pkg/errors"
	"github.com/amankumar-in/phantom-stake-sub001/pkg/logger"
)

func main() {
	log := logger.New("seed")

	cfg := config.Load()
	if err := cfg.ValidateCore(); err != nil {
		log.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{"error": err.Error()})
	}
	defer db.Close()

	userRepo := postgres.NewUserRepository(db)
	walletRepo := postgres.NewWalletRepository(db)
	stakeRepo := postgres.NewStakeRepository(db)
	treeRepo := postgres.NewTreeRepository(db)
	ctx := context.Background()

	adminEmail := getenv("SEED_ADMIN_EMAIL", "admin@example.com")
	adminPassword := getenv("SEED_ADMIN_PASSWORD", "Password123")

	admin := ensureUser(ctx, userRepo, log, adminEmail, adminPassword, "Ada", "Admin", "ADMIN001", nil, true)
	ensureWallets(ctx, walletRepo, log, admin.ID)
	ensureNode(ctx, treeRepo, log, admin, nil, domain.TreePositionRoot)

	// A short sponsor chain with stakes so the daily run has work to do.
	alice := ensureUser(ctx, userRepo, log, "alice@example.com", "Password123", "Alice", "Stone", "ALICE001", &admin.ID, false)
	ensureWallets(ctx, walletRepo, log, alice.ID)
	ensureNode(ctx, treeRepo, log, alice, admin, domain.TreePositionLeft)
	ensureStake(ctx, stakeRepo, log, alice.ID, domain.ProgramI, decimal.NewFromInt(1000))

	bob := ensureUser(ctx, userRepo, log, "bob@example.com", "Password123", "Bob", "Reyes", "BOB00001", &alice.ID, false)
	ensureWallets(ctx, walletRepo, log, bob.ID)
	ensureNode(ctx, treeRepo, log, bob, alice, domain.TreePositionLeft)
	ensureStake(ctx, stakeRepo, log, bob.ID, domain.ProgramII, decimal.NewFromInt(2500))

	fmt.Println("OK: users, wallets, tree, and stakes seeded")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func ensureUser(
	ctx context.Context,
	repo *postgres.UserRepository,
	log logger.Logger,
	email, password, first, last, code string,
	sponsorID *uuid.UUID,
	isAdmin bool,
) *domain.User {
	if existing, err := repo.FindByEmail(ctx, email); err == nil {
		return existing
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal("Hash failed", map[string]interface{}{"error": err.Error()})
	}

	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    first,
		LastName:     last,
		ReferralCode: code,
		SponsorID:    sponsorID,
		Rank:         domain.RankNone,
		IsAdmin:      isAdmin,
		IsActive:     true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := repo.Create(ctx, user); err != nil && err != errors.ErrUserAlreadyExists {
		log.Fatal("Create user failed", map[string]interface{}{"email": email, "error": err.Error()})
	}
	return user
}

func ensureWallets(ctx context.Context, repo *postgres.WalletRepository, log logger.Logger, userID uuid.UUID) {
	for _, walletType := range []domain.WalletType{domain.WalletTypePrincipal, domain.WalletTypeIncome} {
		if _, err := repo.FindByUserAndType(ctx, userID.String(), walletType); err == nil {
			continue
		}
		wallet := &domain.Wallet{
			ID:             uuid.New(),
			UserID:         userID,
			WalletType:     walletType,
			Balance:        decimal.Zero,
			TotalEarned:    decimal.Zero,
			TotalWithdrawn: decimal.Zero,
			CreatedAt:      time.Now(),
			UpdatedAt:      time.Now(),
		}
		if err := repo.Create(ctx, wallet); err != nil {
			log.Fatal("Create wallet failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

func ensureNode(ctx context.Context, repo *postgres.TreeRepository, log logger.Logger, user, parent *domain.User, position domain.TreePosition) {
	if _, err := repo.FindByUserID(ctx, user.ID.String()); err == nil {
		return
	}

	node := &domain.TreeNode{
		ID:             uuid.New(),
		UserID:         user.ID,
		Position:       position,
		PersonalVolume: decimal.Zero,
		LeftLegVolume:  decimal.Zero,
		RightLegVolume: decimal.Zero,
		IsActive:       true,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	node.Path = node.ID.String()
	if parent != nil {
		parentNode, err := repo.FindByUserID(ctx, parent.ID.String())
		if err != nil {
			log.Fatal("Parent node missing", map[string]interface{}{"error": err.Error()})
		}
		node.ParentID = &parentNode.ID
		node.SponsorID = &parent.ID
		node.Path = parentNode.Path + "." + node.ID.String()
		node.Depth = parentNode.Depth + 1
	}
	if err := repo.Create(ctx, node); err != nil && err != errors.ErrPositionOccupied {
		log.Fatal("Create node failed", map[string]interface{}{"error": err.Error()})
	}
}

func ensureStake(ctx context.Context, repo *postgres.StakeRepository, log logger.Logger, userID uuid.UUID, programID domain.ProgramID, amount decimal.Decimal) {
	existing, err := repo.FindByUserID(ctx, userID.String())
	if err == nil && len(existing) > 0 {
		return
	}

	program, err := domain.ProgramByID(programID)
	if err != nil {
		log.Fatal("Unknown program", map[string]interface{}{"error": err.Error()})
	}

	stake := &domain.Stake{
		ID:              uuid.New(),
		UserID:          userID,
		Program:         programID,
		Principal:       amount,
		BaseRate:        program.BaseRate,
		IsActive:        true,
		TotalROIEarned:  decimal.Zero,
		CompoundingRate: program.CompoundingRate,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	record := &domain.Transaction{
		ID:          uuid.New(),
		UserID:      userID,
		StakeID:     &stake.ID,
		Type:        domain.TransactionTypeDeposit,
		Amount:      amount,
		Reference:   fmt.Sprintf("deposit-%s", stake.ID),
		Description: fmt.Sprintf("Seed deposit into Program %s", programID),
	}
	if err := repo.CreateWithDeposit(ctx, stake, record); err != nil {
		log.Fatal("Create stake failed", map[string]interface{}{"error": err.Error()})
	}
}
