package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"

	"github.com/amankumar-in/phantom-stake-sub001/internal/domain"
	"github.com/amankumar-in/phantom-stake-sub001/pkg/errors"
	"github.com/amankumar-in/phantom-stake-sub001/pkg/logger"
)

// Mocks

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) FindByReferralCode(ctx context.Context, code string) (*domain.User, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) UpdateLastLogin(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockWalletRepository struct {
	mock.Mock
}

func (m *MockWalletRepository) Create(ctx context.Context, wallet *domain.Wallet) error {
	args := m.Called(ctx, wallet)
	return args.Error(0)
}

type MockTreeRepository struct {
	mock.Mock
}

func (m *MockTreeRepository) Create(ctx context.Context, node *domain.TreeNode) error {
	args := m.Called(ctx, node)
	return args.Error(0)
}

func (m *MockTreeRepository) FindByUserID(ctx context.Context, userID string) (*domain.TreeNode, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TreeNode), args.Error(1)
}

func (m *MockTreeRepository) FindChild(ctx context.Context, parentID string, position domain.TreePosition) (*domain.TreeNode, error) {
	args := m.Called(ctx, parentID, position)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TreeNode), args.Error(1)
}

const testSecret = "test-signing-secret"

func newService(users *MockUserRepository, wallets *MockWalletRepository, tree *MockTreeRepository) *Service {
	return NewService(users, wallets, tree, logger.NewNop(), testSecret, time.Hour)
}

func registerRequest(code string) *RegisterRequest {
	return &RegisterRequest{
		Email:        "new.member@example.com",
		Password:     "correct horse",
		FirstName:    "New",
		LastName:     "Member",
		ReferralCode: code,
	}
}

func treeNode(parentID *uuid.UUID, depth int) *domain.TreeNode {
	id := uuid.New()
	return &domain.TreeNode{
		ID:       id,
		UserID:   uuid.New(),
		ParentID: parentID,
		Path:     id.String(),
		Depth:    depth,
		IsActive: true,
	}
}

func TestRegisterWithoutSponsorRootsSubtree(t *testing.T) {
	users := new(MockUserRepository)
	wallets := new(MockWalletRepository)
	tree := new(MockTreeRepository)

	users.On("Create", mock.Anything, mock.Anything).Return(nil)
	wallets.On("Create", mock.Anything, mock.Anything).Return(nil).Twice()
	tree.On("Create", mock.Anything, mock.MatchedBy(func(n *domain.TreeNode) bool {
		return n.Position == domain.TreePositionRoot && n.ParentID == nil && n.Depth == 0
	})).Return(nil)

	resp, err := newService(users, wallets, tree).Register(context.Background(), registerRequest(""))

	assert.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Nil(t, resp.User.SponsorID)
	assert.Len(t, resp.User.ReferralCode, 8)
	wallets.AssertExpectations(t)
	tree.AssertExpectations(t)
}

func TestRegisterPlacesUnderSponsorLeftFirst(t *testing.T) {
	users := new(MockUserRepository)
	wallets := new(MockWalletRepository)
	tree := new(MockTreeRepository)

	sponsor := &domain.User{ID: uuid.New(), ReferralCode: "SPONSOR1", IsActive: true}
	sponsorNode := treeNode(nil, 0)
	sponsorNode.UserID = sponsor.ID

	users.On("FindByReferralCode", mock.Anything, "SPONSOR1").Return(sponsor, nil)
	users.On("Create", mock.Anything, mock.Anything).Return(nil)
	wallets.On("Create", mock.Anything, mock.Anything).Return(nil)
	tree.On("FindByUserID", mock.Anything, sponsor.ID.String()).Return(sponsorNode, nil)
	tree.On("FindChild", mock.Anything, sponsorNode.ID.String(), domain.TreePositionLeft).Return(nil, nil)
	tree.On("Create", mock.Anything, mock.MatchedBy(func(n *domain.TreeNode) bool {
		return n.Position == domain.TreePositionLeft &&
			n.ParentID != nil && *n.ParentID == sponsorNode.ID &&
			n.Depth == 1 &&
			n.Path == sponsorNode.Path+"."+n.ID.String()
	})).Return(nil)

	resp, err := newService(users, wallets, tree).Register(context.Background(), registerRequest("SPONSOR1"))

	assert.NoError(t, err)
	assert.Equal(t, sponsor.ID, *resp.User.SponsorID)
	tree.AssertExpectations(t)
}

func TestRegisterSpilloverFillsBreadthFirst(t *testing.T) {
	users := new(MockUserRepository)
	wallets := new(MockWalletRepository)
	tree := new(MockTreeRepository)

	sponsor := &domain.User{ID: uuid.New(), ReferralCode: "SPONSOR1", IsActive: true}
	sponsorNode := treeNode(nil, 0)
	left := treeNode(&sponsorNode.ID, 1)
	right := treeNode(&sponsorNode.ID, 1)

	users.On("FindByReferralCode", mock.Anything, "SPONSOR1").Return(sponsor, nil)
	users.On("Create", mock.Anything, mock.Anything).Return(nil)
	wallets.On("Create", mock.Anything, mock.Anything).Return(nil)
	tree.On("FindByUserID", mock.Anything, sponsor.ID.String()).Return(sponsorNode, nil)

	// Sponsor's row is full; the left child's left slot is the first open one.
	tree.On("FindChild", mock.Anything, sponsorNode.ID.String(), domain.TreePositionLeft).Return(left, nil)
	tree.On("FindChild", mock.Anything, sponsorNode.ID.String(), domain.TreePositionRight).Return(right, nil)
	tree.On("FindChild", mock.Anything, left.ID.String(), domain.TreePositionLeft).Return(nil, nil)
	tree.On("Create", mock.Anything, mock.MatchedBy(func(n *domain.TreeNode) bool {
		return n.ParentID != nil && *n.ParentID == left.ID &&
			n.Position == domain.TreePositionLeft && n.Depth == 2
	})).Return(nil)

	_, err := newService(users, wallets, tree).Register(context.Background(), registerRequest("SPONSOR1"))

	assert.NoError(t, err)
	tree.AssertExpectations(t)
}

func TestRegisterUnknownReferralCode(t *testing.T) {
	users := new(MockUserRepository)
	users.On("FindByReferralCode", mock.Anything, "NOSUCHCD").Return(nil, errors.ErrUserNotFound)

	svc := newService(users, new(MockWalletRepository), new(MockTreeRepository))
	resp, err := svc.Register(context.Background(), registerRequest("NOSUCHCD"))

	assert.ErrorIs(t, err, errors.ErrSponsorNotFound)
	assert.Nil(t, resp)
	users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestLoginIssuesToken(t *testing.T) {
	users := new(MockUserRepository)
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	assert.NoError(t, err)

	user := &domain.User{
		ID:           uuid.New(),
		Email:        "member@example.com",
		PasswordHash: string(hash),
		IsActive:     true,
	}
	users.On("FindByEmail", mock.Anything, "member@example.com").Return(user, nil)
	users.On("UpdateLastLogin", mock.Anything, user.ID.String()).Return(nil)

	svc := newService(users, new(MockWalletRepository), new(MockTreeRepository))
	resp, err := svc.Login(context.Background(), &LoginRequest{
		Email:    "member@example.com",
		Password: "correct horse",
	})

	assert.NoError(t, err)
	assert.NotEmpty(t, resp.RefreshToken)

	parsed, err := jwt.Parse(resp.AccessToken, func(t *jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	})
	assert.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, user.ID.String(), claims["user_id"])
	assert.Equal(t, false, claims["is_admin"])
}

func TestLoginWrongPassword(t *testing.T) {
	users := new(MockUserRepository)
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	user := &domain.User{ID: uuid.New(), PasswordHash: string(hash), IsActive: true}
	users.On("FindByEmail", mock.Anything, "member@example.com").Return(user, nil)

	svc := newService(users, new(MockWalletRepository), new(MockTreeRepository))
	_, err := svc.Login(context.Background(), &LoginRequest{
		Email:    "member@example.com",
		Password: "wrong horse",
	})

	assert.ErrorIs(t, err, errors.ErrInvalidCredentials)
}

func TestLoginInactiveUser(t *testing.T) {
	users := new(MockUserRepository)
	user := &domain.User{ID: uuid.New(), IsActive: false}
	users.On("FindByEmail", mock.Anything, "member@example.com").Return(user, nil)

	svc := newService(users, new(MockWalletRepository), new(MockTreeRepository))
	_, err := svc.Login(context.Background(), &LoginRequest{Email: "member@example.com", Password: "any"})

	assert.ErrorIs(t, err, errors.ErrInvalidCredentials)
}

func TestLoginLastLoginFailureIsNonFatal(t *testing.T) {
	users := new(MockUserRepository)
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	user := &domain.User{ID: uuid.New(), PasswordHash: string(hash), IsActive: true}
	users.On("FindByEmail", mock.Anything, "member@example.com").Return(user, nil)
	users.On("UpdateLastLogin", mock.Anything, user.ID.String()).Return(assert.AnError)

	svc := newService(users, new(MockWalletRepository), new(MockTreeRepository))
	resp, err := svc.Login(context.Background(), &LoginRequest{
		Email:    "member@example.com",
		Password: "correct horse",
	})

	assert.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
}
