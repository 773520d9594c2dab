package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"usersvc/internal/models"
	"usersvc/internal/repositories"
	"usersvc/internal/services"
	"usersvc/pkg/cache"
	appErr "usersvc/pkg/errors"
	"usersvc/pkg/rabbitmq"
)

// MockUserRepository is a mock implementation of repositories.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) FindAll(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockUserRepository) FindByUserID(ctx context.Context, userID int64) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) ExistsByUserID(ctx context.Context, userID int64) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserRepository) UpdateByUserID(ctx context.Context, userID int64, update *models.UserUpdate) (*models.User, error) {
	args := m.Called(ctx, userID, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) DeleteByUserID(ctx context.Context, userID int64) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *MockUserRepository) ListOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Order), args.Error(1)
}

func (m *MockUserRepository) AppendOrder(ctx context.Context, userID int64, order models.Order) error {
	return m.Called(ctx, userID, order).Error(0)
}

func (m *MockUserRepository) SumOrderTotal(ctx context.Context, userID int64) (float64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockUserRepository) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// MockPublisher records published events.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishUserEvent(event string, payload map[string]interface{}) error {
	return m.Called(event, payload).Error(0)
}

var ctx = context.Background()

func newService(repo *MockUserRepository, pub services.EventPublisher) *services.UserService {
	return services.NewUserService(repo, pub, nil, time.Minute, bcrypt.MinCost, zap.NewNop())
}

func sampleUser() *models.User {
	return &models.User{
		UserID:   1,
		Username: "alice",
		Password: "secret",
		FullName: models.FullName{FirstName: "Alice", LastName: "Smith"},
		Age:      30,
		Email:    "alice@example.com",
		IsActive: true,
		Hobbies:  []string{"chess"},
		Address:  models.Address{Street: "Main St", City: "Springfield", Country: "USA"},
	}
}

func TestUserService_GetAllUsers(t *testing.T) {
	mockRepo := new(MockUserRepository)
	service := newService(mockRepo, nil)

	expected := []models.User{*sampleUser()}
	mockRepo.On("FindAll", ctx).Return(expected, nil).Once()

	users, err := service.GetAllUsers(ctx)

	assert.NoError(t, err)
	assert.Equal(t, expected, users)
	mockRepo.AssertExpectations(t)

	mockRepo.On("FindAll", ctx).Return(nil, errors.New("connection reset")).Once()
	_, err = service.GetAllUsers(ctx)
	assert.True(t, appErr.IsCode(err, appErr.CodeInternal))
}

func TestUserService_GetUser(t *testing.T) {
	mockRepo := new(MockUserRepository)
	service := newService(mockRepo, nil)

	expected := sampleUser()
	mockRepo.On("FindByUserID", ctx, int64(1)).Return(expected, nil).Once()
	user, err := service.GetUser(ctx, 1)
	assert.NoError(t, err)
	assert.Equal(t, expected, user)

	mockRepo.On("FindByUserID", ctx, int64(99)).Return(nil, repositories.ErrUserNotFound).Once()
	_, err = service.GetUser(ctx, 99)
	require.Error(t, err)
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))
	assert.Contains(t, err.Error(), "User with userId 99 doesn't exist")
	mockRepo.AssertExpectations(t)
}

func TestUserService_GetUserReadsThroughCache(t *testing.T) {
	mr := miniredis.RunT(t)
	c := cache.New(mr.Addr(), "", 0, zap.NewNop())
	defer c.Close()

	mockRepo := new(MockUserRepository)
	service := services.NewUserService(mockRepo, nil, c, time.Minute, bcrypt.MinCost, zap.NewNop())

	expected := sampleUser()
	expected.Password = ""
	mockRepo.On("FindByUserID", ctx, int64(1)).Return(expected, nil).Once()

	first, err := service.GetUser(ctx, 1)
	require.NoError(t, err)
	second, err := service.GetUser(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, mr.Exists("user:1"))
	mockRepo.AssertNumberOfCalls(t, "FindByUserID", 1)

	mockRepo.On("ExistsByUserID", ctx, int64(1)).Return(true, nil).Once()
	mockRepo.On("DeleteByUserID", ctx, int64(1)).Return(nil).Once()
	require.NoError(t, service.DeleteUser(ctx, 1))
	assert.False(t, mr.Exists("user:1"))
}

func TestUserService_CreateUser(t *testing.T) {
	mockRepo := new(MockUserRepository)
	pub := new(MockPublisher)
	service := newService(mockRepo, pub)

	input := sampleUser()
	input.Orders = []models.Order{
		{ProductName: "X", Price: 10, Quantity: 2},
		{ProductName: "X", Price: 10, Quantity: 2},
	}

	var stored *models.User
	mockRepo.On("Create", ctx, mock.AnythingOfType("*models.User")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*models.User) }).
		Return(nil).Once()
	pub.On("PublishUserEvent", rabbitmq.EventUserCreated, mock.Anything).Return(nil).Once()

	created, err := service.CreateUser(ctx, input)
	require.NoError(t, err)

	assert.Empty(t, created.Password)
	assert.Len(t, created.Orders, 1)
	require.NotNil(t, stored)
	assert.NotEqual(t, "secret", stored.Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("secret")))
	mockRepo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestUserService_CreateUserConflict(t *testing.T) {
	mockRepo := new(MockUserRepository)
	service := newService(mockRepo, nil)

	mockRepo.On("Create", ctx, mock.Anything).Return(repositories.ErrUserConflict).Once()

	_, err := service.CreateUser(ctx, sampleUser())
	assert.True(t, appErr.IsCode(err, appErr.CodeConflict))
	assert.ErrorIs(t, err, repositories.ErrUserConflict)
}

func TestUserService_CreateUserPublishFailureIsNotReturned(t *testing.T) {
	mockRepo := new(MockUserRepository)
	pub := new(MockPublisher)
	service := newService(mockRepo, pub)

	mockRepo.On("Create", ctx, mock.Anything).Return(nil).Once()
	pub.On("PublishUserEvent", rabbitmq.EventUserCreated, mock.Anything).Return(errors.New("broker down")).Once()

	_, err := service.CreateUser(ctx, sampleUser())
	assert.NoError(t, err)
	pub.AssertExpectations(t)
}

func TestUserService_UpdateUser(t *testing.T) {
	t.Run("hashes a new password", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		service := newService(mockRepo, nil)

		password := "new-secret"
		update := &models.UserUpdate{Password: &password}

		mockRepo.On("ExistsByUserID", ctx, int64(1)).Return(true, nil).Once()
		mockRepo.On("UpdateByUserID", ctx, int64(1), update).Return(sampleUser(), nil).Once()

		_, err := service.UpdateUser(ctx, 1, update)
		require.NoError(t, err)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(*update.Password), []byte("new-secret")))
		mockRepo.AssertExpectations(t)
	})

	t.Run("leaves the hash alone without a password", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		service := newService(mockRepo, nil)

		age := 31
		update := &models.UserUpdate{Age: &age}

		mockRepo.On("ExistsByUserID", ctx, int64(1)).Return(true, nil).Once()
		mockRepo.On("UpdateByUserID", ctx, int64(1), update).Return(sampleUser(), nil).Once()

		_, err := service.UpdateUser(ctx, 1, update)
		require.NoError(t, err)
		assert.Nil(t, update.Password)
	})

	t.Run("unknown user", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		service := newService(mockRepo, nil)

		mockRepo.On("ExistsByUserID", ctx, int64(5)).Return(false, nil).Once()

		_, err := service.UpdateUser(ctx, 5, &models.UserUpdate{})
		assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))
		mockRepo.AssertNotCalled(t, "UpdateByUserID", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("deleted between check and update", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		service := newService(mockRepo, nil)

		mockRepo.On("ExistsByUserID", ctx, int64(5)).Return(true, nil).Once()
		mockRepo.On("UpdateByUserID", ctx, int64(5), mock.Anything).Return(nil, repositories.ErrUserNotFound).Once()

		_, err := service.UpdateUser(ctx, 5, &models.UserUpdate{})
		assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))
	})

	t.Run("username taken", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		service := newService(mockRepo, nil)

		mockRepo.On("ExistsByUserID", ctx, int64(1)).Return(true, nil).Once()
		mockRepo.On("UpdateByUserID", ctx, int64(1), mock.Anything).Return(nil, repositories.ErrUserConflict).Once()

		_, err := service.UpdateUser(ctx, 1, &models.UserUpdate{})
		assert.True(t, appErr.IsCode(err, appErr.CodeConflict))
	})
}

func TestUserService_DeleteUser(t *testing.T) {
	mockRepo := new(MockUserRepository)
	pub := new(MockPublisher)
	service := newService(mockRepo, pub)

	mockRepo.On("ExistsByUserID", ctx, int64(1)).Return(true, nil).Once()
	mockRepo.On("DeleteByUserID", ctx, int64(1)).Return(nil).Once()
	pub.On("PublishUserEvent", rabbitmq.EventUserDeleted, map[string]interface{}{"userId": int64(1)}).Return(nil).Once()

	assert.NoError(t, service.DeleteUser(ctx, 1))

	// a concurrent delete wins the race
	mockRepo.On("ExistsByUserID", ctx, int64(2)).Return(true, nil).Once()
	mockRepo.On("DeleteByUserID", ctx, int64(2)).Return(repositories.ErrUserNotFound).Once()
	err := service.DeleteUser(ctx, 2)
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))

	mockRepo.On("ExistsByUserID", ctx, int64(3)).Return(false, errors.New("timeout")).Once()
	err = service.DeleteUser(ctx, 3)
	assert.True(t, appErr.IsCode(err, appErr.CodeInternal))

	mockRepo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestUserService_Orders(t *testing.T) {
	mockRepo := new(MockUserRepository)
	pub := new(MockPublisher)
	service := newService(mockRepo, pub)

	order := models.Order{ProductName: "X", Price: 10, Quantity: 2}

	mockRepo.On("ExistsByUserID", ctx, int64(1)).Return(true, nil)
	mockRepo.On("AppendOrder", ctx, int64(1), order).Return(nil).Once()
	mockRepo.On("ListOrders", ctx, int64(1)).Return([]models.Order{order}, nil).Once()
	mockRepo.On("SumOrderTotal", ctx, int64(1)).Return(20.0, nil).Once()
	pub.On("PublishUserEvent", rabbitmq.EventOrderAppended, mock.Anything).Return(nil).Once()

	require.NoError(t, service.AddUserOrder(ctx, 1, order))

	orders, err := service.GetUserOrders(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []models.Order{order}, orders)

	total, err := service.GetUserOrdersTotal(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 20.0, total)

	mockRepo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestUserService_OrdersUnknownUser(t *testing.T) {
	mockRepo := new(MockUserRepository)
	service := newService(mockRepo, nil)

	mockRepo.On("ExistsByUserID", ctx, int64(9)).Return(false, nil)

	_, err := service.GetUserOrders(ctx, 9)
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))

	err = service.AddUserOrder(ctx, 9, models.Order{ProductName: "X", Price: 1, Quantity: 1})
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))

	_, err = service.GetUserOrdersTotal(ctx, 9)
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))

	mockRepo.AssertNotCalled(t, "ListOrders", mock.Anything, mock.Anything)
	mockRepo.AssertNotCalled(t, "AppendOrder", mock.Anything, mock.Anything, mock.Anything)
	mockRepo.AssertNotCalled(t, "SumOrderTotal", mock.Anything, mock.Anything)
}

func TestUserService_CreateUserPasswordTooLong(t *testing.T) {
	mockRepo := new(MockUserRepository)
	service := newService(mockRepo, nil)

	user := sampleUser()
	user.Password = strings.Repeat("é", 40)

	_, err := service.CreateUser(ctx, user)
	require.Error(t, err)
	assert.True(t, appErr.IsCode(err, appErr.CodeInvalid))
	mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}
