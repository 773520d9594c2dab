package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"usersvc/internal/models"
	"usersvc/internal/repositories"
	"usersvc/pkg/cache"
	appErr "usersvc/pkg/errors"
	"usersvc/pkg/rabbitmq"
)

// EventPublisher publishes user lifecycle events. *rabbitmq.Client satisfies it.
type EventPublisher interface {
	PublishUserEvent(event string, payload map[string]interface{}) error
}

// UserService handles business logic related to users and their orders.
type UserService struct {
	repo      repositories.UserRepository
	publisher EventPublisher
	cache     *cache.Client
	cacheTTL  time.Duration
	hashCost  int
	log       *zap.Logger
}

// NewUserService creates a new UserService. publisher and cache may be nil.
func NewUserService(repo repositories.UserRepository, publisher EventPublisher, userCache *cache.Client, cacheTTL time.Duration, hashCost int, log *zap.Logger) *UserService {
	return &UserService{
		repo:      repo,
		publisher: publisher,
		cache:     userCache,
		cacheTTL:  cacheTTL,
		hashCost:  hashCost,
		log:       log,
	}
}

// NotFoundMessage is the client-facing message for an unknown userId.
func NotFoundMessage(userID int64) string {
	return fmt.Sprintf("User with userId %d doesn't exist", userID)
}

func userCacheKey(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

// GetAllUsers retrieves all users.
func (s *UserService) GetAllUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, appErr.Internal(err, "Failed to fetch users")
	}
	return users, nil
}

// GetUser retrieves a single user, reading through the cache.
func (s *UserService) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	key := userCacheKey(userID)
	if raw := s.cache.Get(ctx, key); raw != nil {
		var cached models.User
		if err := json.Unmarshal(raw, &cached); err == nil {
			return &cached, nil
		}
		s.cache.Delete(ctx, key)
	}

	user, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, s.translate(err, userID, "Failed to fetch user")
	}

	if raw, err := json.Marshal(user); err == nil {
		s.cache.Set(ctx, key, raw, s.cacheTTL)
	}
	return user, nil
}

// CreateUser hashes the password and stores a new user. Repeated orders collapse into one.
func (s *UserService) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	user.Orders = models.UniqueOrders(user.Orders)

	hash, err := s.hashPassword(user.Password)
	if err != nil {
		return nil, err
	}
	user.Password = hash

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrUserConflict) {
			return nil, appErr.Wrap(err, appErr.CodeConflict,
				fmt.Sprintf("User with userId %d or username %s already exists", user.UserID, user.Username))
		}
		return nil, appErr.Internal(err, "Failed to create user")
	}

	created := *user
	created.Password = ""
	if created.Hobbies == nil {
		created.Hobbies = []string{}
	}

	s.cache.Delete(ctx, userCacheKey(user.UserID))
	s.publish(rabbitmq.EventUserCreated, user.UserID, map[string]interface{}{"username": user.Username})
	return &created, nil
}

// UpdateUser applies a partial update. A password in the update is re-hashed; without one the
// stored hash is left alone.
func (s *UserService) UpdateUser(ctx context.Context, userID int64, update *models.UserUpdate) (*models.User, error) {
	if err := s.ensureExists(ctx, userID); err != nil {
		return nil, err
	}

	if update.Password != nil {
		hash, err := s.hashPassword(*update.Password)
		if err != nil {
			return nil, err
		}
		update.Password = &hash
	}

	user, err := s.repo.UpdateByUserID(ctx, userID, update)
	if err != nil {
		if errors.Is(err, repositories.ErrUserConflict) {
			return nil, appErr.Wrap(err, appErr.CodeConflict, "Username is already taken")
		}
		return nil, s.translate(err, userID, "Failed to update user")
	}

	s.cache.Delete(ctx, userCacheKey(userID))
	s.publish(rabbitmq.EventUserUpdated, userID, nil)
	return user, nil
}

// DeleteUser removes a user and its orders.
func (s *UserService) DeleteUser(ctx context.Context, userID int64) error {
	if err := s.ensureExists(ctx, userID); err != nil {
		return err
	}
	if err := s.repo.DeleteByUserID(ctx, userID); err != nil {
		return s.translate(err, userID, "Failed to delete user")
	}

	s.cache.Delete(ctx, userCacheKey(userID))
	s.publish(rabbitmq.EventUserDeleted, userID, nil)
	return nil
}

// GetUserOrders lists a user's orders.
func (s *UserService) GetUserOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	if err := s.ensureExists(ctx, userID); err != nil {
		return nil, err
	}
	orders, err := s.repo.ListOrders(ctx, userID)
	if err != nil {
		return nil, s.translate(err, userID, "Failed to fetch orders")
	}
	return orders, nil
}

// AddUserOrder appends an order; an identical existing order is not duplicated.
func (s *UserService) AddUserOrder(ctx context.Context, userID int64, order models.Order) error {
	if err := s.ensureExists(ctx, userID); err != nil {
		return err
	}
	if err := s.repo.AppendOrder(ctx, userID, order); err != nil {
		return s.translate(err, userID, "Failed to add order")
	}

	s.cache.Delete(ctx, userCacheKey(userID))
	s.publish(rabbitmq.EventOrderAppended, userID, map[string]interface{}{
		"productName": order.ProductName,
		"price":       order.Price,
		"quantity":    order.Quantity,
	})
	return nil
}

// GetUserOrdersTotal returns the sum of price times quantity over a user's orders.
func (s *UserService) GetUserOrdersTotal(ctx context.Context, userID int64) (float64, error) {
	if err := s.ensureExists(ctx, userID); err != nil {
		return 0, err
	}
	total, err := s.repo.SumOrderTotal(ctx, userID)
	if err != nil {
		return 0, s.translate(err, userID, "Failed to calculate total price")
	}
	return total, nil
}

// ensureExists is the fast-path not-found check; the storage call that follows stays
// authoritative.
func (s *UserService) ensureExists(ctx context.Context, userID int64) error {
	ok, err := s.repo.ExistsByUserID(ctx, userID)
	if err != nil {
		return appErr.Internal(err, "Failed to look up user")
	}
	if !ok {
		return appErr.Wrap(repositories.ErrUserNotFound, appErr.CodeNotFound, NotFoundMessage(userID))
	}
	return nil
}

func (s *UserService) translate(err error, userID int64, message string) error {
	if errors.Is(err, repositories.ErrUserNotFound) {
		return appErr.Wrap(err, appErr.CodeNotFound, NotFoundMessage(userID))
	}
	return appErr.Internal(err, message)
}

func (s *UserService) hashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), s.hashCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", appErr.Invalid("Validation failed", map[string]string{"password": "must be at most 72 bytes"})
		}
		return "", appErr.Internal(err, "Failed to hash password")
	}
	return string(hash), nil
}

func (s *UserService) publish(event string, userID int64, extra map[string]interface{}) {
	if s.publisher == nil {
		return
	}
	payload := map[string]interface{}{"userId": userID}
	for k, v := range extra {
		payload[k] = v
	}
	if err := s.publisher.PublishUserEvent(event, payload); err != nil {
		s.log.Warn("failed to publish user event", zap.String("event", event), zap.Int64("userId", userID), zap.Error(err))
	}
}
