package repositories

import (
	"context"
	"errors"

	"usersvc/internal/models"
)

var (
	// ErrUserNotFound is returned when no user has the requested userId.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserConflict is returned when a userId or username is already taken.
	ErrUserConflict = errors.New("user already exists")
)

// UserRepository defines the interface for user data access. Users are addressed by their
// business key (userId); returned users never carry the password hash.
type UserRepository interface {
	FindAll(ctx context.Context) ([]models.User, error)
	FindByUserID(ctx context.Context, userID int64) (*models.User, error)
	ExistsByUserID(ctx context.Context, userID int64) (bool, error)
	Create(ctx context.Context, user *models.User) error
	UpdateByUserID(ctx context.Context, userID int64, update *models.UserUpdate) (*models.User, error)
	DeleteByUserID(ctx context.Context, userID int64) error
	ListOrders(ctx context.Context, userID int64) ([]models.Order, error)
	AppendOrder(ctx context.Context, userID int64, order models.Order) error
	SumOrderTotal(ctx context.Context, userID int64) (float64, error)
	Ping(ctx context.Context) error
}

// project strips the password and replaces nil slices so JSON renders [] instead of null.
func project(u *models.User) {
	u.Password = ""
	if u.Hobbies == nil {
		u.Hobbies = []string{}
	}
	if u.Orders == nil {
		u.Orders = []models.Order{}
	}
}
