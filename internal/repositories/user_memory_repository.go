package repositories

import (
	"context"
	"sync"

	"usersvc/internal/models"
)

// MemoryUserRepository is an in-memory implementation of UserRepository.
type MemoryUserRepository struct {
	mu       sync.RWMutex
	users    map[int64]*models.User
	sequence []int64 // insertion order
}

// NewMemoryUserRepository creates a new instance of MemoryUserRepository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users: make(map[int64]*models.User),
	}
}

func cloneUser(u models.User) models.User {
	out := u
	if u.Hobbies != nil {
		out.Hobbies = append([]string{}, u.Hobbies...)
	}
	if u.Orders != nil {
		out.Orders = append([]models.Order{}, u.Orders...)
	}
	return out
}

// FindAll returns all users in insertion order.
func (r *MemoryUserRepository) FindAll(ctx context.Context) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]models.User, 0, len(r.sequence))
	for _, id := range r.sequence {
		u := cloneUser(*r.users[id])
		project(&u)
		users = append(users, u)
	}
	return users, nil
}

// FindByUserID returns a user by its userId.
func (r *MemoryUserRepository) FindByUserID(ctx context.Context, userID int64) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	u := cloneUser(*rec)
	project(&u)
	return &u, nil
}

// ExistsByUserID reports whether a user with userId is stored.
func (r *MemoryUserRepository) ExistsByUserID(ctx context.Context, userID int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.users[userID]
	return ok, nil
}

func (r *MemoryUserRepository) usernameTaken(username string, except int64) bool {
	for id, rec := range r.users {
		if id != except && rec.Username == username {
			return true
		}
	}
	return false
}

// Create adds a new user.
func (r *MemoryUserRepository) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.UserID]; ok || r.usernameTaken(user.Username, user.UserID) {
		return ErrUserConflict
	}
	stored := cloneUser(*user)
	if stored.Orders == nil {
		stored.Orders = []models.Order{}
	}
	r.users[user.UserID] = &stored
	r.sequence = append(r.sequence, user.UserID)
	return nil
}

// UpdateByUserID applies a partial update and returns the updated user.
func (r *MemoryUserRepository) UpdateByUserID(ctx context.Context, userID int64, update *models.UserUpdate) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	if update.Username != nil && r.usernameTaken(*update.Username, userID) {
		return nil, ErrUserConflict
	}
	update.Apply(rec)

	u := cloneUser(*rec)
	project(&u)
	return &u, nil
}

// DeleteByUserID removes a user by its userId.
func (r *MemoryUserRepository) DeleteByUserID(ctx context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[userID]; !ok {
		return ErrUserNotFound
	}
	delete(r.users, userID)
	for i, id := range r.sequence {
		if id == userID {
			r.sequence = append(r.sequence[:i], r.sequence[i+1:]...)
			break
		}
	}
	return nil
}

// ListOrders returns the orders of a user.
func (r *MemoryUserRepository) ListOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return append([]models.Order{}, rec.Orders...), nil
}

// AppendOrder adds an order unless an identical one is already present.
func (r *MemoryUserRepository) AppendOrder(ctx context.Context, userID int64, order models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	for _, o := range rec.Orders {
		if o == order {
			return nil
		}
	}
	rec.Orders = append(rec.Orders, order)
	return nil
}

// SumOrderTotal sums price times quantity over a user's orders.
func (r *MemoryUserRepository) SumOrderTotal(ctx context.Context, userID int64) (float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.users[userID]
	if !ok {
		return 0, ErrUserNotFound
	}
	var total float64
	for _, o := range rec.Orders {
		total += o.Total()
	}
	return total, nil
}

// Ping always succeeds.
func (r *MemoryUserRepository) Ping(ctx context.Context) error { return nil }
