package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"usersvc/internal/models"
)

// userRecord is the relational row behind a models.User.
type userRecord struct {
	ID        uint          `gorm:"primaryKey"`
	UserID    int64         `gorm:"uniqueIndex;not null"`
	Username  string        `gorm:"uniqueIndex;type:varchar(100);not null"`
	Password  string        `gorm:"type:varchar(255);not null"`
	FirstName string        `gorm:"type:varchar(20);not null"`
	LastName  string        `gorm:"type:varchar(20);not null"`
	Age       int           `gorm:"not null"`
	Email     string        `gorm:"type:varchar(255);not null"`
	IsActive  bool          `gorm:"not null"`
	Hobbies   []string      `gorm:"serializer:json;type:text"`
	Street    string        `gorm:"type:varchar(255);not null"`
	City      string        `gorm:"type:varchar(255);not null"`
	Country   string        `gorm:"type:varchar(255);not null"`
	Orders    []orderRecord `gorm:"foreignKey:UserRef"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (userRecord) TableName() string { return "users" }

// orderRecord is one order line. The composite unique index gives orders set semantics.
type orderRecord struct {
	ID          uint    `gorm:"primaryKey"`
	UserRef     uint    `gorm:"not null;uniqueIndex:idx_user_order_line"`
	ProductName string  `gorm:"type:varchar(255);not null;uniqueIndex:idx_user_order_line"`
	Price       float64 `gorm:"not null;uniqueIndex:idx_user_order_line"`
	Quantity    int     `gorm:"not null;uniqueIndex:idx_user_order_line"`
}

func (orderRecord) TableName() string { return "user_orders" }

func toUserRecord(u *models.User) userRecord {
	return userRecord{
		UserID:    u.UserID,
		Username:  u.Username,
		Password:  u.Password,
		FirstName: u.FullName.FirstName,
		LastName:  u.FullName.LastName,
		Age:       u.Age,
		Email:     u.Email,
		IsActive:  u.IsActive,
		Hobbies:   u.Hobbies,
		Street:    u.Address.Street,
		City:      u.Address.City,
		Country:   u.Address.Country,
	}
}

func (rec userRecord) toModel() models.User {
	u := models.User{
		UserID:   rec.UserID,
		Username: rec.Username,
		FullName: models.FullName{FirstName: rec.FirstName, LastName: rec.LastName},
		Age:      rec.Age,
		Email:    rec.Email,
		IsActive: rec.IsActive,
		Hobbies:  rec.Hobbies,
		Address:  models.Address{Street: rec.Street, City: rec.City, Country: rec.Country},
		Orders:   make([]models.Order, 0, len(rec.Orders)),
	}
	for _, o := range rec.Orders {
		u.Orders = append(u.Orders, o.toModel())
	}
	project(&u)
	return u
}

func (o orderRecord) toModel() models.Order {
	return models.Order{ProductName: o.ProductName, Price: o.Price, Quantity: o.Quantity}
}

// MigrateGORM creates or updates the users and user_orders tables.
func MigrateGORM(db *gorm.DB) error {
	if err := db.AutoMigrate(&userRecord{}, &orderRecord{}); err != nil {
		return fmt.Errorf("failed to migrate user tables: %w", err)
	}
	return nil
}

// GORMUserRepository is a GORM implementation of UserRepository. The *gorm.DB must be opened
// with TranslateError so unique violations surface as gorm.ErrDuplicatedKey.
type GORMUserRepository struct {
	db *gorm.DB
}

// NewGORMUserRepository creates a new instance of GORMUserRepository.
func NewGORMUserRepository(db *gorm.DB) *GORMUserRepository {
	return &GORMUserRepository{
		db: db,
	}
}

func orderedOrders(db *gorm.DB) *gorm.DB { return db.Order("id") }

// FindAll retrieves all users from the database.
func (r *GORMUserRepository) FindAll(ctx context.Context) ([]models.User, error) {
	var records []userRecord
	if err := r.db.WithContext(ctx).Preload("Orders", orderedOrders).Order("id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to get all users: %w", err)
	}
	users := make([]models.User, 0, len(records))
	for _, rec := range records {
		users = append(users, rec.toModel())
	}
	return users, nil
}

// FindByUserID retrieves a single user by its userId.
func (r *GORMUserRepository) FindByUserID(ctx context.Context, userID int64) (*models.User, error) {
	var rec userRecord
	if err := r.db.WithContext(ctx).Preload("Orders", orderedOrders).Where("user_id = ?", userID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	u := rec.toModel()
	return &u, nil
}

// ExistsByUserID reports whether a user with userId is stored.
func (r *GORMUserRepository) ExistsByUserID(ctx context.Context, userID int64) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&userRecord{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return false, fmt.Errorf("failed to check user %d: %w", userID, err)
	}
	return n > 0, nil
}

// Create inserts the user row and its orders in one transaction.
func (r *GORMUserRepository) Create(ctx context.Context, user *models.User) error {
	rec := toUserRecord(user)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&rec).Error; err != nil {
			return err
		}
		for _, o := range user.Orders {
			if err := insertOrder(tx, rec.ID, o); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrUserConflict
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// UpdateByUserID writes only the columns present in update and returns the fresh row.
func (r *GORMUserRepository) UpdateByUserID(ctx context.Context, userID int64, update *models.UserUpdate) (*models.User, error) {
	if update.IsEmpty() {
		return r.FindByUserID(ctx, userID)
	}

	var current models.User
	update.Apply(&current)
	rec := toUserRecord(&current)
	rec.UpdatedAt = time.Now()

	columns := []string{"UpdatedAt"}
	if update.Username != nil {
		columns = append(columns, "Username")
	}
	if update.Password != nil {
		columns = append(columns, "Password")
	}
	if update.FullName != nil {
		columns = append(columns, "FirstName", "LastName")
	}
	if update.Age != nil {
		columns = append(columns, "Age")
	}
	if update.Email != nil {
		columns = append(columns, "Email")
	}
	if update.IsActive != nil {
		columns = append(columns, "IsActive")
	}
	if update.Hobbies != nil {
		columns = append(columns, "Hobbies")
	}
	if update.Address != nil {
		columns = append(columns, "Street", "City", "Country")
	}

	err := r.db.WithContext(ctx).Model(&userRecord{}).Where("user_id = ?", userID).Select(columns).Updates(rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUserConflict
		}
		return nil, fmt.Errorf("failed to update user %d: %w", userID, err)
	}
	// A missing row updates nothing; the reload reports it as not found.
	return r.FindByUserID(ctx, userID)
}

// DeleteByUserID deletes a user and its orders.
func (r *GORMUserRepository) DeleteByUserID(ctx context.Context, userID int64) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pk, err := primaryKey(tx, userID)
		if err != nil {
			return err
		}
		if err := tx.Where("user_ref = ?", pk).Delete(&orderRecord{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&userRecord{}, pk)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrUserNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete user %d: %w", userID, err)
	}
	return nil
}

// ListOrders returns a user's orders in insertion order.
func (r *GORMUserRepository) ListOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	db := r.db.WithContext(ctx)
	pk, err := primaryKey(db, userID)
	if err != nil {
		return nil, wrapLookup(err, "list orders", userID)
	}

	var records []orderRecord
	if err := db.Where("user_ref = ?", pk).Order("id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders of user %d: %w", userID, err)
	}
	orders := make([]models.Order, 0, len(records))
	for _, o := range records {
		orders = append(orders, o.toModel())
	}
	return orders, nil
}

// AppendOrder adds an order; an identical order is silently skipped.
func (r *GORMUserRepository) AppendOrder(ctx context.Context, userID int64, order models.Order) error {
	db := r.db.WithContext(ctx)
	pk, err := primaryKey(db, userID)
	if err != nil {
		return wrapLookup(err, "append order", userID)
	}
	if err := insertOrder(db, pk, order); err != nil {
		return fmt.Errorf("failed to append order to user %d: %w", userID, err)
	}
	return nil
}

// SumOrderTotal lets the database compute SUM(price * quantity).
func (r *GORMUserRepository) SumOrderTotal(ctx context.Context, userID int64) (float64, error) {
	db := r.db.WithContext(ctx)
	pk, err := primaryKey(db, userID)
	if err != nil {
		return 0, wrapLookup(err, "sum orders", userID)
	}

	var total float64
	row := db.Model(&orderRecord{}).Where("user_ref = ?", pk).Select("COALESCE(SUM(price * quantity), 0)").Row()
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum orders of user %d: %w", userID, err)
	}
	return total, nil
}

// Ping checks the underlying connection.
func (r *GORMUserRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func primaryKey(db *gorm.DB, userID int64) (uint, error) {
	var rec userRecord
	if err := db.Select("id").Where("user_id = ?", userID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}
	return rec.ID, nil
}

func insertOrder(db *gorm.DB, pk uint, o models.Order) error {
	rec := orderRecord{UserRef: pk, ProductName: o.ProductName, Price: o.Price, Quantity: o.Quantity}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rec).Error
}

func wrapLookup(err error, op string, userID int64) error {
	if errors.Is(err, ErrUserNotFound) {
		return err
	}
	return fmt.Errorf("failed to %s for user %d: %w", op, userID, err)
}
