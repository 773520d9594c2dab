package validation

import (
	"usersvc/internal/models"
)

type fullNameRequest struct {
	FirstName *string `json:"firstName" validate:"required,min=1,max=20"`
	LastName  *string `json:"lastName" validate:"required,min=1,max=20"`
}

func (r *fullNameRequest) normalize() {
	if r == nil {
		return
	}
	trim(r.FirstName)
	trim(r.LastName)
}

func (r *fullNameRequest) toModel() models.FullName {
	return models.FullName{FirstName: *r.FirstName, LastName: *r.LastName}
}

type addressRequest struct {
	Street  *string `json:"street" validate:"required,max=255"`
	City    *string `json:"city" validate:"required,max=255"`
	Country *string `json:"country" validate:"required,max=255"`
}

func (r *addressRequest) toModel() models.Address {
	return models.Address{Street: *r.Street, City: *r.City, Country: *r.Country}
}

type userRequest struct {
	UserID   *int64           `json:"userId" validate:"required,gt=0"`
	Username *string          `json:"username" validate:"required,min=1,max=100"`
	Password *string          `json:"password" validate:"required,min=1,maxbytes=72"`
	FullName *fullNameRequest `json:"fullName" validate:"required"`
	Age      *int             `json:"age" validate:"required,gte=0"`
	Email    *string          `json:"email" validate:"required,email,max=255"`
	IsActive *bool            `json:"isActive" validate:"required"`
	Hobbies  []string         `json:"hobbies" validate:"required"`
	Address  *addressRequest  `json:"address" validate:"required"`
	Orders   []orderRequest   `json:"orders" validate:"omitempty,dive"`
}

// ParseUser validates a full user payload. Every field except orders is required.
func ParseUser(body []byte) (*models.User, error) {
	var req userRequest
	if err := decodeAndValidate(body, &req, func() { req.FullName.normalize() }); err != nil {
		return nil, err
	}

	orders := make([]models.Order, 0, len(req.Orders))
	for i := range req.Orders {
		orders = append(orders, req.Orders[i].toModel())
	}
	return &models.User{
		UserID:   *req.UserID,
		Username: *req.Username,
		Password: *req.Password,
		FullName: req.FullName.toModel(),
		Age:      *req.Age,
		Email:    *req.Email,
		IsActive: *req.IsActive,
		Hobbies:  append([]string{}, req.Hobbies...),
		Address:  req.Address.toModel(),
		Orders:   orders,
	}, nil
}

type userUpdateRequest struct {
	Username *string          `json:"username" validate:"omitempty,min=1,max=100"`
	Password *string          `json:"password" validate:"omitempty,min=1,maxbytes=72"`
	FullName *fullNameRequest `json:"fullName" validate:"omitempty"`
	Age      *int             `json:"age" validate:"omitempty,gte=0"`
	Email    *string          `json:"email" validate:"omitempty,email,max=255"`
	IsActive *bool            `json:"isActive"`
	Hobbies  *[]string        `json:"hobbies"`
	Address  *addressRequest  `json:"address" validate:"omitempty"`
}

// ParseUserUpdate validates a partial user payload. Provided fields follow the same rules as
// ParseUser; a provided fullName or address must be complete. userId and orders are not
// updatable and are ignored.
func ParseUserUpdate(body []byte) (*models.UserUpdate, error) {
	var req userUpdateRequest
	if err := decodeAndValidate(body, &req, func() { req.FullName.normalize() }); err != nil {
		return nil, err
	}

	upd := &models.UserUpdate{
		Username: req.Username,
		Password: req.Password,
		Age:      req.Age,
		Email:    req.Email,
		IsActive: req.IsActive,
	}
	if req.FullName != nil {
		fn := req.FullName.toModel()
		upd.FullName = &fn
	}
	if req.Address != nil {
		addr := req.Address.toModel()
		upd.Address = &addr
	}
	if req.Hobbies != nil {
		hobbies := append([]string{}, (*req.Hobbies)...)
		upd.Hobbies = &hobbies
	}
	return upd, nil
}
