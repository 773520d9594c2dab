package validation

import "usersvc/internal/models"

type orderRequest struct {
	ProductName *string  `json:"productName" validate:"required,min=1,max=255"`
	Price       *float64 `json:"price" validate:"required,gte=0"`
	Quantity    *int     `json:"quantity" validate:"required,gt=0"`
}

func (r *orderRequest) toModel() models.Order {
	return models.Order{ProductName: *r.ProductName, Price: *r.Price, Quantity: *r.Quantity}
}

// ParseOrder validates a single order payload.
func ParseOrder(body []byte) (*models.Order, error) {
	var req orderRequest
	if err := decodeAndValidate(body, &req, nil); err != nil {
		return nil, err
	}
	order := req.toModel()
	return &order, nil
}
