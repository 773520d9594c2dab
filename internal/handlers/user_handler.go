package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"usersvc/internal/services"
	"usersvc/internal/validation"
	appErr "usersvc/pkg/errors"
)

// UserHandler handles HTTP requests for users and their orders.
type UserHandler struct {
	service *services.UserService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service *services.UserService) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// RegisterRoutes registers the user routes under router.
func (h *UserHandler) RegisterRoutes(router fiber.Router) {
	userRoutes := router.Group("/users")
	userRoutes.Get("/", h.HandleGetUsers)
	userRoutes.Post("/", h.HandleCreateUser)
	userRoutes.Get("/:userId", h.HandleGetUser)
	userRoutes.Put("/:userId", h.HandleUpdateUser)
	userRoutes.Delete("/:userId", h.HandleDeleteUser)
	userRoutes.Get("/:userId/orders", h.HandleGetOrders)
	userRoutes.Put("/:userId/orders", h.HandleAddOrder)
	userRoutes.Get("/:userId/orders/total-price", h.HandleGetOrdersTotal)
}

// HandleGetUsers lists every user.
func (h *UserHandler) HandleGetUsers(c *fiber.Ctx) error {
	users, err := h.service.GetAllUsers(c.UserContext())
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "Users fetched successfully!", users)
}

// HandleGetUser returns one user.
func (h *UserHandler) HandleGetUser(c *fiber.Ctx) error {
	userID, err := userIDParam(c)
	if err != nil {
		return err
	}
	user, err := h.service.GetUser(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "User fetched successfully!", user)
}

// HandleCreateUser validates the body and stores a new user.
func (h *UserHandler) HandleCreateUser(c *fiber.Ctx) error {
	user, err := validation.ParseUser(c.Body())
	if err != nil {
		return err
	}
	created, err := h.service.CreateUser(c.UserContext(), user)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, "User created successfully!", created)
}

// HandleUpdateUser applies a partial update.
func (h *UserHandler) HandleUpdateUser(c *fiber.Ctx) error {
	userID, err := userIDParam(c)
	if err != nil {
		return err
	}
	update, err := validation.ParseUserUpdate(c.Body())
	if err != nil {
		return err
	}
	user, err := h.service.UpdateUser(c.UserContext(), userID, update)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "User updated successfully!", user)
}

// HandleDeleteUser removes a user.
func (h *UserHandler) HandleDeleteUser(c *fiber.Ctx) error {
	userID, err := userIDParam(c)
	if err != nil {
		return err
	}
	if err := h.service.DeleteUser(c.UserContext(), userID); err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "User deleted successfully!", nil)
}

// HandleGetOrders lists a user's orders.
func (h *UserHandler) HandleGetOrders(c *fiber.Ctx) error {
	userID, err := userIDParam(c)
	if err != nil {
		return err
	}
	orders, err := h.service.GetUserOrders(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "Order fetched successfully!", fiber.Map{"orders": orders})
}

// HandleAddOrder appends one order to a user.
func (h *UserHandler) HandleAddOrder(c *fiber.Ctx) error {
	userID, err := userIDParam(c)
	if err != nil {
		return err
	}
	order, err := validation.ParseOrder(c.Body())
	if err != nil {
		return err
	}
	if err := h.service.AddUserOrder(c.UserContext(), userID, *order); err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "Order created successfully!", nil)
}

// HandleGetOrdersTotal returns the total price of a user's orders.
func (h *UserHandler) HandleGetOrdersTotal(c *fiber.Ctx) error {
	userID, err := userIDParam(c)
	if err != nil {
		return err
	}
	total, err := h.service.GetUserOrdersTotal(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "Total price calculated successfully!", fiber.Map{"totalPrice": total})
}

func userIDParam(c *fiber.Ctx) (int64, error) {
	userID, err := strconv.ParseInt(c.Params("userId"), 10, 64)
	if err != nil {
		return 0, appErr.Invalid("Validation failed", map[string]string{"userId": "must be an integer"})
	}
	return userID, nil
}
