package serverutils

import (
	"errors"
	"strings"
	"sync"

	"ai-assistant-be/pkg/generation"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type Response[T any] struct {
	Code    int    `json:"code"`
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data,omitempty"`
}

func SuccessResponse[T any](message string, data T) Response[T] {
	return Response[T]{
		Code:    fiber.StatusOK,
		Success: true,
		Message: message,
		Data:    data,
	}
}

func ErrorResponse(code int, message string) Response[any] {
	return Response[any]{
		Code:    code,
		Success: false,
		Message: message,
	}
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// ValidateRequest checks validate struct tags and returns a 400 fiber error
// listing the failing fields.
func ValidateRequest(req interface{}) error {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})

	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Field()+" failed on "+fe.Tag())
	}
	return fiber.NewError(fiber.StatusBadRequest, strings.Join(msgs, ", "))
}

// ErrorHandlerMiddleware turns errors returned by handlers into the JSON
// envelope with a matching status code.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		code := StatusFor(err)
		return ctx.Status(code).JSON(ErrorResponse(code, err.Error()))
	}
}

func StatusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, generation.ErrUnauthenticated):
		return fiber.StatusUnauthorized
	case errors.Is(err, generation.ErrPreconditionFailed):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, generation.ErrSessionNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, generation.ErrClosed):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}
