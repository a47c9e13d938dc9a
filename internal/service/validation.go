package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Freeeeeet/coach_scheduler/internal/apperrors"
)

// NewValidator создаёт validator с правилами, которые используют запросы сервисов
func NewValidator() *validator.Validate {
	v := validator.New()
	// длительность занятия кратна 15 минутам
	_ = v.RegisterValidation("quarter", func(fl validator.FieldLevel) bool {
		return fl.Field().Int()%15 == 0
	})
	return v
}

// invalid переводит ошибку validator в ValidationError с перечнем полей
func invalid(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.Validation("invalid payload: %v", err)
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			fields = append(fields, fmt.Sprintf("%s (%s=%s)", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
		}
	}
	return apperrors.Validation("invalid payload: %s", strings.Join(fields, ", "))
}
