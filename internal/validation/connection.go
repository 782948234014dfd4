package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/shaiso/Importer/internal/domain"
)

// Сообщения для полей подключения.
var connectionMessages = map[string]string{
	"host":     "Host is required",
	"port":     "Port must be between 1 and 65535",
	"database": "Database name is required",
	"username": "Username is required",
	"password": "Password is required",
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// structValidator возвращает общий экземпляр validator с правилом notblank
// и именами полей из json тегов.
func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		// notblank: строка не пустая после trim
		if err := v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		}); err != nil {
			panic(err)
		}

		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})

		validate = v
	})
	return validate
}

// Connection проверяет параметры подключения.
//
// Все поля проверяются независимо, ошибки возвращаются вместе,
// чтобы UI мог подсветить все невалидные поля сразу.
// Возвращает *ValidationError с заполненным Fields или nil.
func Connection(creds domain.ConnectionCredentials) error {
	err := structValidator().Struct(creds)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &ValidationError{Field: "connection", Message: err.Error()}
	}

	result := &ValidationError{
		Field:   "connection",
		Message: "Invalid connection parameters",
		Fields:  make(map[string]string, len(fieldErrs)),
	}
	for _, fe := range fieldErrs {
		field := fe.Field()
		msg, ok := connectionMessages[field]
		if !ok {
			msg = field + " is invalid"
		}
		result.Fields[field] = msg
	}
	return result
}
