package tether

import "github.com/go-playground/validator/v10"

// structValidate is the shared validator instance behind StructValidator.
var structValidate = validator.New()

// StructValidator builds a Validator for struct types from `validate`
// struct tags using go-playground/validator.
//
//	type Config struct {
//	    Port int    `validate:"min=1,max=65535"`
//	    Host string `validate:"required"`
//	}
//
//	cfg := tether.New(defaults, tether.WithValidator(tether.StructValidator[Config]()))
//
// The predicate reports acceptance only. When the reason for rejection
// matters, call validator directly or wrap a custom Validator.
func StructValidator[T any]() Validator[T] {
	return func(v T) bool {
		return structValidate.Struct(v) == nil
	}
}
