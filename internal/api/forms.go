package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type loginForm struct {
	Username string `validate:"required,max=50"`
	Password string `validate:"required"`
}

type signupForm struct {
	Username string `validate:"required,max=50"`
	Email    string `validate:"required,email,max=100"`
	// bcrypt ignores input past 72 bytes.
	Password string `validate:"required,max=72"`
}

func parseLoginForm(r *http.Request) (loginForm, error) {
	if err := r.ParseForm(); err != nil {
		return loginForm{}, fmt.Errorf("parse form: %w", err)
	}
	form := loginForm{
		Username: strings.TrimSpace(r.PostForm.Get("username")),
		Password: r.PostForm.Get("password"),
	}
	return form, validate.Struct(form)
}

func parseSignupForm(r *http.Request) (signupForm, error) {
	if err := r.ParseForm(); err != nil {
		return signupForm{}, fmt.Errorf("parse form: %w", err)
	}
	form := signupForm{
		Username: strings.TrimSpace(r.PostForm.Get("username")),
		Email:    strings.TrimSpace(r.PostForm.Get("email")),
		Password: r.PostForm.Get("password"),
	}
	return form, validate.Struct(form)
}

// validationMessage turns the first field error into a user-facing notice.
func validationMessage(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return "Invalid form submission"
	}
	fe := errs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "email":
		return "email must be a valid email address"
	}
	return fmt.Sprintf("%s is invalid", field)
}
