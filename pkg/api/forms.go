package api

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"linkshare/pkg/storage"
)

const maxCommentLen = 1000

type registerRequest struct {
	Username string `label:"Username" validate:"required,min=3,max=32"`
	Email    string `label:"Email" validate:"required,email,max=254"`
	// bcrypt ignores everything past 72 bytes.
	Password string `label:"Password" validate:"required,min=8,max=72"`
}

type loginRequest struct {
	Email    string `label:"Email" validate:"required,email"`
	Password string `label:"Password" validate:"required"`
}

type postRequest struct {
	Title    string `label:"Title" validate:"required,max=200"`
	Link     string `label:"Link" validate:"required,http_url,max=2048"`
	Category string `label:"Category" validate:"required,max=50"`
}

type commentRequest struct {
	Text string `label:"Comment text" validate:"required,max=1000"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if l := f.Tag.Get("label"); l != "" {
			return l
		}
		return f.Name
	})
	return v
}

func parseRegister(r *http.Request) (registerRequest, error) {
	if err := r.ParseForm(); err != nil {
		return registerRequest{}, err
	}
	return registerRequest{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}, nil
}

func parseLogin(r *http.Request) (loginRequest, error) {
	if err := r.ParseForm(); err != nil {
		return loginRequest{}, err
	}
	return loginRequest{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}, nil
}

func parsePost(r *http.Request) (postRequest, error) {
	if err := r.ParseForm(); err != nil {
		return postRequest{}, err
	}
	return postRequest{
		Title:    strings.TrimSpace(r.PostFormValue("title")),
		Link:     strings.TrimSpace(r.PostFormValue("link")),
		Category: storage.NormalizeCategory(r.PostFormValue("category")),
	}, nil
}

func parseComment(r *http.Request) (commentRequest, error) {
	if err := r.ParseForm(); err != nil {
		return commentRequest{}, err
	}
	return commentRequest{Text: strings.TrimSpace(r.PostFormValue("text"))}, nil
}

// validationMessage turns the first failed rule of err into a message fit
// for the user.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request"
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return "Invalid email address"
	case "http_url":
		return fmt.Sprintf("%s must be a valid http(s) URL", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
