package service

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"admin-auth/internal/util"
)

var validate = validator.New()

type IssueRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

type VerifyRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
	OTP   string `json:"otp" validate:"required,numeric,len=6"`
}

// Normalize trims and lowercases the email in place, then validates.
func (r *IssueRequest) Normalize() error {
	r.Email = util.NormalizeEmail(r.Email)
	return validateRequest(r, r.Email)
}

func (r *VerifyRequest) Normalize() error {
	r.Email = util.NormalizeEmail(r.Email)
	r.OTP = strings.TrimSpace(r.OTP)
	return validateRequest(r, r.Email)
}

func validateRequest(req interface{}, email string) error {
	if err := validate.Struct(req); err != nil {
		var fields []string
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s:%s", strings.ToLower(fe.Field()), fe.Tag()))
			}
		}
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(fields, ","))
	}
	if util.ContainsSuspicious(email) {
		return fmt.Errorf("%w: email contains forbidden characters", ErrValidation)
	}
	return nil
}
