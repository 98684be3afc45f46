package service

import "errors"

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("otp not found")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrExpired           = errors.New("otp expired")
	ErrDispatch          = errors.New("email dispatch failed")
	ErrDependency        = errors.New("dependency failure")
	ErrThrottled         = errors.New("too many requests")
)
