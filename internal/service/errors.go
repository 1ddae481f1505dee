package service

import "errors"

var (
	ErrProductNotFound      = errors.New("product not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrInvalidSettings      = errors.New("invalid alert settings")
)
