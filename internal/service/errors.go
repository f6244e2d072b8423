package service

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation оборачивает сообщения о некорректных входных данных.
	ErrValidation = errors.New("validation failed")
	// ErrInsufficientBalance возвращается, если на балансе недостаточно средств.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrTransactionFinalized возвращается при повторном рассмотрении проводки.
	ErrTransactionFinalized = errors.New("transaction already finalized")
	// ErrNotVerified возвращается, если у исполнителя нет допуска к заданиям.
	ErrNotVerified = errors.New("user is not verified")
	// ErrForbidden возвращается, если операция недоступна роли пользователя.
	ErrForbidden = errors.New("forbidden")
	// ErrCampaignUnavailable возвращается, если кампания не может оплатить задание.
	ErrCampaignUnavailable = errors.New("campaign is not available")
	// ErrSelfPurchase возвращается при попытке купить собственный товар.
	ErrSelfPurchase = errors.New("cannot purchase own listing")
	// ErrInvalidState возвращается при недопустимом переходе статуса допуска.
	ErrInvalidState = errors.New("invalid verification state")
	// ErrInvalidCredentials возвращается при неверной паре логин/пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrStorageDisabled возвращается, если объектное хранилище не настроено.
	ErrStorageDisabled = errors.New("file storage is not configured")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
