// Package payment talks to the payment provider: authorize a charge when a
// session is booked, confirm it before the session is confirmed, refund it on
// cancellation.
package payment

import (
	"context"
	"errors"
)

// Status состояние платежа у провайдера
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusPending   Status = "pending"
	StatusFailed    Status = "failed"
)

// ErrDeclined провайдер отказал в авторизации
var ErrDeclined = errors.New("payment declined")

// Gateway абстракция платёжного провайдера
type Gateway interface {
	// Authorize резервирует сумму и возвращает ссылку на платёж
	Authorize(ctx context.Context, amount int64, currency string, metadata map[string]string) (string, error)
	// Confirm возвращает текущее состояние платежа
	Confirm(ctx context.Context, ref string) (Status, error)
	// Refund возвращает деньги (или снимает авторизацию) по платежу
	Refund(ctx context.Context, ref string, amount int64, reason string) (Status, error)
}

// MetadataIdempotencyKey ключ метаданных, который провайдер использует как Idempotency-Key
const MetadataIdempotencyKey = "idempotency_key"
