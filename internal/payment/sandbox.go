package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

type sandboxCharge struct {
	amount   int64
	currency string
	status   Status
	refunded int64
}

// Sandbox внутрипроцессный провайдер для разработки и тестов.
// Авторизации сразу считаются успешными, пока не задано иное.
type Sandbox struct {
	mu      sync.Mutex
	charges map[string]*sandboxCharge

	authorizeErr error
	confirmErr   error
	refundErr    error
	nextStatus   Status
}

// NewSandbox создаёт пустую песочницу
func NewSandbox() *Sandbox {
	return &Sandbox{
		charges:    make(map[string]*sandboxCharge),
		nextStatus: StatusSucceeded,
	}
}

// FailAuthorize заставляет последующие Authorize возвращать err (nil снимает сбой)
func (s *Sandbox) FailAuthorize(err error) {
	s.mu.Lock()
	s.authorizeErr = err
	s.mu.Unlock()
}

// FailConfirm заставляет последующие Confirm возвращать err
func (s *Sandbox) FailConfirm(err error) {
	s.mu.Lock()
	s.confirmErr = err
	s.mu.Unlock()
}

// FailRefund заставляет последующие Refund возвращать err
func (s *Sandbox) FailRefund(err error) {
	s.mu.Lock()
	s.refundErr = err
	s.mu.Unlock()
}

// SetNextStatus задаёт статус новых авторизаций
func (s *Sandbox) SetNextStatus(status Status) {
	s.mu.Lock()
	s.nextStatus = status
	s.mu.Unlock()
}

// SetStatus меняет статус существующего платежа
func (s *Sandbox) SetStatus(ref string, status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.charges[ref]; ok {
		c.status = status
	}
}

// Refunded сколько возвращено по платежу
func (s *Sandbox) Refunded(ref string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.charges[ref]; ok {
		return c.refunded
	}
	return 0
}

// Authorize implements Gateway.
func (s *Sandbox) Authorize(ctx context.Context, amount int64, currency string, metadata map[string]string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.authorizeErr != nil {
		return "", s.authorizeErr
	}
	if amount < 0 {
		return "", fmt.Errorf("authorize: negative amount")
	}

	ref := "sbx_" + uuid.NewString()
	s.charges[ref] = &sandboxCharge{amount: amount, currency: currency, status: s.nextStatus}
	return ref, nil
}

// Confirm implements Gateway.
func (s *Sandbox) Confirm(ctx context.Context, ref string) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.confirmErr != nil {
		return "", s.confirmErr
	}
	c, ok := s.charges[ref]
	if !ok {
		return StatusFailed, nil
	}
	return c.status, nil
}

// Refund implements Gateway.
func (s *Sandbox) Refund(ctx context.Context, ref string, amount int64, reason string) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refundErr != nil {
		return StatusFailed, s.refundErr
	}
	c, ok := s.charges[ref]
	if !ok {
		return StatusFailed, errors.New("refund: unknown payment reference")
	}
	if c.refunded+amount > c.amount {
		return StatusFailed, errors.New("refund: amount exceeds charge")
	}
	c.refunded += amount
	return StatusSucceeded, nil
}
