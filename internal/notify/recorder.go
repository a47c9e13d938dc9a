package notify

import (
	"context"
	"sync"
)

// Sent одно записанное уведомление
type Sent struct {
	UserID int64
	Kind   Kind
	Params Params
}

// Recorder запоминает уведомления вместо отправки; для тестов и dry-run
type Recorder struct {
	mu   sync.Mutex
	sent []Sent
	Err  error
}

// Notify implements Notifier.
func (r *Recorder) Notify(ctx context.Context, userID int64, kind Kind, params Params) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.sent = append(r.sent, Sent{UserID: userID, Kind: kind, Params: params})
	return nil
}

// Sent возвращает копию записанных уведомлений
func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Sent, len(r.sent))
	copy(out, r.sent)
	return out
}

// OfKind возвращает уведомления заданного типа
func (r *Recorder) OfKind(kind Kind) []Sent {
	var out []Sent
	for _, s := range r.Sent() {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}
