// Package query is the read-only surface over the contract store. Nothing
// here mutates state or calls the ledger.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/timelock/internal/contract"
	"github.com/roach88/timelock/internal/digest"
	"github.com/roach88/timelock/internal/store"
)

// Version is the engine version reported to callers.
const Version = "1.0.0"

// Service answers queries against a store.
type Service struct {
	store store.Store
}

// NewService creates a Service.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// Get returns the contract with the given id, or a NotFound error.
func (s *Service) Get(ctx context.Context, id string) (contract.Contract, error) {
	c, err := s.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return contract.Contract{}, contract.NewError(contract.CodeNotFound, contract.MsgNotFound).WithLock(id)
	}
	if err != nil {
		return contract.Contract{}, fmt.Errorf("get %s: %w", id, err)
	}
	return c, nil
}

// All returns every contract.
func (s *Service) All(ctx context.Context) ([]contract.Entry, error) {
	return s.List(ctx, store.Filter{})
}

// BySender returns contracts created by sender.
func (s *Service) BySender(ctx context.Context, sender string) ([]contract.Entry, error) {
	return s.List(ctx, store.Filter{Sender: sender})
}

// ByReceiver returns contracts payable to receiver.
func (s *Service) ByReceiver(ctx context.Context, receiver string) ([]contract.Entry, error) {
	return s.List(ctx, store.Filter{Receiver: receiver})
}

// Active returns contracts that are neither withdrawn nor refunded.
func (s *Service) Active(ctx context.Context) ([]contract.Entry, error) {
	return s.List(ctx, store.Filter{Status: store.StatusActive})
}

// Expired returns active contracts whose timelock has passed at now.
// These are the ones a sender can refund.
func (s *Service) Expired(ctx context.Context, now uint64) ([]contract.Entry, error) {
	return s.List(ctx, store.Filter{Status: store.StatusExpired, Now: now})
}

// List returns contracts matching an arbitrary filter.
func (s *Service) List(ctx context.Context, f store.Filter) ([]contract.Entry, error) {
	entries, err := s.store.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	return entries, nil
}

// Count returns the number of contracts ever created.
func (s *Service) Count(ctx context.Context) (int, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count contracts: %w", err)
	}
	return n, nil
}

// History returns the lifecycle events of one contract. Unknown ids are a
// NotFound error, not an empty history.
func (s *Service) History(ctx context.Context, id string) ([]contract.Event, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	events, err := s.store.Events(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", id, err)
	}
	return events, nil
}

// HashPreimage returns the hashlock for preimage.
func HashPreimage(preimage string) string {
	return digest.HashString(preimage)
}

// VerifyPreimage reports whether preimage unlocks hashlock.
func VerifyPreimage(preimage, hashlock string) bool {
	return digest.VerifyPreimage(preimage, hashlock)
}

// ErrNoIdentity is returned by Caller when no identity is left after
// trimming.
var ErrNoIdentity = errors.New("caller identity is empty")

// Caller normalizes the identity the host resolved for the current request.
// Surrounding whitespace is dropped.
func Caller(identity string) (string, error) {
	id := strings.TrimSpace(identity)
	if id == "" {
		return "", ErrNoIdentity
	}
	return id, nil
}
