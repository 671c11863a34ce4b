package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/charlesng35/internai/internal/cache"
	"github.com/charlesng35/internai/pkg/crypto"
)

// ErrFlowStateInvalid is returned for unknown, replayed or expired redirect state.
var ErrFlowStateInvalid = errors.New("flow state: invalid or expired")

const (
	defaultFlowStateTTL = 10 * time.Minute
	flowStatePrefix     = "oauth_state:"
	flowClaimPrefix     = "oauth_state_used:"
)

// FlowState carries what the callback of a redirect login needs to resume.
type FlowState struct {
	Nonce     string    `json:"n"`
	Verifier  string    `json:"v"`
	ReturnURL string    `json:"r"`
	IssuedAt  time.Time `json:"iat"`
}

// FlowStateStore keeps redirect state server side, keyed by the random value
// sent as the OAuth state parameter. Each key can be consumed once.
type FlowStateStore struct {
	store cache.Store
	ttl   time.Duration
	now   func() time.Time
}

// NewFlowStateStore constructs a FlowStateStore over the shared cache.
func NewFlowStateStore(store cache.Store, ttl time.Duration, now func() time.Time) (*FlowStateStore, error) {
	if store == nil {
		return nil, errors.New("flow state: cache store is required")
	}
	if ttl <= 0 {
		ttl = defaultFlowStateTTL
	}
	if now == nil {
		now = time.Now
	}
	return &FlowStateStore{store: store, ttl: ttl, now: now}, nil
}

// TTL reports how long a started flow stays redeemable.
func (s *FlowStateStore) TTL() time.Duration { return s.ttl }

// Begin records a new flow and returns its state key.
func (s *FlowStateStore) Begin(ctx context.Context, returnURL string) (string, FlowState, error) {
	key, err := crypto.GenerateToken(32)
	if err != nil {
		return "", FlowState{}, fmt.Errorf("flow state: generate key: %w", err)
	}
	nonce, err := crypto.GenerateToken(32)
	if err != nil {
		return "", FlowState{}, fmt.Errorf("flow state: generate nonce: %w", err)
	}

	state := FlowState{
		Nonce:     nonce,
		Verifier:  oauth2.GenerateVerifier(),
		ReturnURL: returnURL,
		IssuedAt:  s.now().UTC(),
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return "", FlowState{}, fmt.Errorf("flow state: marshal: %w", err)
	}
	if err := s.store.Set(ctx, flowStatePrefix+key, raw, s.ttl); err != nil {
		return "", FlowState{}, fmt.Errorf("flow state: store: %w", err)
	}
	return key, state, nil
}

// Consume returns the state stored under key and invalidates it. Of two
// concurrent consumers only the first succeeds.
func (s *FlowStateStore) Consume(ctx context.Context, key string) (FlowState, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return FlowState{}, ErrFlowStateInvalid
	}

	raw, ok, err := s.store.Get(ctx, flowStatePrefix+key)
	if err != nil {
		return FlowState{}, fmt.Errorf("flow state: load: %w", err)
	}
	if !ok {
		return FlowState{}, ErrFlowStateInvalid
	}

	claims, _, err := s.store.IncrementWithTTL(ctx, flowClaimPrefix+key, s.ttl)
	if err != nil {
		return FlowState{}, fmt.Errorf("flow state: claim: %w", err)
	}
	if claims > 1 {
		return FlowState{}, ErrFlowStateInvalid
	}
	if err := s.store.Delete(ctx, flowStatePrefix+key); err != nil {
		return FlowState{}, fmt.Errorf("flow state: delete: %w", err)
	}

	var state FlowState
	if err := json.Unmarshal(raw, &state); err != nil || state.IssuedAt.IsZero() {
		return FlowState{}, ErrFlowStateInvalid
	}
	if !s.now().UTC().Before(state.IssuedAt.Add(s.ttl)) {
		return FlowState{}, ErrFlowStateInvalid
	}
	return state, nil
}
