// Package store owns all persisted protocol state: the config singleton, the
// provider registry, and every signal account. Each mutating method is a
// single atomic all-or-nothing transaction; a failed call leaves no partial
// writes behind. The store's writer lock is the serialization point for
// concurrent updates against the same account.
package store

import (
	"sync"

	"github.com/OSINTfan/sso-1/internal/domain/schema"
	"github.com/OSINTfan/sso-1/internal/validation"
)

// canTransition is the explicit state machine for SignalAccount.Status.
// Revoked is terminal except for the idempotent revoke no-op.
func canTransition(from, to schema.AccountStatus) bool {
	switch from {
	case schema.StatusUninitialized:
		return to == schema.StatusActive
	case schema.StatusActive:
		return to == schema.StatusActive || to == schema.StatusRevoked
	case schema.StatusRevoked:
		return false
	default:
		return false
	}
}

// AccountStore is the in-memory system of record. Verification layers never
// touch it directly; they operate on snapshots and the dispatcher commits
// through it.
type AccountStore struct {
	mu       sync.Mutex
	config   *schema.Config
	registry *schema.ProviderRegistry
	accounts map[schema.Digest]*schema.SignalAccount
}

// New returns an empty store with an uninitialized config.
func New() *AccountStore {
	return &AccountStore{
		registry: schema.NewProviderRegistry(),
		accounts: make(map[schema.Digest]*schema.SignalAccount),
	}
}

// InitConfig installs the protocol config singleton. A second call fails.
func (s *AccountStore) InitConfig(cfg schema.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config != nil {
		return ErrAlreadyInitialized
	}
	c := cfg
	s.config = &c
	return nil
}

// Config returns a copy of the protocol config.
func (s *AccountStore) Config() (schema.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config == nil {
		return schema.Config{}, ErrConfigNotInitialized
	}
	return *s.config, nil
}

// UpdateConfig applies mutate to a copy of the config and swaps it in if the
// result still validates. Admin-only.
func (s *AccountStore) UpdateConfig(admin schema.PublicKey, mutate func(*schema.Config)) (schema.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config == nil {
		return schema.Config{}, ErrConfigNotInitialized
	}
	if admin != s.config.Admin {
		return schema.Config{}, ErrUnauthorized
	}
	next := *s.config
	mutate(&next)
	next.Admin = s.config.Admin // admin handover is not a config edit
	if err := next.Validate(); err != nil {
		return schema.Config{}, err
	}
	s.config = &next
	return next, nil
}

// SetPaused flips the protocol pause flag. Admin-only, idempotent.
func (s *AccountStore) SetPaused(admin schema.PublicKey, paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config == nil {
		return ErrConfigNotInitialized
	}
	if admin != s.config.Admin {
		return ErrUnauthorized
	}
	s.config.Paused = paused
	return nil
}

// RegisterProvider allowlists an enclave measurement. Admin-only; a duplicate
// active measurement is rejected. Re-registering a revoked measurement
// creates a fresh entry.
func (s *AccountStore) RegisterProvider(admin schema.PublicKey, entry schema.ProviderEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config == nil {
		return ErrConfigNotInitialized
	}
	if admin != s.config.Admin {
		return ErrUnauthorized
	}
	if s.config.Paused {
		return ErrProtocolPaused
	}
	if !s.registry.Register(entry) {
		return ErrAlreadyRegistered
	}
	s.config.TotalProviders++
	return nil
}

// RevokeProvider deactivates the active entry for a measurement. Admin-only;
// unknown measurements fail with NotFound.
func (s *AccountStore) RevokeProvider(admin schema.PublicKey, mrEnclave schema.Digest, slot uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config == nil {
		return ErrConfigNotInitialized
	}
	if admin != s.config.Admin {
		return ErrUnauthorized
	}
	if !s.registry.Revoke(mrEnclave, slot) {
		return ErrNotFound
	}
	return nil
}

// Registry returns a deep copy for read-side verification.
func (s *AccountStore) Registry() *schema.ProviderRegistry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Clone()
}

// InitSignalAccount creates the account for (assetPair, authority).
// Caller must be the declared authority; an existing account fails with
// AlreadyInitialized regardless of its status.
func (s *AccountStore) InitSignalAccount(caller, authority schema.PublicKey, assetPair [32]byte) (*schema.SignalAccount, error) {
	if caller != authority {
		return nil, ErrUnauthorized
	}
	key := schema.DeriveAccountKey(assetPair, authority)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config == nil {
		return nil, ErrConfigNotInitialized
	}
	if s.config.Paused {
		return nil, ErrProtocolPaused
	}
	if _, exists := s.accounts[key]; exists {
		return nil, ErrAlreadyInitialized
	}
	if !canTransition(schema.StatusUninitialized, schema.StatusActive) {
		return nil, ErrInvalidTransition
	}

	acct := &schema.SignalAccount{
		Version:   schema.SpecVersion,
		Bump:      key[len(key)-1],
		Authority: authority,
		AssetPair: assetPair,
		Status:    schema.StatusActive,
	}
	s.accounts[key] = acct
	cp := *acct
	return &cp, nil
}

// GetSignal returns a copy of the account. Reads are permitted in every
// state, Revoked included, for audit.
func (s *AccountStore) GetSignal(key schema.Digest) (*schema.SignalAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[key]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *acct
	return &cp, nil
}

// CommitUpdate atomically replaces the three embedded structures, advances
// last_update_slot to the receipt slot, and increments update_count.
//
// Status and monotonicity are re-evaluated here, under the writer lock: of
// two concurrently verified updates the second sees the first's committed
// last_update_slot and is rejected if it would regress.
func (s *AccountStore) CommitUpdate(key schema.Digest, mc *schema.MarketContext, sa *schema.SignalAssessment, receipt *schema.TeeReceipt) (*schema.SignalAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[key]
	if !ok {
		return nil, ErrNotFound
	}
	if acct.Status == schema.StatusRevoked {
		return nil, ErrAccountRevoked
	}
	if !canTransition(acct.Status, schema.StatusActive) {
		return nil, ErrInvalidTransition
	}
	if err := validation.ValidateMonotonicity(receipt.TimestampSlot, acct.LastUpdateSlot); err != nil {
		return nil, err
	}

	acct.MarketContext = *mc
	acct.SignalAssessment = *sa
	acct.TeeReceipt = *receipt
	acct.LastUpdateSlot = receipt.TimestampSlot
	acct.UpdateCount++
	if s.config != nil {
		s.config.TotalSignals++
	}
	cp := *acct
	return &cp, nil
}

// RevokeSignal transitions the account to Revoked. Authority-only. Revoking
// an already-revoked account is a successful no-op (changed=false) so that
// two racing revokes cannot half-fail.
func (s *AccountStore) RevokeSignal(key schema.Digest, caller schema.PublicKey) (changed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[key]
	if !ok {
		return false, ErrNotFound
	}
	if caller != acct.Authority {
		return false, ErrUnauthorized
	}
	if acct.Status == schema.StatusRevoked {
		return false, nil
	}
	if !canTransition(acct.Status, schema.StatusRevoked) {
		return false, ErrInvalidTransition
	}
	acct.Status = schema.StatusRevoked
	return true, nil
}
