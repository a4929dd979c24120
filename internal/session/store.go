package session

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/b1ank002/ZappkaApp/internal/attest"
	"github.com/b1ank002/ZappkaApp/internal/logger"
	"github.com/b1ank002/ZappkaApp/internal/metrics"
	"github.com/b1ank002/ZappkaApp/internal/payment"
)

// Persister keeps a durable copy of every committed session. A failed Save
// aborts the transition.
type Persister interface {
	Save(ctx context.Context, s Session) error
}

// Observer is told about every committed transition. It runs under the
// session's lock and must not block.
type Observer interface {
	SessionChanged(ctx context.Context, s Session)
}

// VerificationOutcome is the result of a verification attempt. Verified is
// false when the payment could not be confirmed yet; the session then stays
// pending and the caller may retry.
type VerificationOutcome struct {
	Verified    bool
	Reason      string
	Session     Session
	Attestation attest.Attestation
}

type entry struct {
	// mu serializes writers of this session. Readers use snap.
	mu        sync.Mutex
	snap      atomic.Pointer[Session]
	redeeming bool
}

func (e *entry) load() Session {
	return e.snap.Load().clone()
}

// Store is the authoritative registry of sessions. Each session has its own
// lock; the index lock is only held for map and slice access.
type Store struct {
	verifier  payment.Verifier
	signer    attest.Signer
	persister Persister
	observers []Observer
	now       func() time.Time

	mu     sync.RWMutex
	byID   map[string]*entry
	order  []*entry
	byUser map[string][]*entry
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithPersister(p Persister) Option {
	return func(s *Store) { s.persister = p }
}

func WithObserver(o Observer) Option {
	return func(s *Store) { s.observers = append(s.observers, o) }
}

func NewStore(verifier payment.Verifier, signer attest.Signer, opts ...Option) *Store {
	s := &Store{
		verifier: verifier,
		signer:   signer,
		now:      time.Now,
		byID:     make(map[string]*entry),
		byUser:   make(map[string][]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Signer returns the attestation signer sessions are verified with.
func (s *Store) Signer() attest.Signer {
	return s.signer
}

func (s *Store) Create(ctx context.Context, userAddress string) (Session, error) {
	userAddress = strings.TrimSpace(userAddress)
	if userAddress == "" {
		return Session{}, fmt.Errorf("%w: user address is required", ErrInvalidInput)
	}

	id, err := GenerateID()
	if err != nil {
		return Session{}, err
	}
	code, err := GenerateCode()
	if err != nil {
		return Session{}, err
	}

	sess := Session{
		ID:          id,
		UserAddress: userAddress,
		Code:        code,
		Status:      StatusPending,
		CreatedAt:   s.now().UTC(),
	}

	if err := s.persist(ctx, sess); err != nil {
		return Session{}, err
	}

	e := &entry{}
	e.snap.Store(&sess)

	s.mu.Lock()
	s.insertLocked(e)
	s.mu.Unlock()

	metrics.SessionTransitions.WithLabelValues(string(StatusPending)).Inc()
	s.notify(ctx, sess)

	return sess.clone(), nil
}

func (s *Store) Get(sessionID string) (Session, error) {
	e, ok := s.lookup(sessionID)
	if !ok {
		return Session{}, ErrNotFound
	}
	return e.load(), nil
}

// Verify asks the configured payment verifier to confirm the session's
// transfer of claimedAmount.
func (s *Store) Verify(ctx context.Context, sessionID string, claimedAmount int64) (VerificationOutcome, error) {
	return s.VerifyWith(ctx, sessionID, claimedAmount, s.verifier)
}

// VerifyWith runs the verification state machine against an explicit
// verifier. Only a pending session can be verified.
func (s *Store) VerifyWith(
	ctx context.Context,
	sessionID string,
	claimedAmount int64,
	verifier payment.Verifier,
) (VerificationOutcome, error) {

	if claimedAmount <= 0 {
		return VerificationOutcome{}, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}

	e, ok := s.lookup(sessionID)
	if !ok {
		return VerificationOutcome{}, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.load()
	if cur.Status != StatusPending {
		return VerificationOutcome{}, fmt.Errorf("%w: session is %s", ErrInvalidState, cur.Status)
	}

	decision, err := verifier.Verify(ctx, cur.UserAddress, cur.Code, claimedAmount)
	if err != nil {
		metrics.Verifications.WithLabelValues("error").Inc()
		return VerificationOutcome{}, fmt.Errorf("%w: %w", ErrVerifierUnavailable, err)
	}
	if !decision.Approved {
		metrics.Verifications.WithLabelValues("declined").Inc()
		return VerificationOutcome{Reason: decision.Reason, Session: cur}, nil
	}

	att, err := s.signer.Sign(attest.Claim{
		UserAddress: cur.UserAddress,
		Code:        cur.Code,
		Amount:      claimedAmount,
	})
	if err != nil {
		return VerificationOutcome{}, fmt.Errorf("session: sign attestation: %w", err)
	}

	next := cur.clone()
	amount := claimedAmount
	verifiedAt := s.stamp(cur.CreatedAt)
	next.Status = StatusVerified
	next.Amount = &amount
	next.VerifiedAt = &verifiedAt

	if err := s.commit(ctx, e, next); err != nil {
		return VerificationOutcome{}, err
	}
	metrics.Verifications.WithLabelValues("approved").Inc()

	return VerificationOutcome{
		Verified:    true,
		Reason:      decision.Reason,
		Session:     next.clone(),
		Attestation: att,
	}, nil
}

// Complete records the on-chain transaction of a verified session.
func (s *Store) Complete(ctx context.Context, sessionID string, txReference string) (Session, error) {
	if strings.TrimSpace(txReference) == "" {
		return Session{}, fmt.Errorf("%w: tx reference is required", ErrInvalidInput)
	}

	e, ok := s.lookup(sessionID)
	if !ok {
		return Session{}, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.load()
	if cur.Status != StatusVerified {
		return Session{}, fmt.Errorf("%w: session is %s", ErrInvalidState, cur.Status)
	}

	next := cur.clone()
	completedAt := s.stamp(*cur.VerifiedAt)
	next.Status = StatusCompleted
	next.TxReference = txReference
	next.CompletedAt = &completedAt

	// Completion records a transaction that is already mined, so a failed
	// Save does not roll it back.
	if err := s.persist(ctx, next); err != nil {
		logger.Error("failed to persist completed session", map[string]any{
			"session_id": next.ID,
			"tx_hash":    txReference,
			"error":      err.Error(),
		})
	}
	s.publish(ctx, e, next)
	return next.clone(), nil
}

// BeginRedemption raises the session's in-flight flag. It fails with
// ErrRedemptionInProgress while another redemption holds the flag. The
// returned release func lowers it and is safe to call more than once.
func (s *Store) BeginRedemption(sessionID string) (Session, func(), error) {
	e, ok := s.lookup(sessionID)
	if !ok {
		return Session{}, nil, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.load()
	if cur.Status != StatusVerified {
		return Session{}, nil, fmt.Errorf("%w: session is %s", ErrInvalidState, cur.Status)
	}
	if e.redeeming {
		return Session{}, nil, ErrRedemptionInProgress
	}
	e.redeeming = true

	release := sync.OnceFunc(func() {
		e.mu.Lock()
		e.redeeming = false
		e.mu.Unlock()
	})
	return cur, release, nil
}

// SessionsForUser lists a user's sessions in creation order.
func (s *Store) SessionsForUser(userAddress string) []View {
	s.mu.RLock()
	entries := append([]*entry(nil), s.byUser[strings.TrimSpace(userAddress)]...)
	s.mu.RUnlock()

	views := make([]View, 0, len(entries))
	for _, e := range entries {
		views = append(views, e.load().View())
	}
	return views
}

func (s *Store) Stats() Stats {
	s.mu.RLock()
	entries := append([]*entry(nil), s.order...)
	s.mu.RUnlock()

	var st Stats
	for _, e := range entries {
		st.Total++
		switch e.snap.Load().Status {
		case StatusPending:
			st.Pending++
		case StatusVerified:
			st.Verified++
		case StatusCompleted:
			st.Completed++
		}
	}
	return st
}

// Restore seeds the store with previously persisted sessions. Every record
// is checked before any is inserted; ids already present are skipped.
func (s *Store) Restore(sessions []Session) (int, error) {
	restored := make([]Session, 0, len(sessions))
	for _, sess := range sessions {
		if !sess.valid() {
			return 0, fmt.Errorf("session: corrupted snapshot for %q", sess.ID)
		}
		restored = append(restored, sess.clone())
	}
	sort.SliceStable(restored, func(i, j int) bool {
		return restored[i].CreatedAt.Before(restored[j].CreatedAt)
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for i := range restored {
		if _, exists := s.byID[restored[i].ID]; exists {
			continue
		}
		e := &entry{}
		e.snap.Store(&restored[i])
		s.insertLocked(e)
		n++
	}
	return n, nil
}

func (s *Store) lookup(sessionID string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[sessionID]
	return e, ok
}

func (s *Store) insertLocked(e *entry) {
	sess := e.snap.Load()
	s.byID[sess.ID] = e
	s.order = append(s.order, e)
	s.byUser[sess.UserAddress] = append(s.byUser[sess.UserAddress], e)
}

// commit persists next, then publishes it. A failed Save leaves the entry
// unchanged. The caller holds e.mu.
func (s *Store) commit(ctx context.Context, e *entry, next Session) error {
	if err := s.persist(ctx, next); err != nil {
		return err
	}
	s.publish(ctx, e, next)
	return nil
}

func (s *Store) persist(ctx context.Context, next Session) error {
	if s.persister == nil {
		return nil
	}
	if err := s.persister.Save(ctx, next); err != nil {
		return fmt.Errorf("session: persist: %w", err)
	}
	return nil
}

// publish makes next visible to readers and notifies observers.
func (s *Store) publish(ctx context.Context, e *entry, next Session) {
	e.snap.Store(&next)
	metrics.SessionTransitions.WithLabelValues(string(next.Status)).Inc()
	s.notify(ctx, next)
}

func (s *Store) notify(ctx context.Context, sess Session) {
	for _, o := range s.observers {
		o.SessionChanged(ctx, sess.clone())
	}
}

// stamp returns the current UTC time, never earlier than after.
func (s *Store) stamp(after time.Time) time.Time {
	t := s.now().UTC()
	if t.Before(after) {
		return after
	}
	return t
}
