// Package session keeps one cart synchronizer and alert queue per signed-in
// user of the storefront.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/domain/alert"
	"github.com/xenking/kart-storefront/internal/domain/auth"
	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/storefront"
)

const (
	// DefaultIdleTTL is how long an unused session is kept.
	DefaultIdleTTL = 30 * time.Minute
	// DefaultMaxSessions bounds the registry when Config.MaxSessions is unset.
	DefaultMaxSessions = 10000
)

// ErrFull is returned by Get when every session slot is taken by an active
// user.
var ErrFull = errors.New("session limit reached")

// Backends are the ports a session talks to, bound to its token.
type Backends struct {
	Cart    cart.Service
	Catalog cart.Catalog
	Views   storefront.Backend
}

// Binder creates Backends authenticating with tokens.
type Binder interface {
	Bind(tokens auth.TokenSource) Backends
}

// BinderFunc adapts a function to Binder.
type BinderFunc func(tokens auth.TokenSource) Backends

// Bind implements Binder.
func (f BinderFunc) Bind(tokens auth.TokenSource) Backends { return f(tokens) }

// Session is the state of one user.
type Session struct {
	ID     string
	Tokens *auth.TokenStore
	Alerts *alert.Queue
	Cart   *cart.Synchronizer
	Views  *storefront.Service

	lastSeen atomic.Int64
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

// LastSeen returns when the session was last used.
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// Config configures a Registry.
type Config struct {
	IdleTTL        time.Duration
	MaxSessions    int
	AlertTTL       time.Duration
	JoinLimit      int
	Logger         *zap.Logger
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Registry maps bearer tokens to sessions.
type Registry struct {
	binder Binder
	cfg    Config
	lg     *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty Registry.
func NewRegistry(binder Binder, cfg Config) *Registry {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	lg := cfg.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Registry{
		binder:   binder,
		cfg:      cfg,
		lg:       lg,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// ID derives the session id of a token. The raw token never appears in logs.
func ID(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}

// Get returns the session of token, creating it on first use.
func (r *Registry) Get(token string) (*Session, error) {
	if token == "" {
		return nil, cart.ErrUnauthorized
	}
	id := ID(token)
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok {
		s.touch(now)
		return s, nil
	}
	if len(r.sessions) >= r.cfg.MaxSessions {
		for _, stale := range r.evictLocked(now) {
			stale.Alerts.Close()
		}
		if len(r.sessions) >= r.cfg.MaxSessions {
			return nil, ErrFull
		}
	}

	s, err := r.create(id, token)
	if err != nil {
		return nil, err
	}
	s.touch(now)
	r.sessions[id] = s
	r.lg.Debug("Session created", zap.String("session", id))
	return s, nil
}

// Lookup returns the existing session of token without creating one.
func (r *Registry) Lookup(token string) (*Session, bool) {
	if token == "" {
		return nil, false
	}
	id := ID(token)

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if ok {
		s.touch(r.now())
	}
	return s, ok
}

func (r *Registry) create(id, token string) (*Session, error) {
	tokens := auth.NewTokenStore(token)
	alerts := alert.NewQueue(r.cfg.AlertTTL)
	lg := r.lg.With(zap.String("session", id))
	notifier := alert.NewNotifier(alerts, lg.Named("alert"))

	b := r.binder.Bind(tokens)
	synchronizer, err := cart.NewSynchronizer(b.Cart, b.Catalog, cart.Options{
		Logger:         lg.Named("cart"),
		Notifier:       notifier,
		TracerProvider: r.cfg.TracerProvider,
		MeterProvider:  r.cfg.MeterProvider,
		JoinLimit:      r.cfg.JoinLimit,
	})
	if err != nil {
		alerts.Close()
		return nil, errors.Wrap(err, "create cart synchronizer")
	}

	return &Session{
		ID:     id,
		Tokens: tokens,
		Alerts: alerts,
		Cart:   synchronizer,
		Views:  storefront.NewService(b.Views, notifier, lg.Named("storefront")),
	}, nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Drop closes and forgets the session of token.
func (r *Registry) Drop(token string) {
	id := ID(token)

	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		s.Alerts.Close()
	}
}

// Evict closes sessions idle since before now minus IdleTTL and returns how
// many were removed.
func (r *Registry) Evict(now time.Time) int {
	r.mu.Lock()
	stale := r.evictLocked(now)
	r.mu.Unlock()

	for _, s := range stale {
		s.Alerts.Close()
	}
	return len(stale)
}

// evictLocked forgets idle sessions and returns them for closing.
// Caller must hold r.mu.
func (r *Registry) evictLocked(now time.Time) []*Session {
	cutoff := now.Add(-r.cfg.IdleTTL)

	var stale []*Session
	for id, s := range r.sessions {
		if s.LastSeen().Before(cutoff) {
			stale = append(stale, s)
			delete(r.sessions, id)
		}
	}
	return stale
}

// Run evicts idle sessions every interval until ctx is done, then closes
// every remaining session.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = r.cfg.IdleTTL / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return
		case now := <-ticker.C:
			if n := r.Evict(now); n > 0 {
				r.lg.Info("Evicted idle sessions", zap.Int("count", n))
			}
		}
	}
}

func (r *Registry) closeAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Alerts.Close()
	}
}
