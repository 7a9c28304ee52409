package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"cargolink/auth"
)

// DefaultSafetyTimeout bounds how long the manager may stay in the loading
// state when the credential store or a role lookup never responds.
const DefaultSafetyTimeout = 5 * time.Second

// CredentialStore is the subset of the auth service the manager drives.
type CredentialStore interface {
	Subscribe(fn func(auth.Event)) func()
	CurrentSession(ctx context.Context, token string) (*auth.Session, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
	Register(ctx context.Context, req auth.RegisterRequest) (auth.RegisterResult, error)
	Logout(ctx context.Context)
	GetUserByID(ctx context.Context, userID string) (*auth.User, error)
}

// Resolver derives the effective role for a signed-in user.
type Resolver interface {
	Resolve(ctx context.Context, userID, email string) (auth.Role, error)
}

// State is a snapshot of the manager's session tuple. Role is empty both
// before any resolution and after a failed one; consumers must treat an
// empty role as unprivileged, never as an implicit user role.
type State struct {
	Session *auth.Session
	User    *auth.User
	Role    auth.Role
	Loading bool
}

// Manager owns the current session, user, and effective role, and keeps
// them consistent across credential-store events. Construct one per client
// scope and tear it down with Close; it is not a process-wide singleton.
type Manager struct {
	store    CredentialStore
	resolver Resolver
	cache    RoleCache
	logger   *zap.Logger
	timeout  time.Duration

	mu          sync.Mutex
	session     *auth.Session
	user        *auth.User
	role        auth.Role
	loading     bool
	generation  uint64
	timer       *time.Timer
	unsubscribe func()
	baseCtx     context.Context
	started     bool
	closed      bool
}

// Option adjusts manager construction.
type Option func(*Manager)

// WithSafetyTimeout overrides the loading-state deadline.
func WithSafetyTimeout(d time.Duration) Option {
	return func(m *Manager) { m.timeout = d }
}

// NewManager creates a session manager. cache may be NopRoleCache{} and
// logger may be nil.
func NewManager(store CredentialStore, resolver Resolver, cache RoleCache, logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cache == nil {
		cache = NopRoleCache{}
	}
	m := &Manager{
		store:    store,
		resolver: resolver,
		cache:    cache,
		logger:   logger,
		timeout:  DefaultSafetyTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins watching the credential store. initialToken restores a
// persisted session, if any; pass "" on a fresh start. The cached role is
// applied optimistically while the authoritative lookup runs.
func (m *Manager) Start(ctx context.Context, initialToken string) {
	m.mu.Lock()
	if m.started || m.closed {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.baseCtx = ctx
	m.loading = true
	if cached, ok := m.cache.Get(); ok {
		m.role = cached
	}
	m.timer = time.AfterFunc(m.timeout, m.forceReady)
	m.mu.Unlock()

	unsub := m.store.Subscribe(m.handleEvent)
	m.mu.Lock()
	m.unsubscribe = unsub
	m.mu.Unlock()

	go m.bootstrap(ctx, initialToken)
}

// Snapshot returns the current session tuple.
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{
		Session: m.session,
		User:    m.user,
		Role:    m.role,
		Loading: m.loading,
	}
}

// SignIn validates credentials through the credential store. On success
// loading stays true: the signed-in event finishes resolution, so the UI
// never renders an authenticated view before the role is known. On failure
// loading is reset and the error returned for display.
func (m *Manager) SignIn(ctx context.Context, email, password string) error {
	m.mu.Lock()
	m.loading = true
	m.mu.Unlock()

	_, err := m.store.Login(ctx, auth.LoginRequest{Email: email, Password: password})
	if err != nil {
		m.mu.Lock()
		m.loading = false
		m.mu.Unlock()
		return err
	}
	return nil
}

// SignUp registers a new account. Same loading contract as SignIn.
func (m *Manager) SignUp(ctx context.Context, req auth.RegisterRequest) error {
	m.mu.Lock()
	m.loading = true
	m.mu.Unlock()

	_, err := m.store.Register(ctx, req)
	if err != nil {
		m.mu.Lock()
		m.loading = false
		m.mu.Unlock()
		return err
	}
	return nil
}

// SignOut clears the session synchronously rather than waiting for the
// signed-out event, so the UI drops privileged state immediately.
func (m *Manager) SignOut(ctx context.Context) {
	m.mu.Lock()
	m.loading = true
	m.mu.Unlock()

	m.store.Logout(ctx)

	m.mu.Lock()
	m.generation++
	m.clearLocked()
	m.mu.Unlock()
}

// Close unsubscribes from the credential store and stops timers. In-flight
// resolutions are not interrupted; their results are discarded.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.generation++
	if m.timer != nil {
		m.timer.Stop()
	}
	unsub := m.unsubscribe
	m.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// bootstrap issues the initial get-current-session query. It races the
// event subscription by design; the generation counter keeps whichever
// outcome is newest.
func (m *Manager) bootstrap(ctx context.Context, token string) {
	m.mu.Lock()
	gen := m.generation
	m.mu.Unlock()

	session, err := m.store.CurrentSession(ctx, token)
	if err != nil {
		m.logger.Warn("initial session fetch failed", zap.Error(err))
		session = nil
	}

	if session != nil {
		m.resolveSession(session)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation != gen {
		return
	}
	m.clearLocked()
}

func (m *Manager) handleEvent(ev auth.Event) {
	switch {
	case ev.Type == auth.EventSignedOut, ev.Session == nil:
		m.mu.Lock()
		m.generation++
		m.clearLocked()
		m.mu.Unlock()
	default:
		m.resolveSession(ev.Session)
	}
}

// resolveSession runs the authoritative role lookup for a session and
// applies the result unless a newer attempt has started since.
func (m *Manager) resolveSession(session *auth.Session) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.generation++
	gen := m.generation
	m.loading = true
	ctx := m.baseCtx
	m.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}

	role, err := m.resolver.Resolve(ctx, session.UserID, session.Email)

	var user *auth.User
	if err == nil {
		u, uerr := m.store.GetUserByID(ctx, session.UserID)
		if uerr != nil {
			m.logger.Warn("user fetch failed", zap.String("user_id", session.UserID), zap.Error(uerr))
		} else {
			user = u
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation != gen {
		// A newer sign-in or sign-out superseded this attempt.
		return
	}

	if err != nil {
		m.logger.Warn("role resolution failed, treating role as unknown",
			zap.String("user_id", session.UserID), zap.Error(err))
		m.cache.Clear()
		m.role = ""
	} else {
		m.cache.Set(role)
		m.role = role
	}
	m.session = session
	if user != nil {
		m.user = user
	} else {
		m.user = &auth.User{ID: session.UserID, Email: session.Email}
	}
	m.loading = false
	m.stopTimerLocked()
}

// forceReady unblocks the loading flag when nothing else has. It cancels
// no in-flight lookup; a late result may still update the role.
func (m *Manager) forceReady() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.loading || m.closed {
		return
	}
	m.logger.Warn("session resolution stalled, forcing ready state")
	m.loading = false
}

func (m *Manager) clearLocked() {
	m.cache.Clear()
	m.session = nil
	m.user = nil
	m.role = ""
	m.loading = false
	m.stopTimerLocked()
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
	}
}
