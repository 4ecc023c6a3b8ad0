package backend

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"gitea.jw6.us/james/caldavgw/internal/auth"
	"gitea.jw6.us/james/caldavgw/internal/config"
	"gitea.jw6.us/james/caldavgw/internal/dav"
	"gitea.jw6.us/james/caldavgw/internal/http/ratelimit"
	"gitea.jw6.us/james/caldavgw/internal/metrics"
	"gitea.jw6.us/james/caldavgw/internal/store"
)

// Authenticator verifies a login and password pair.
type Authenticator interface {
	Authenticate(ctx context.Context, login, password string) (*store.User, error)
}

// Provider hands out calendar sessions, reusing one per credential set for
// the configured cache lifetime.
type Provider struct {
	authn    Authenticator
	users    store.UserRepository
	events   store.EventRepository
	sessions *cache.Cache
	inflight singleflight.Group
	failures *ratelimit.Limiter
}

var _ dav.SessionProvider = (*Provider)(nil)

func NewProvider(cfg *config.Config, st *store.Store, authn Authenticator) *Provider {
	return newProvider(authn, st.Users, st.Events, cfg.Session.CacheTTL,
		ratelimit.New(rate.Limit(cfg.AuthLimit.Rate), cfg.AuthLimit.Burst, 30*time.Minute, nil))
}

func newProvider(authn Authenticator, users store.UserRepository, events store.EventRepository, ttl time.Duration, failures *ratelimit.Limiter) *Provider {
	return &Provider{
		authn:    authn,
		users:    users,
		events:   events,
		sessions: cache.New(ttl, 2*ttl),
		failures: failures,
	}
}

// Session returns the cached session for the credentials or authenticates
// them. Concurrent requests for the same credentials share one attempt.
func (p *Provider) Session(ctx context.Context, username, password string) (dav.Session, error) {
	key := credentialKey(username, password)
	if s, ok := p.sessions.Get(key); ok {
		metrics.ObserveSessionLookup("hit")
		return s.(*Session), nil
	}

	login := strings.ToLower(username)
	if p.failures.Exhausted(login) {
		metrics.ObserveSessionLookup("failure")
		return nil, fmt.Errorf("%w: too many authentication attempts", dav.ErrAuthenticationFailed)
	}

	v, err, _ := p.inflight.Do(key, func() (any, error) {
		return p.load(ctx, key, username, password)
	})
	if err != nil {
		metrics.ObserveSessionLookup("failure")
		if errors.Is(err, auth.ErrInvalidCredentials) {
			p.failures.Allow(login)
			return nil, fmt.Errorf("%w: %v", dav.ErrAuthenticationFailed, err)
		}
		return nil, fmt.Errorf("authenticate %s: %w", username, err)
	}
	found := v.(lookup)
	if found.cached {
		metrics.ObserveSessionLookup("hit")
	} else {
		metrics.ObserveSessionLookup("miss")
	}
	return found.session, nil
}

// lookup is the shared result of one coalesced session lookup.
type lookup struct {
	session *Session
	cached  bool
}

// load rechecks the cache, since an earlier flight may have filled it, and
// authenticates otherwise.
func (p *Provider) load(ctx context.Context, key, username, password string) (lookup, error) {
	if s, ok := p.sessions.Get(key); ok {
		return lookup{session: s.(*Session), cached: true}, nil
	}
	user, err := p.authn.Authenticate(ctx, username, password)
	if err != nil {
		return lookup{}, err
	}
	s := newSession(user, p.users, p.events)
	p.sessions.SetDefault(key, s)
	return lookup{session: s}, nil
}

func credentialKey(username, password string) string {
	sum := sha256.Sum256([]byte(username + ":" + password))
	return hex.EncodeToString(sum[:])
}
