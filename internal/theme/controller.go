package theme

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Controller owns the preference state machine. It is safe for concurrent use.
type Controller struct {
	store  Store
	env    Environment
	root   Root
	key    string
	logger *zap.Logger

	mu          sync.Mutex
	pref        Preference
	resolved    Resolved
	unsubscribe func()
	// generation invalidates notifications from a subscription that has
	// since been torn down.
	generation int
}

// Option configures a Controller.
type Option func(*Controller)

// WithKey overrides the storage key.
func WithKey(key string) Option {
	return func(c *Controller) {
		if key != "" {
			c.key = key
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewController reads the persisted preference (defaulting to auto when it is
// missing, invalid or unreadable), applies it and, for auto, subscribes to
// environment changes.
func NewController(ctx context.Context, store Store, env Environment, root Root, opts ...Option) *Controller {
	c := &Controller{
		store:  store,
		env:    env,
		root:   root,
		key:    DefaultKey,
		logger: zap.NewNop(),
		pref:   PreferenceAuto,
	}
	for _, opt := range opts {
		opt(c)
	}

	if store != nil {
		raw, ok, err := store.Get(ctx, c.key)
		switch {
		case err != nil:
			c.logger.Warn("reading theme preference", zap.Error(err))
		case ok:
			if p, err := ParsePreference(raw); err == nil {
				c.pref = p
			} else {
				c.logger.Warn("ignoring stored theme preference", zap.String("value", raw))
			}
		}
	}

	c.mu.Lock()
	c.applyLocked()
	c.syncSubscriptionLocked()
	c.mu.Unlock()
	return c
}

// Set persists mode, re-resolves and applies it. A persistence failure is
// returned, but the in-memory preference and applied theme still change.
func (c *Controller) Set(ctx context.Context, mode Preference) error {
	if _, err := ParsePreference(string(mode)); err != nil {
		return err
	}

	c.mu.Lock()
	c.pref = mode
	c.applyLocked()
	c.syncSubscriptionLocked()
	c.mu.Unlock()

	if c.store == nil {
		return nil
	}
	if err := c.store.Set(ctx, c.key, string(mode)); err != nil {
		return fmt.Errorf("persisting theme preference: %w", err)
	}
	return nil
}

// Preference returns the current preference.
func (c *Controller) Preference() Preference {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pref
}

// Resolved returns the currently applied theme.
func (c *Controller) Resolved() Resolved {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolved
}

// Applied returns the value last handed to the root.
func (c *Controller) Applied() Applied {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Applied{Preference: c.pref, Theme: c.resolved, ColorScheme: string(c.resolved)}
}

// Close drops any environment subscription.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropSubscriptionLocked()
}

func (c *Controller) envCurrent() Resolved {
	if c.env == nil {
		return Light
	}
	return c.env.Current()
}

func (c *Controller) applyLocked() {
	c.resolved = Resolve(c.pref, c.envCurrent())
	if c.root != nil {
		c.root.Apply(Applied{Preference: c.pref, Theme: c.resolved, ColorScheme: string(c.resolved)})
	}
}

func (c *Controller) syncSubscriptionLocked() {
	if c.pref != PreferenceAuto {
		c.dropSubscriptionLocked()
		return
	}
	if c.unsubscribe != nil || c.env == nil {
		return
	}

	c.generation++
	gen := c.generation
	c.unsubscribe = c.env.Subscribe(func(Resolved) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != c.generation || c.pref != PreferenceAuto {
			return
		}
		// Re-read the environment rather than trusting the notification
		// payload so a burst of changes settles on the latest value.
		c.applyLocked()
	})
}

func (c *Controller) dropSubscriptionLocked() {
	if c.unsubscribe == nil {
		return
	}
	c.unsubscribe()
	c.unsubscribe = nil
	c.generation++
}
