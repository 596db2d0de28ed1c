package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/news-sieve/app/config"
	"github.com/lysyi3m/news-sieve/app/store"
)

// ErrNoneAvailable is returned when no credential qualifies for selection;
// callers must treat the upstream source as temporarily unavailable.
var ErrNoneAvailable = errors.New("no credential available")

// DefaultCooldown is applied when the upstream rate-limit response carries
// no reset time.
const DefaultCooldown = 15 * time.Minute

// RateLimitError signals quota or frequency exhaustion on an upstream
// endpoint. ResetAt is nil when the upstream did not provide one.
type RateLimitError struct {
	ResetAt *time.Time
}

func (e *RateLimitError) Error() string {
	if e.ResetAt != nil {
		return fmt.Sprintf("rate limited until %s", e.ResetAt.Format(time.RFC3339))
	}
	return "rate limited"
}

// Usage is a credential's quota state as reported by the upstream source.
type Usage struct {
	Count    int
	Limit    int
	ResetDay int
}

// UsageChecker queries the upstream quota endpoint for one credential.
type UsageChecker interface {
	CheckUsage(ctx context.Context, name, secret string) (Usage, error)
}

// Rotator keeps a pool of interchangeable, independently rate-limited
// credentials usable against one quota-constrained upstream source. All
// state transitions are persisted immediately.
type Rotator struct {
	mu      sync.Mutex
	creds   []*store.CredentialState // fixed configured priority order
	repo    store.CredentialRepository
	checker UsageChecker
	current string
	now     func() time.Time
}

// NewRotator merges configured credential slots with their last persisted
// states. Secrets come from configuration only.
func NewRotator(configs []config.CredentialConfig, persisted map[string]*store.CredentialState,
	repo store.CredentialRepository, checker UsageChecker) *Rotator {

	r := &Rotator{
		repo:    repo,
		checker: checker,
		now:     time.Now,
	}

	for _, c := range configs {
		state := &store.CredentialState{
			Name:            c.Name,
			UsageLimit:      c.UsageLimit,
			MonthlyResetDay: c.MonthlyResetDay,
			Status:          store.CredentialUnchecked,
		}
		if prev, ok := persisted[c.Name]; ok {
			state.UsageCount = prev.UsageCount
			if prev.UsageLimit > 0 {
				state.UsageLimit = prev.UsageLimit
			}
			state.UsageCooldownUntil = prev.UsageCooldownUntil
			state.ContentCooldownUntil = prev.ContentCooldownUntil
			state.LastSuccessfulCheck = prev.LastSuccessfulCheck
			state.Status = prev.Status
		}
		state.Secret = c.Secret
		r.creds = append(r.creds, state)
	}

	// Selection is deferred to the first Current or Refresh call so that
	// construction never evaluates cap or cooldown conditions.
	return r
}

// Current returns a copy of the selected credential, or false when the
// upstream source must be treated as unavailable.
func (r *Rotator) Current() (store.CredentialState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.selectLocked()
	if r.current == "" {
		return store.CredentialState{}, false
	}

	for _, c := range r.creds {
		if c.Name == r.current {
			return *c, true
		}
	}
	return store.CredentialState{}, false
}

// Refresh queries each credential's quota usage from the upstream source
// and re-runs selection.
func (r *Rotator) Refresh(ctx context.Context) {
	if r.checker == nil {
		return
	}

	for _, name := range r.names() {
		r.refreshOne(ctx, name)
	}

	r.mu.Lock()
	r.selectLocked()
	r.mu.Unlock()
}

func (r *Rotator) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.creds))
	for i, c := range r.creds {
		names[i] = c.Name
	}
	return names
}

func (r *Rotator) refreshOne(ctx context.Context, name string) {
	r.mu.Lock()
	cred := r.findLocked(name)
	if cred == nil {
		r.mu.Unlock()
		return
	}
	secret := cred.Secret
	r.mu.Unlock()

	usage, err := r.checker.CheckUsage(ctx, name, secret)

	r.mu.Lock()
	defer r.mu.Unlock()

	cred = r.findLocked(name)
	if cred == nil {
		return
	}

	now := r.now()
	switch {
	case err == nil:
		cred.UsageCount = usage.Count
		if usage.Limit > 0 {
			cred.UsageLimit = usage.Limit
		}
		if usage.ResetDay > 0 {
			cred.MonthlyResetDay = usage.ResetDay
		}
		cred.UsageCooldownUntil = nil
		cred.LastSuccessfulCheck = &now
		cred.Status = store.CredentialOK
		slog.Debug("Credential usage refreshed", "credential", name,
			"usage", cred.UsageCount, "limit", cred.UsageLimit)
	case isRateLimit(err):
		until := cooldownUntil(err, now)
		cred.UsageCooldownUntil = &until
		cred.Status = store.CredentialCooldown
		slog.Warn("Credential usage check rate limited", "credential", name, "cooldown_until", until)
	default:
		cred.Status = store.CredentialError
		slog.Warn("Credential usage check failed", "credential", name, "error", err)
	}

	r.persistLocked(cred)
	r.selectLocked()
}

// ReportContentSuccess records a successful content fetch with the named
// credential.
func (r *Rotator) ReportContentSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cred := r.findLocked(name)
	if cred == nil {
		return
	}

	cred.UsageCount++
	cred.Status = store.CredentialOK
	r.persistLocked(cred)
	r.selectLocked()
}

// ReportContentFailure records a failed content fetch. A rate-limit failure
// cools down the content endpoint independently of the usage endpoint and
// triggers reselection; any other failure marks the credential as broken.
func (r *Rotator) ReportContentFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cred := r.findLocked(name)
	if cred == nil {
		return
	}

	now := r.now()
	if isRateLimit(err) {
		until := cooldownUntil(err, now)
		cred.ContentCooldownUntil = &until
		cred.Status = store.CredentialCooldown
		slog.Warn("Credential content endpoint rate limited", "credential", name, "cooldown_until", until)
	} else {
		cred.Status = store.CredentialError
		slog.Warn("Credential content fetch failed", "credential", name, "error", err)
	}

	r.persistLocked(cred)
	r.selectLocked()
}

// selectLocked scans credentials in configured priority order and picks the
// first one that is not capped, not in error, and has no active cooldown on
// any endpoint.
func (r *Rotator) selectLocked() {
	now := r.now()
	for _, c := range r.creds {
		if c.Status == store.CredentialError {
			continue
		}
		if r.cappedLocked(c, now) {
			continue
		}
		if cooldownActive(c.UsageCooldownUntil, now) || cooldownActive(c.ContentCooldownUntil, now) {
			continue
		}
		if r.current != c.Name {
			slog.Info("Credential selected", "credential", c.Name)
		}
		r.current = c.Name
		return
	}

	if r.current != "" {
		slog.Warn("No credential available for upstream source")
	}
	r.current = ""
}

// cappedLocked applies the hard usage condition: usage at or above the
// limit makes the credential unusable until the next monthly reset day,
// regardless of cooldown state.
func (r *Rotator) cappedLocked(c *store.CredentialState, now time.Time) bool {
	if c.UsageLimit <= 0 || c.UsageCount < c.UsageLimit {
		return false
	}

	// Once a new reset period starts, the local counter is stale; clear it
	// optimistically until the next upstream refresh corrects it.
	reset := lastMonthlyReset(c, now)
	if c.LastSuccessfulCheck != nil && c.LastSuccessfulCheck.Before(reset) {
		c.UsageCount = 0
		r.persistLocked(c)
		return false
	}

	return true
}

func (r *Rotator) findLocked(name string) *store.CredentialState {
	for _, c := range r.creds {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (r *Rotator) persistLocked(c *store.CredentialState) {
	if r.repo == nil {
		return
	}
	if err := r.repo.SaveCredentialState(c); err != nil {
		slog.Error("Failed to persist credential state", "credential", c.Name, "error", err)
	}
}

func cooldownActive(until *time.Time, now time.Time) bool {
	return until != nil && now.Before(*until)
}

func cooldownUntil(err error, now time.Time) time.Time {
	var rl *RateLimitError
	if errors.As(err, &rl) && rl.ResetAt != nil && rl.ResetAt.After(now) {
		return *rl.ResetAt
	}
	return now.Add(DefaultCooldown)
}

func isRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// lastMonthlyReset returns the most recent occurrence of the credential's
// reset day at midnight UTC.
func lastMonthlyReset(c *store.CredentialState, now time.Time) time.Time {
	day := c.MonthlyResetDay
	if day < 1 || day > 28 {
		day = 1
	}
	now = now.UTC()
	reset := time.Date(now.Year(), now.Month(), day, 0, 0, 0, 0, time.UTC)
	if reset.After(now) {
		reset = reset.AddDate(0, -1, 0)
	}
	return reset
}
