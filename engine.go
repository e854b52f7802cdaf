package authcore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	internalaudit "github.com/mvachell/authcore/internal/audit"
	"github.com/mvachell/authcore/internal/rate"
	"github.com/mvachell/authcore/password"
	"github.com/mvachell/authcore/session"
	"github.com/mvachell/authcore/token"
)

// Engine is the authentication facade. It owns password verification,
// opaque-token sessions, signed-token issuance, login rate limiting,
// and the audit/metrics plumbing around them. Account storage stays
// behind the caller's [SubjectProvider].
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config          Config
	sessionStore    *session.Store
	rateLimiter     *rate.Limiter
	audit           *internalaudit.Dispatcher
	metrics         *Metrics
	passwordHash    *password.Hasher
	tokenManager    *token.Manager
	subjectProvider SubjectProvider
}

// Close drains the audit dispatcher. Call it on shutdown.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func loginLimitKey(identifier string) string {
	return "login:" + identifier
}

// Login verifies the identifier/password pair and, on success, creates
// a server-side session and issues a signed token for it.
//
// Every credential failure returns [ErrInvalidCredentials] regardless
// of whether the identifier exists, the password was wrong, or the
// password was empty. The attempt is counted against the identifier's
// rate budget before credentials are examined, so rejected and failed
// attempts cost the same.
func (e *Engine) Login(ctx context.Context, identifier, plaintext string) (*LoginResult, error) {
	if e == nil || e.passwordHash == nil || e.subjectProvider == nil {
		return nil, ErrEngineNotReady
	}

	if e.rateLimiter != nil {
		decision, err := e.rateLimiter.Allow(ctx, loginLimitKey(identifier))
		if err != nil {
			// Fail closed: an uncountable attempt is a denied attempt.
			return nil, fmt.Errorf("%w: %v", ErrRateLimiterUnavailable, err)
		}
		if !decision.Allowed {
			e.metricInc(MetricLoginRateLimited)
			e.emitAudit(ctx, auditEventLoginRateLimited, false, "", ErrLoginRateLimited, func() map[string]string {
				return map[string]string{
					"identifier":  identifier,
					"retry_after": decision.RetryAfter.String(),
				}
			})
			return nil, &RateLimitedError{RetryAfter: decision.RetryAfter}
		}
	}

	if plaintext == "" {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"identifier": identifier,
				"reason":     "empty_password",
			}
		})
		return nil, ErrInvalidCredentials
	}

	subject, err := e.subjectProvider.GetSubjectByIdentifier(ctx, identifier)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"identifier": identifier,
				"reason":     "unknown_identifier",
			}
		})
		return nil, ErrInvalidCredentials
	}

	if !e.passwordHash.Verify(plaintext, subject.PasswordHash) {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, subject.SubjectID, ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"identifier": identifier,
				"reason":     "bad_password",
			}
		})
		return nil, ErrInvalidCredentials
	}

	if e.config.Password.UpgradeOnLogin && e.passwordHash.NeedsUpgrade(subject.PasswordHash) {
		if newHash, hashErr := e.passwordHash.Hash(plaintext); hashErr == nil {
			if upErr := e.subjectProvider.UpdatePasswordHash(ctx, subject.SubjectID, newHash); upErr != nil {
				log.Print("authcore: password hash upgrade failed, keeping old record")
			}
		}
	}

	sess, err := e.sessionStore.Create(ctx, subject.SubjectID, subject.Email)
	if err != nil {
		e.emitAudit(ctx, auditEventLoginFailure, false, subject.SubjectID, ErrSessionCreationFailed, nil)
		return nil, errors.Join(ErrSessionCreationFailed, err)
	}

	signed, err := e.tokenManager.Issue(subject.SubjectID, subject.Email, 0)
	if err != nil {
		if _, delErr := e.sessionStore.Delete(ctx, sess.Token); delErr != nil {
			log.Print("authcore: orphaned session cleanup failed after token issue error")
		}
		e.emitAudit(ctx, auditEventLoginFailure, false, subject.SubjectID, err, nil)
		return nil, err
	}

	if e.rateLimiter != nil && !e.config.RateLimit.DisableResetOnSuccess {
		if err := e.rateLimiter.Reset(ctx, loginLimitKey(identifier)); err != nil {
			log.Print("authcore: rate limit reset failed after successful login")
		}
	}

	e.metricInc(MetricLoginSuccess)
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventLoginSuccess, true, subject.SubjectID, nil, func() map[string]string {
		return map[string]string{
			"identifier": identifier,
		}
	})

	return &LoginResult{
		SubjectID:    subject.SubjectID,
		SessionToken: sess.Token,
		SignedToken:  signed,
	}, nil
}

// Logout deletes the session behind sessionToken. The boolean reports
// whether a live session was actually removed; logging out an unknown
// or already-expired token is not an error.
func (e *Engine) Logout(ctx context.Context, sessionToken string) (bool, error) {
	if e == nil || e.sessionStore == nil {
		return false, ErrEngineNotReady
	}

	existed, err := e.sessionStore.Delete(ctx, sessionToken)
	if err != nil {
		return false, err
	}

	if existed {
		e.metricInc(MetricLogout)
		e.metricInc(MetricSessionInvalidated)
	}
	e.emitAudit(ctx, auditEventLogoutSession, existed, "", nil, func() map[string]string {
		return map[string]string{
			"existed": strconv.FormatBool(existed),
		}
	})

	return existed, nil
}

// LogoutAll removes every session for subjectID and returns how many
// were dropped.
func (e *Engine) LogoutAll(ctx context.Context, subjectID string) (int, error) {
	if e == nil || e.sessionStore == nil {
		return 0, ErrEngineNotReady
	}

	deleted, err := e.sessionStore.DeleteAllForSubject(ctx, subjectID)
	if err != nil {
		return 0, errors.Join(ErrSessionInvalidationFailed, err)
	}

	e.metricInc(MetricLogoutAll)
	if e.metrics != nil {
		e.metrics.Add(MetricSessionInvalidated, uint64(deleted))
	}
	e.emitAudit(ctx, auditEventLogoutAll, true, subjectID, nil, func() map[string]string {
		return map[string]string{
			"sessions": strconv.Itoa(deleted),
		}
	})

	return deleted, nil
}

// Validate resolves sessionToken to its authenticated subject. Any
// failure, including a store outage, surfaces as [ErrSessionNotFound]:
// a session that cannot be confirmed live is treated as absent.
func (e *Engine) Validate(ctx context.Context, sessionToken string) (*AuthResult, error) {
	if e == nil || e.sessionStore == nil {
		return nil, ErrEngineNotReady
	}

	sess, err := e.sessionStore.Get(ctx, sessionToken)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Print("authcore: session validation degraded, treating session as absent")
		}
		return nil, ErrSessionNotFound
	}

	return &AuthResult{
		SubjectID: sess.SubjectID,
		Email:     sess.Email,
		ExpiresAt: sess.ExpiresAt,
	}, nil
}

// CheckSession reports whether sessionToken refers to a live session.
func (e *Engine) CheckSession(ctx context.Context, sessionToken string) bool {
	start := time.Now()
	_, err := e.Validate(ctx, sessionToken)
	if e != nil && e.metrics != nil {
		e.metrics.Observe(MetricCheckSessionLatency, time.Since(start))
	}
	return err == nil
}

// VerifyToken checks a signed stateless token and returns its claims,
// or nil when the token is invalid for any reason. No store access.
func (e *Engine) VerifyToken(tokenStr string) *token.Claims {
	if e == nil || e.tokenManager == nil {
		return nil
	}
	return e.tokenManager.Verify(tokenStr)
}

// ChangePassword rotates a subject's password after verifying the old
// one, then invalidates every session for the subject so stolen
// sessions do not outlive the credential they were minted under.
func (e *Engine) ChangePassword(ctx context.Context, subjectID, oldPassword, newPassword string) error {
	if e == nil || e.passwordHash == nil || e.subjectProvider == nil {
		return ErrEngineNotReady
	}
	if newPassword == "" {
		return ErrInvalidCredentials
	}

	subject, err := e.subjectProvider.GetSubjectByID(ctx, subjectID)
	if err != nil {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, subjectID, ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	if !e.passwordHash.Verify(oldPassword, subject.PasswordHash) {
		e.metricInc(MetricPasswordChangeInvalidOld)
		e.emitAudit(ctx, auditEventPasswordChangeInvalidOld, false, subjectID, ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	if e.passwordHash.Verify(newPassword, subject.PasswordHash) {
		e.metricInc(MetricPasswordChangeReuseRejected)
		e.emitAudit(ctx, auditEventPasswordChangeReuse, false, subjectID, ErrPasswordReuse, nil)
		return ErrPasswordReuse
	}

	newHash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, subjectID, err, nil)
		return err
	}
	if err := e.subjectProvider.UpdatePasswordHash(ctx, subjectID, newHash); err != nil {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, subjectID, err, nil)
		return err
	}

	if _, err := e.sessionStore.DeleteAllForSubject(ctx, subjectID); err != nil {
		// Hash already rotated; the caller must retry invalidation.
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, subjectID, ErrSessionInvalidationFailed, nil)
		return errors.Join(ErrSessionInvalidationFailed, err)
	}

	if e.rateLimiter != nil {
		if err := e.rateLimiter.Reset(ctx, loginLimitKey(subject.Identifier)); err != nil {
			log.Print("authcore: rate limit reset failed after password change")
		}
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChangeSuccess, true, subjectID, nil, nil)

	return nil
}

// CreateAccount hashes the password, assigns a fresh subject id, and
// hands the record to the [SubjectProvider]. A duplicate identifier
// surfaces as [ErrAccountExists].
func (e *Engine) CreateAccount(ctx context.Context, identifier, email, plaintext string) (SubjectRecord, error) {
	if e == nil || e.passwordHash == nil || e.subjectProvider == nil {
		return SubjectRecord{}, ErrEngineNotReady
	}
	if identifier == "" || plaintext == "" {
		return SubjectRecord{}, ErrAccountCreationInvalid
	}

	if _, err := e.subjectProvider.GetSubjectByIdentifier(ctx, identifier); err == nil {
		e.metricInc(MetricAccountCreationDuplicate)
		e.emitAudit(ctx, auditEventAccountCreationDuplicate, false, "", ErrAccountExists, func() map[string]string {
			return map[string]string{
				"identifier": identifier,
			}
		})
		return SubjectRecord{}, ErrAccountExists
	}

	hash, err := e.passwordHash.Hash(plaintext)
	if err != nil {
		e.emitAudit(ctx, auditEventAccountCreationFailure, false, "", err, nil)
		return SubjectRecord{}, err
	}

	record, err := e.subjectProvider.CreateSubject(ctx, CreateSubjectInput{
		SubjectID:    uuid.NewString(),
		Identifier:   identifier,
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, ErrProviderDuplicateIdentifier) {
			e.metricInc(MetricAccountCreationDuplicate)
			e.emitAudit(ctx, auditEventAccountCreationDuplicate, false, "", ErrAccountExists, nil)
			return SubjectRecord{}, ErrAccountExists
		}
		e.emitAudit(ctx, auditEventAccountCreationFailure, false, "", err, nil)
		return SubjectRecord{}, err
	}

	e.metricInc(MetricAccountCreationSuccess)
	e.emitAudit(ctx, auditEventAccountCreationSuccess, true, record.SubjectID, nil, func() map[string]string {
		return map[string]string{
			"identifier": identifier,
		}
	})

	return record, nil
}

// SweepSessions scans the session store, removes expired records, and
// returns how many were reclaimed. Store failures are logged and
// reported as a zero (or partial) count, never as an error, so a
// maintenance loop can call this unconditionally on a ticker.
func (e *Engine) SweepSessions(ctx context.Context) int {
	if e == nil || e.sessionStore == nil {
		return 0
	}

	swept, err := e.sessionStore.SweepExpired(ctx)
	if swept > 0 && e.metrics != nil {
		e.metrics.Add(MetricSessionsSwept, uint64(swept))
	}
	if err != nil {
		log.Printf("authcore: session sweep aborted after %d removals: %v", swept, err)
		return swept
	}

	e.emitAudit(ctx, auditEventSessionsSwept, true, "", nil, func() map[string]string {
		return map[string]string{
			"sessions": strconv.Itoa(swept),
		}
	})

	return swept
}
