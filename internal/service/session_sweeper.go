package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sandeepkv93/device-session-guard/internal/observability"
	"github.com/sandeepkv93/device-session-guard/internal/repository"
	"github.com/sandeepkv93/device-session-guard/internal/security"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

type SweepReport struct {
	UserID  uint `json:"user_id"`
	Checked int  `json:"checked"`
	Expired int  `json:"expired"`
	Failed  int  `json:"failed"`
}

// SessionSweeper expires stored sessions whose access token no longer verifies.
// Dispatched sweeps are detached from the issuing request; their failures are logged and
// counted only.
type SessionSweeper struct {
	jwt      *security.JWTManager
	sessions repository.SessionRepository
	timeout  time.Duration
	wg       sync.WaitGroup
}

func NewSessionSweeper(jwtMgr *security.JWTManager, sessions repository.SessionRepository, timeout time.Duration) *SessionSweeper {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SessionSweeper{jwt: jwtMgr, sessions: sessions, timeout: timeout}
}

// Dispatch returns immediately. The sweep runs with its own deadline and is never
// cancelled by the caller's context.
func (s *SessionSweeper) Dispatch(userID uint) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				slog.ErrorContext(ctx, "session sweep panicked", "user_id", userID, "panic", fmt.Sprint(r))
				observability.RecordSessionSweep(ctx, "panic", 1)
			}
		}()
		report := s.InvalidateStale(ctx, userID)
		if report.Failed > 0 {
			slog.WarnContext(ctx, "session sweep finished with failures",
				"user_id", userID, "checked", report.Checked, "expired", report.Expired, "failed", report.Failed)
		}
	}()
}

// Wait blocks until dispatched sweeps finish or ctx is done.
func (s *SessionSweeper) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SessionSweeper) InvalidateStale(ctx context.Context, userID uint) SweepReport {
	ctx, span := observability.StartSpan(ctx, "session_sweeper.invalidate_stale", attribute.Int("user.id", int(userID)))
	defer span.End()

	report := SweepReport{UserID: userID}
	sessions, err := s.sessions.ListUnexpiredByUserID(ctx, userID)
	if err != nil {
		slog.ErrorContext(ctx, "session sweep list failed", "user_id", userID, "error", storeError("list sessions", err))
		observability.RecordSessionSweep(ctx, "list_error", 1)
		report.Failed = 1
		return report
	}
	report.Checked = len(sessions)

	var expired, failed atomic.Int64
	var g errgroup.Group
	for _, sess := range sessions {
		g.Go(func() error {
			res := s.jwt.Verify(sess.AccessToken)
			if res.Valid() {
				return nil
			}
			changed, err := s.sessions.MarkExpired(ctx, sess.ID, sess.AccessToken)
			if err != nil {
				failed.Add(1)
				slog.ErrorContext(ctx, "session sweep mark expired failed",
					"user_id", userID, "session_id", sess.ID, "error", storeError("mark session expired", err))
				return nil
			}
			if !changed {
				slog.DebugContext(ctx, "session rotated during sweep", "user_id", userID, "session_id", sess.ID)
				return nil
			}
			expired.Add(1)
			slog.DebugContext(ctx, "session expired by sweep", "user_id", userID, "session_id", sess.ID, "reason", res.Reason)
			return nil
		})
	}
	_ = g.Wait()

	report.Expired = int(expired.Load())
	report.Failed += int(failed.Load())
	observability.RecordSessionSweep(ctx, "checked", int64(report.Checked))
	observability.RecordSessionSweep(ctx, "expired", int64(report.Expired))
	if report.Failed > 0 {
		observability.RecordSessionSweep(ctx, "failed", int64(report.Failed))
	}
	span.SetAttributes(
		attribute.Int("sweep.checked", report.Checked),
		attribute.Int("sweep.expired", report.Expired),
		attribute.Int("sweep.failed", report.Failed),
	)
	return report
}
