package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sandeepkv93/device-session-guard/internal/domain"
	"github.com/sandeepkv93/device-session-guard/internal/security"
)

func tamperSignature(token string) string {
	sig := security.SignatureSegment(token)
	prefix := token[:len(token)-len(sig)]
	b := []byte(sig)
	if b[0] == 'A' {
		b[0] = 'B'
	} else {
		b[0] = 'A'
	}
	return prefix + string(b)
}

func TestInvalidateStaleExpiresTamperedSession(t *testing.T) {
	h := newTestHarness(t, true)
	ctx := context.Background()
	u := h.seedUser(t, "tamper@example.com", false)

	good, err := h.core.Issue(ctx, u, DeviceContext{UserAgent: "good"})
	if err != nil {
		t.Fatalf("issue good: %v", err)
	}
	bad, err := h.core.Issue(ctx, u, DeviceContext{UserAgent: "bad"})
	if err != nil {
		t.Fatalf("issue bad: %v", err)
	}
	row, err := h.sessions.FindByAccessToken(ctx, bad.AccessToken)
	if err != nil {
		t.Fatalf("find bad row: %v", err)
	}
	tampered := tamperSignature(bad.AccessToken)
	h.sessions.setToken(row.ID, tampered)

	report := h.core.InvalidateStale(ctx, u.ID)
	if report.Checked != 2 || report.Expired != 1 || report.Failed != 0 {
		t.Fatalf("unexpected sweep report: %+v", report)
	}
	if !h.sessions.get(row.ID).Expired {
		t.Fatal("expected tampered session expired")
	}
	if _, err := h.core.VerifyRequest(ctx, AuthRequest{Token: tampered, Route: "/api/v1/user/profile-details"}); !errors.Is(err, ErrSessionInvalidated) {
		t.Fatalf("expected tampered token rejected, got %v", err)
	}
	if _, err := h.core.VerifyRequest(ctx, AuthRequest{Token: good.AccessToken, Route: "/api/v1/user/profile-details"}); err != nil {
		t.Fatalf("expected untouched session admitted, got %v", err)
	}
}

func TestInvalidateStaleExpiresTimedOutTokens(t *testing.T) {
	h := newTestHarness(t, true)
	ctx := context.Background()
	u := h.seedUser(t, "old@example.com", false)

	if _, err := h.core.Issue(ctx, u, DeviceContext{}); err != nil {
		t.Fatalf("issue: %v", err)
	}
	h.clock.Set(h.clock.Now().Add(testAccessTTL + time.Second))
	report := h.core.InvalidateStale(ctx, u.ID)
	if report.Expired != 1 {
		t.Fatalf("expected expired access token swept, got %+v", report)
	}
}

func TestInvalidateStaleIsolatesPerSessionFailures(t *testing.T) {
	h := newTestHarness(t, true)
	ctx := context.Background()

	for i, tok := range []string{"garbage-1", "garbage-2", "garbage-3"} {
		s := &domain.Session{UserID: 7, AccessToken: tok}
		if err := h.sessions.Create(ctx, s); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	h.sessions.failMarkFor[2] = true

	report := h.sweeper.InvalidateStale(ctx, 7)
	if report.Checked != 3 || report.Expired != 2 || report.Failed != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if h.sessions.get(2).Expired {
		t.Fatal("failed update should leave the row unchanged")
	}
	if !h.sessions.get(1).Expired || !h.sessions.get(3).Expired {
		t.Fatal("expected other rows expired despite one failure")
	}
}

func TestSessionSweeperDispatchIsDetached(t *testing.T) {
	h := newTestHarness(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	if err := h.sessions.Create(context.Background(), &domain.Session{UserID: 9, AccessToken: "not-a-jwt"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	h.sweeper.Dispatch(9)
	cancel()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	if err := h.sweeper.Wait(waitCtx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if ctx.Err() == nil {
		t.Fatal("expected caller context cancelled")
	}
	if !h.sessions.get(1).Expired {
		t.Fatal("expected detached sweep to complete after caller cancelled")
	}
}

func TestInvalidateStaleLeavesSessionRotatedMidSweep(t *testing.T) {
	h := newTestHarness(t, true)
	ctx := context.Background()
	u := h.seedUser(t, "rotated@example.com", false)

	pair, err := h.core.Issue(ctx, u, DeviceContext{UserAgent: "phone"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	row, err := h.sessions.FindByAccessToken(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("find row: %v", err)
	}
	h.sessions.setToken(row.ID, tamperSignature(pair.AccessToken))

	fresh, err := h.jwt.SignAccessToken(u.ID, u.RoleID, testAccessTTL)
	if err != nil {
		t.Fatalf("sign fresh token: %v", err)
	}
	h.sessions.afterList = func() { h.sessions.setToken(row.ID, fresh) }

	report := h.sweeper.InvalidateStale(ctx, u.ID)
	if report.Checked != 1 || report.Expired != 0 || report.Failed != 0 {
		t.Fatalf("unexpected sweep report: %+v", report)
	}
	if h.sessions.get(row.ID).Expired {
		t.Fatal("expected rotated session to stay unexpired")
	}
	if _, err := h.core.VerifyRequest(ctx, AuthRequest{Token: fresh, Route: "/api/v1/user/profile-details"}); err != nil {
		t.Fatalf("expected rotated token admitted, got %v", err)
	}
}
