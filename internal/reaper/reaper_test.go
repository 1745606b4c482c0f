package reaper

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/satbounty/backend/internal/repositories"
)

type fakeCaseStore struct {
	expired    []repositories.ExpiredCase
	listCutoff time.Time
	listErr    error
	deleteErr  map[int64]error
	kept       map[int64]bool // rows that re-check as paid
	deleted    []int64
}

func (s *fakeCaseStore) UnpaidOlderThan(ctx context.Context, cutoff time.Time) ([]repositories.ExpiredCase, error) {
	s.listCutoff = cutoff
	return s.expired, s.listErr
}

func (s *fakeCaseStore) DeleteUnpaid(ctx context.Context, id int64) (bool, error) {
	if err := s.deleteErr[id]; err != nil {
		return false, err
	}
	if s.kept[id] {
		return false, nil
	}
	s.deleted = append(s.deleted, id)
	return true, nil
}

type fakeActivationStore struct {
	expired []repositories.ExpiredActivation
	deleted [][2]int64
}

func (s *fakeActivationStore) UnpaidOlderThan(ctx context.Context, cutoff time.Time) ([]repositories.ExpiredActivation, error) {
	return s.expired, nil
}

func (s *fakeActivationStore) DeleteUnpaidWithUser(ctx context.Context, activationID, userID int64) (bool, error) {
	s.deleted = append(s.deleted, [2]int64{activationID, userID})
	return true, nil
}

type fakeUserStore struct {
	orphansDeleted int64
	calls          int
}

func (s *fakeUserStore) DeleteWithoutActivation(ctx context.Context) (int64, error) {
	s.calls++
	return s.orphansDeleted, nil
}

type fakeCanceler struct {
	canceled []string
	err      error
}

func (c *fakeCanceler) CancelInvoice(ctx context.Context, hash string) error {
	c.canceled = append(c.canceled, hash)
	return c.err
}

func newTestReaper(cases *fakeCaseStore, acts *fakeActivationStore, users *fakeUserStore, ln *fakeCanceler) *Reaper {
	return New(cases, acts, users, ln, 24*time.Hour, 24*time.Hour, time.Minute, zap.NewNop())
}

func TestSweepCasesCutoffWindow(t *testing.T) {
	cases := &fakeCaseStore{}
	r := newTestReaper(cases, &fakeActivationStore{}, &fakeUserStore{}, &fakeCanceler{})

	before := time.Now().Add(-24 * time.Hour)
	r.SweepCases(context.Background())
	after := time.Now().Add(-24 * time.Hour)

	if cases.listCutoff.Before(before) || cases.listCutoff.After(after) {
		t.Errorf("cutoff %v not within [%v, %v]", cases.listCutoff, before, after)
	}
}

func TestSweepCasesDeletesAndCancels(t *testing.T) {
	cases := &fakeCaseStore{expired: []repositories.ExpiredCase{
		{ID: 1, InvoiceHash: "h1"},
		{ID: 2, InvoiceHash: "h2"},
	}}
	ln := &fakeCanceler{}
	r := newTestReaper(cases, &fakeActivationStore{}, &fakeUserStore{}, ln)

	r.SweepCases(context.Background())

	if len(cases.deleted) != 2 {
		t.Errorf("deleted %v, want both rows", cases.deleted)
	}
	if len(ln.canceled) != 2 || ln.canceled[0] != "h1" || ln.canceled[1] != "h2" {
		t.Errorf("canceled %v, want [h1 h2]", ln.canceled)
	}
}

func TestSweepCasesPaidRowSurvives(t *testing.T) {
	// Row 1 settles between the sweep query and the delete; its invoice
	// must not be canceled.
	cases := &fakeCaseStore{
		expired: []repositories.ExpiredCase{
			{ID: 1, InvoiceHash: "h1"},
			{ID: 2, InvoiceHash: "h2"},
		},
		kept: map[int64]bool{1: true},
	}
	ln := &fakeCanceler{}
	r := newTestReaper(cases, &fakeActivationStore{}, &fakeUserStore{}, ln)

	r.SweepCases(context.Background())

	if len(cases.deleted) != 1 || cases.deleted[0] != 2 {
		t.Errorf("deleted %v, want [2]", cases.deleted)
	}
	if len(ln.canceled) != 1 || ln.canceled[0] != "h2" {
		t.Errorf("canceled %v, want [h2]", ln.canceled)
	}
}

func TestSweepCasesRowFailureDoesNotAbortSweep(t *testing.T) {
	cases := &fakeCaseStore{
		expired: []repositories.ExpiredCase{
			{ID: 1, InvoiceHash: "h1"},
			{ID: 2, InvoiceHash: "h2"},
		},
		deleteErr: map[int64]error{1: errors.New("deadlock")},
	}
	r := newTestReaper(cases, &fakeActivationStore{}, &fakeUserStore{}, &fakeCanceler{})

	r.SweepCases(context.Background())

	if len(cases.deleted) != 1 || cases.deleted[0] != 2 {
		t.Errorf("deleted %v, want [2] despite row 1 failing", cases.deleted)
	}
}

func TestSweepCasesCancelFailureLeavesRowDeleted(t *testing.T) {
	cases := &fakeCaseStore{expired: []repositories.ExpiredCase{{ID: 1, InvoiceHash: "h1"}}}
	ln := &fakeCanceler{err: errors.New("node down")}
	r := newTestReaper(cases, &fakeActivationStore{}, &fakeUserStore{}, ln)

	r.SweepCases(context.Background())

	if len(cases.deleted) != 1 {
		t.Error("row must stay deleted even when the invoice cancel fails")
	}
}

func TestSweepActivationsDeletesUserAndOrphans(t *testing.T) {
	acts := &fakeActivationStore{expired: []repositories.ExpiredActivation{
		{ID: 3, UserID: 9, InvoiceHash: "h3"},
	}}
	users := &fakeUserStore{orphansDeleted: 2}
	ln := &fakeCanceler{}
	r := newTestReaper(&fakeCaseStore{}, acts, users, ln)

	r.SweepActivations(context.Background())

	if len(acts.deleted) != 1 || acts.deleted[0] != [2]int64{3, 9} {
		t.Errorf("deleted %v, want [[3 9]]", acts.deleted)
	}
	if len(ln.canceled) != 1 || ln.canceled[0] != "h3" {
		t.Errorf("canceled %v, want [h3]", ln.canceled)
	}
	if users.calls != 1 {
		t.Errorf("orphan cleanup ran %d times, want 1", users.calls)
	}
}
