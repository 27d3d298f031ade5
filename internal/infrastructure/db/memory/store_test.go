package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/contentforge/studio-api/internal/core/domain"
	"github.com/contentforge/studio-api/internal/core/ports"
)

func seedUser(t *testing.T, s *Store, username string) *domain.User {
	t.Helper()
	u, err := s.Users().Create(context.Background(), &domain.User{Username: username, Role: domain.RoleStandard})
	if err != nil {
		t.Fatalf("seed %s: %v", username, err)
	}
	return u
}

func TestApplyDelta_ConservesUnderConcurrency(t *testing.T) {
	s := NewStore()
	u := seedUser(t, s, "alice")
	usage := s.Usage()

	const workers = 16
	const perWorker = 25

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				if _, _, err := usage.ApplyDelta(context.Background(), u.ID, "chat", -3); err != nil {
					t.Errorf("apply delta: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	final, err := s.Users().FindByID(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	wantBalance := int64(-3 * workers * perWorker)
	if final.TokenBalance != wantBalance {
		t.Fatalf("balance = %d, want %d", final.TokenBalance, wantBalance)
	}

	records, err := usage.List(context.Background(), ports.UsageFilter{UserID: u.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != workers*perWorker {
		t.Fatalf("got %d records, want %d", len(records), workers*perWorker)
	}
	var sum int64
	for _, rec := range records {
		sum += rec.TokenDelta
	}
	if sum != wantBalance {
		t.Fatalf("record sum = %d, want %d", sum, wantBalance)
	}
}

func TestApplyDelta_UnknownUser(t *testing.T) {
	s := NewStore()
	_, _, err := s.Usage().ApplyDelta(context.Background(), "missing", "chat", -1)
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUsageList_NewestFirstWithSequenceTiebreak(t *testing.T) {
	s := NewStore()
	u := seedUser(t, s, "alice")
	usage := s.Usage()

	// Same-instant records must still come back in reverse insertion order.
	for i := 0; i < 5; i++ {
		if _, _, err := usage.ApplyDelta(context.Background(), u.ID, fmt.Sprintf("f%d", i), -1); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}

	records, err := usage.List(context.Background(), ports.UsageFilter{UserID: u.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("got %d records", len(records))
	}
	for i, rec := range records {
		want := fmt.Sprintf("f%d", 4-i)
		if rec.Feature != want {
			t.Fatalf("position %d: feature = %s, want %s", i, rec.Feature, want)
		}
	}
}

func TestUsageList_FiltersAndPagination(t *testing.T) {
	s := NewStore()
	alice := seedUser(t, s, "alice")
	bob := seedUser(t, s, "bob")
	usage := s.Usage()

	for i := 0; i < 6; i++ {
		if _, _, err := usage.ApplyDelta(context.Background(), alice.ID, "chat", -1); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}
	if _, _, err := usage.ApplyDelta(context.Background(), alice.ID, "research", -10); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, _, err := usage.ApplyDelta(context.Background(), bob.ID, "chat", -1); err != nil {
		t.Fatalf("apply: %v", err)
	}

	byFeature, err := usage.List(context.Background(), ports.UsageFilter{UserID: alice.ID, Feature: "research"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(byFeature) != 1 || byFeature[0].TokenDelta != -10 {
		t.Fatalf("feature filter failed: %+v", byFeature)
	}

	page2, err := usage.List(context.Background(), ports.UsageFilter{UserID: alice.ID, Page: 2, Limit: 5})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page2) != 2 {
		t.Fatalf("page 2 size = %d, want 2", len(page2))
	}

	past, err := usage.List(context.Background(), ports.UsageFilter{
		UserID: alice.ID,
		DateTo: time.Now().Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(past) != 0 {
		t.Fatalf("date filter should exclude everything, got %d", len(past))
	}
}

func TestUserCreate_DuplicateUsername(t *testing.T) {
	s := NewStore()
	seedUser(t, s, "alice")

	_, err := s.Users().Create(context.Background(), &domain.User{Username: "alice"})
	if !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestUserUpdate_NeverMovesBalance(t *testing.T) {
	s := NewStore()
	u := seedUser(t, s, "alice")
	if _, _, err := s.Usage().ApplyDelta(context.Background(), u.ID, "admin-grant", 500); err != nil {
		t.Fatalf("grant: %v", err)
	}

	u.Role = domain.RoleElevated
	u.TokenBalance = 999999
	if err := s.Users().Update(context.Background(), u); err != nil {
		t.Fatalf("update: %v", err)
	}

	stored, err := s.Users().FindByID(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if stored.Role != domain.RoleElevated {
		t.Fatalf("role not updated")
	}
	if stored.TokenBalance != 500 {
		t.Fatalf("balance = %d, want 500; only the ledger may move it", stored.TokenBalance)
	}
}

func TestUserList_SearchAndApprovedFilter(t *testing.T) {
	s := NewStore()
	alice := seedUser(t, s, "alice")
	seedUser(t, s, "bob")

	alice.Approved = true
	if err := s.Users().Update(context.Background(), alice); err != nil {
		t.Fatalf("update: %v", err)
	}

	approved := true
	matched, total, err := s.Users().List(context.Background(), ports.ListUsersFilter{Approved: &approved})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(matched) != 1 || matched[0].Username != "alice" {
		t.Fatalf("approved filter failed: total=%d matched=%+v", total, matched)
	}

	matched, _, err = s.Users().List(context.Background(), ports.ListUsersFilter{Search: "BO"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(matched) != 1 || matched[0].Username != "bob" {
		t.Fatalf("search is case-insensitive over usernames, got %+v", matched)
	}
}

func TestArtifactFindByID_OwnerScoped(t *testing.T) {
	s := NewStore()
	repo := s.Artifacts()
	if err := repo.Create(context.Background(), &domain.Artifact{ID: "a_1", UserID: "u_1"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := repo.FindByID(context.Background(), "a_1", "u_1"); err != nil {
		t.Fatalf("owner lookup: %v", err)
	}
	if _, err := repo.FindByID(context.Background(), "a_1", "u_2"); !errors.Is(err, domain.ErrArtifactNotFound) {
		t.Fatalf("cross-user lookup must miss, got %v", err)
	}
	// Empty owner skips the scope check; used by admin paths.
	if _, err := repo.FindByID(context.Background(), "a_1", ""); err != nil {
		t.Fatalf("unscoped lookup: %v", err)
	}
}

func TestDeleteByUser_Cascade(t *testing.T) {
	s := NewStore()
	u := seedUser(t, s, "alice")
	other := seedUser(t, s, "bob")

	if _, _, err := s.Usage().ApplyDelta(context.Background(), u.ID, "chat", -1); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, _, err := s.Usage().ApplyDelta(context.Background(), other.ID, "chat", -1); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := s.Artifacts().Create(context.Background(), &domain.Artifact{ID: "a_1", UserID: u.ID}); err != nil {
		t.Fatalf("create artifact: %v", err)
	}
	if err := s.Transcripts().Create(context.Background(), &domain.Transcript{ID: "t_1", UserID: u.ID}); err != nil {
		t.Fatalf("create transcript: %v", err)
	}

	for _, del := range []func(context.Context, string) error{
		s.Usage().DeleteByUser,
		s.Artifacts().DeleteByUser,
		s.Transcripts().DeleteByUser,
	} {
		if err := del(context.Background(), u.ID); err != nil {
			t.Fatalf("cascade: %v", err)
		}
	}

	records, err := s.Usage().List(context.Background(), ports.UsageFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 || records[0].UserID != other.ID {
		t.Fatalf("other user's records must survive, got %+v", records)
	}
	if _, err := s.Artifacts().FindByID(context.Background(), "a_1", ""); !errors.Is(err, domain.ErrArtifactNotFound) {
		t.Fatalf("artifact must be gone, got %v", err)
	}
	if _, err := s.Transcripts().FindByID(context.Background(), "t_1", ""); !errors.Is(err, domain.ErrTranscriptNotFound) {
		t.Fatalf("transcript must be gone, got %v", err)
	}
}

func TestTranscriptRefinement_PreservesRaw(t *testing.T) {
	s := NewStore()
	repo := s.Transcripts()
	if err := repo.Create(context.Background(), &domain.Transcript{ID: "t_1", UserID: "u_1", RawContent: "raw words"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := repo.UpdateRefinement(context.Background(), "t_1", "u_1", domain.RefineOrganize, "tidy words"); err != nil {
		t.Fatalf("refine: %v", err)
	}

	tr, err := repo.FindByID(context.Background(), "t_1", "u_1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if tr.RawContent != "raw words" {
		t.Fatalf("raw content must be untouched, got %q", tr.RawContent)
	}
	if tr.RefinedContent != "tidy words" || tr.RefinementKind != domain.RefineOrganize {
		t.Fatalf("refinement not stored: %+v", tr)
	}
}
