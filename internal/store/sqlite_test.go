package store

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/eductome/eductome/internal/domain"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "eductome.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestProfileRoundTrip(t *testing.T) {
	t.Parallel()
	repo := newTestStore(t)
	ctx := context.Background()

	got, err := repo.GetProfile(ctx)
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if got != nil {
		t.Fatal("expected nil profile before any save")
	}

	profile := &domain.Profile{
		Name:             "Awa",
		GradeClass:       "Terminale C",
		Weaknesses:       []string{"Barycentres", "Electromagnétisme"},
		DisciplinePoints: 12,
		Mastery:          40,
		Badges:           []string{},
	}
	if err := repo.SaveProfile(ctx, profile); err != nil {
		t.Fatalf("SaveProfile failed: %v", err)
	}

	got, err = repo.GetProfile(ctx)
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected saved profile")
	}
	if got.Name != "Awa" || got.GradeClass != "Terminale C" || got.DisciplinePoints != 12 {
		t.Errorf("profile did not round-trip: %+v", got)
	}
	if !reflect.DeepEqual(got.Weaknesses, profile.Weaknesses) {
		t.Errorf("weaknesses did not round-trip: %v", got.Weaknesses)
	}
}

func TestAddPointsWithoutProfile(t *testing.T) {
	t.Parallel()
	repo := newTestStore(t)

	got, err := repo.AddPoints(context.Background(), 10)
	if err != nil {
		t.Fatalf("AddPoints failed: %v", err)
	}
	if got != nil {
		t.Error("expected nil when no profile exists")
	}
}

func TestAddPointsPersistsBadges(t *testing.T) {
	t.Parallel()
	repo := newTestStore(t)
	ctx := context.Background()

	if err := repo.SaveProfile(ctx, &domain.Profile{Name: "Awa", DisciplinePoints: 95}); err != nil {
		t.Fatalf("SaveProfile failed: %v", err)
	}

	got, err := repo.AddPoints(ctx, 10)
	if err != nil {
		t.Fatalf("AddPoints failed: %v", err)
	}
	if got.DisciplinePoints != 105 {
		t.Errorf("expected 105 points, got %d", got.DisciplinePoints)
	}
	if !got.HasBadge(domain.BadgeDisciple) {
		t.Error("expected Disciple badge")
	}

	// The award must be durable, not just in the returned value.
	reloaded, err := repo.GetProfile(ctx)
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if !reloaded.HasBadge(domain.BadgeDisciple) {
		t.Error("expected badge to be persisted")
	}
}

func TestSessionUpsertAndRoundTrip(t *testing.T) {
	t.Parallel()
	repo := newTestStore(t)
	ctx := context.Background()

	sess := &domain.ChatSession{
		ID:      "sess-1",
		Subject: domain.SubjectMath,
		Messages: []domain.Message{
			{ID: "m1", Role: domain.RoleModel, Content: "Enchanté Awa.", Timestamp: 1700000000000},
		},
		LastUpdated: 1700000000000,
	}
	if err := repo.SaveSession(ctx, sess); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	other := &domain.ChatSession{ID: "sess-2", Subject: domain.SubjectSVT, LastUpdated: 1}
	if err := repo.SaveSession(ctx, other); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	// Replace in place, not append.
	sess.Messages = append(sess.Messages, domain.Message{ID: "m2", Role: domain.RoleUser, Content: "Bonjour", Timestamp: 1700000001000})
	sess.LastUpdated = 1700000001000
	if err := repo.SaveSession(ctx, sess); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	sessions, err := repo.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != "sess-1" || sessions[1].ID != "sess-2" {
		t.Errorf("session order not preserved: %s, %s", sessions[0].ID, sessions[1].ID)
	}

	got, err := repo.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if !reflect.DeepEqual(got, sess) {
		t.Errorf("session did not round-trip:\n got %+v\nwant %+v", got, sess)
	}
}

func TestGetSessionAbsent(t *testing.T) {
	t.Parallel()
	repo := newTestStore(t)

	got, err := repo.GetSession(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got != nil {
		t.Error("expected nil for unknown session id")
	}
}

func TestClearWipesEverything(t *testing.T) {
	t.Parallel()
	repo := newTestStore(t)
	ctx := context.Background()

	if err := repo.SaveProfile(ctx, &domain.Profile{Name: "Awa"}); err != nil {
		t.Fatalf("SaveProfile failed: %v", err)
	}
	if err := repo.SaveSession(ctx, &domain.ChatSession{ID: "s1"}); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	if err := repo.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	profile, err := repo.GetProfile(ctx)
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if profile != nil {
		t.Error("expected no profile after Clear")
	}
	sessions, err := repo.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("expected no sessions after Clear, got %d", len(sessions))
	}
}

func TestCorruptRecordReadsAsAbsent(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "eductome.db")
	repo, err := NewSQLite(dbPath)
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	ctx := context.Background()

	sqlRepo := repo.(*SQLiteStore)
	_, err = sqlRepo.db.ExecContext(ctx,
		`INSERT INTO records (key, value, updated_at) VALUES (?, ?, 0)`,
		ProfileKey, "{not json")
	if err != nil {
		t.Fatalf("failed to plant corrupt record: %v", err)
	}

	profile, err := repo.GetProfile(ctx)
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if profile != nil {
		t.Error("expected corrupt profile to read as absent")
	}
}
