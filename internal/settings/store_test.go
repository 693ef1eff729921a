package settings

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"chatarchiver/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func testStore(t *testing.T) (*SQLiteStore, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "nested", "settings.db")
	store, err := NewSQLiteStore(dbPath, testLogger())
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, dbPath
}

func boolPtr(b bool) *bool                             { return &b }
func intPtr(n int) *int                                { return &n }
func formatPtr(f domain.FormatKind) *domain.FormatKind { return &f }

func TestSQLiteStore_DefaultsOnFirstRun(t *testing.T) {
	store, _ := testStore(t)

	got, err := store.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != domain.DefaultSettings() {
		t.Errorf("expected defaults, got %+v", got)
	}
	if got.AutoSave || got.IntervalMinutes != 10 || got.Format != domain.FormatMarkdown {
		t.Errorf("unexpected default values: %+v", got)
	}
}

func TestSQLiteStore_PartialUpdateKeepsOtherKeys(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	if err := store.Update(ctx, domain.SettingsPatch{Format: formatPtr(domain.FormatJSON)}); err != nil {
		t.Fatal(err)
	}
	if err := store.Update(ctx, domain.SettingsPatch{AutoSave: boolPtr(true), IntervalMinutes: intPtr(5)}); err != nil {
		t.Fatal(err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := domain.Settings{AutoSave: true, IntervalMinutes: 5, Format: domain.FormatJSON}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	store, dbPath := testStore(t)
	ctx := context.Background()

	if err := store.Update(ctx, domain.SettingsPatch{AutoSave: boolPtr(true), IntervalMinutes: intPtr(30)}); err != nil {
		t.Fatal(err)
	}
	store.Close()

	reopened, err := NewSQLiteStore(dbPath, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	got, err := reopened.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !got.AutoSave || got.IntervalMinutes != 30 {
		t.Errorf("settings not persisted: %+v", got)
	}
}

func TestSQLiteStore_EmptyPatchIsNoop(t *testing.T) {
	store, _ := testStore(t)
	if err := store.Update(context.Background(), domain.SettingsPatch{}); err != nil {
		t.Fatalf("empty patch: %v", err)
	}
}

func TestSQLiteStore_InvalidValuesFallBackToDefaults(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	if _, err := store.db.Exec(`INSERT INTO settings (key, value) VALUES ('interval', '"soon"'), ('autoSave', 'true')`); err != nil {
		t.Fatal(err)
	}
	if err := store.Update(ctx, domain.SettingsPatch{}); err != nil {
		t.Fatal(err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.IntervalMinutes != domain.DefaultIntervalMinutes {
		t.Errorf("expected default interval, got %d", got.IntervalMinutes)
	}
	if !got.AutoSave {
		t.Error("valid keys should still load")
	}
}

func TestSQLiteStore_NonPositiveIntervalFallsBack(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	if err := store.Update(ctx, domain.SettingsPatch{IntervalMinutes: intPtr(0)}); err != nil {
		t.Fatal(err)
	}
	got, err := store.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.IntervalMinutes != domain.DefaultIntervalMinutes {
		t.Errorf("expected default interval, got %d", got.IntervalMinutes)
	}
}

func TestSQLiteStore_OversizedIntervalIsClamped(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	if err := store.Update(ctx, domain.SettingsPatch{IntervalMinutes: intPtr(200_000_000)}); err != nil {
		t.Fatal(err)
	}
	got, err := store.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.IntervalMinutes != domain.MaxIntervalMinutes {
		t.Errorf("expected clamp to %d, got %d", domain.MaxIntervalMinutes, got.IntervalMinutes)
	}
}

func TestSQLiteStore_UnknownFormatFallsBack(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	if err := store.Update(ctx, domain.SettingsPatch{Format: formatPtr("pdf")}); err != nil {
		t.Fatal(err)
	}
	got, err := store.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.Format != domain.FormatMarkdown {
		t.Errorf("expected markdown, got %q", got.Format)
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	got, _ := store.Load(ctx)
	if got != domain.DefaultSettings() {
		t.Errorf("expected defaults, got %+v", got)
	}

	store.Update(ctx, domain.SettingsPatch{AutoSave: boolPtr(true)})
	store.Update(ctx, domain.SettingsPatch{Format: formatPtr(domain.FormatText)})

	got, _ = store.Load(ctx)
	want := domain.Settings{AutoSave: true, IntervalMinutes: 10, Format: domain.FormatText}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}
