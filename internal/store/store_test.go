package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/thereceipt/certificate-engine/pkg/certformat"
)

// backends runs fn against every store implementation
func backends(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("file", func(t *testing.T) {
		s, err := NewFileStore(filepath.Join(t.TempDir(), "store.json"))
		if err != nil {
			t.Fatalf("Failed to create file store: %v", err)
		}
		fn(t, s)
	})

	t.Run("sqlite", func(t *testing.T) {
		s, err := OpenSQL(context.Background(), "sqlite", ":memory:")
		if err != nil {
			t.Fatalf("Failed to open sqlite store: %v", err)
		}
		defer s.Close()
		fn(t, s)
	})
}

func TestTemplateCRUD(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		created, err := s.Create(ctx, CourseCompletion())
		if err != nil {
			t.Fatalf("Failed to create: %v", err)
		}
		if created.CreatedAt.IsZero() {
			t.Error("Expected createdAt to be set")
		}

		got, err := s.Get(ctx, "course-completion")
		if err != nil {
			t.Fatalf("Failed to get: %v", err)
		}
		if got.Name != "Course Completion Certificate" || len(got.Elements) != 8 {
			t.Errorf("Unexpected template: %s with %d elements", got.Name, len(got.Elements))
		}

		got.Name = "Renamed"
		updated, err := s.Update(ctx, got)
		if err != nil {
			t.Fatalf("Failed to update: %v", err)
		}
		if !updated.CreatedAt.Equal(created.CreatedAt) {
			t.Errorf("Expected createdAt preserved, got %v vs %v", updated.CreatedAt, created.CreatedAt)
		}

		again, _ := s.Get(ctx, "course-completion")
		if again.Name != "Renamed" {
			t.Errorf("Expected name Renamed, got %s", again.Name)
		}

		if err := s.Delete(ctx, "course-completion"); err != nil {
			t.Fatalf("Failed to delete: %v", err)
		}
		if _, err := s.Get(ctx, "course-completion"); !errors.Is(err, certformat.ErrTemplateNotFound) {
			t.Errorf("Expected ErrTemplateNotFound, got %v", err)
		}
	})
}

func TestTemplateErrors(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		s.Create(ctx, CourseCompletion())

		if _, err := s.Create(ctx, CourseCompletion()); !errors.Is(err, ErrTemplateExists) {
			t.Errorf("Expected ErrTemplateExists, got %v", err)
		}
		if _, err := s.Update(ctx, certformat.NewTemplate("missing", "x")); !errors.Is(err, certformat.ErrTemplateNotFound) {
			t.Errorf("Expected ErrTemplateNotFound on update, got %v", err)
		}
		if err := s.Delete(ctx, "missing"); !errors.Is(err, certformat.ErrTemplateNotFound) {
			t.Errorf("Expected ErrTemplateNotFound on delete, got %v", err)
		}

		bad := certformat.NewTemplate("bad", "Bad")
		bad.Width = 0
		if _, err := s.Create(ctx, bad); !errors.Is(err, certformat.ErrInvalidTemplate) {
			t.Errorf("Expected ErrInvalidTemplate, got %v", err)
		}
	})
}

func TestCreate_AssignsID(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		created, err := s.Create(context.Background(), certformat.NewTemplate("", "Untitled"))
		if err != nil {
			t.Fatalf("Failed to create: %v", err)
		}
		if created.ID == "" {
			t.Error("Expected generated id")
		}
	})
}

func TestList_NewestFirst(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		tick := 0
		setClock(s, func() time.Time {
			tick++
			return base.Add(time.Duration(tick) * time.Second)
		})

		for _, id := range []string{"a", "b", "c"} {
			if _, err := s.Create(ctx, certformat.NewTemplate(id, id)); err != nil {
				t.Fatalf("Failed to create %s: %v", id, err)
			}
		}

		list, err := s.List(ctx)
		if err != nil {
			t.Fatalf("Failed to list: %v", err)
		}
		if len(list) != 3 || list[0].ID != "c" || list[2].ID != "a" {
			var ids []string
			for _, tpl := range list {
				ids = append(ids, tpl.ID)
			}
			t.Errorf("Expected [c b a], got %v", ids)
		}
	})
}

func TestGenerations(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

		for i, name := range []string{"Ada", "Grace", "Alan"} {
			_, err := s.CreateGeneration(ctx, &GenerationRecord{
				RunID:         "run-1",
				TemplateID:    "course-completion",
				RowIndex:      i,
				RecipientName: name,
				Status:        StatusCompleted,
				FileURL:       "/files/" + name + ".pdf",
				Metadata:      map[string]interface{}{"Name": name},
				CreatedAt:     base.Add(time.Duration(i) * time.Minute),
			})
			if err != nil {
				t.Fatalf("Failed to create generation: %v", err)
			}
		}

		all, err := s.ListGenerations(ctx, 0)
		if err != nil {
			t.Fatalf("Failed to list generations: %v", err)
		}
		if len(all) != 3 || all[0].RecipientName != "Alan" {
			t.Fatalf("Expected 3 records with Alan first, got %d", len(all))
		}
		if all[0].Metadata["Name"] != "Alan" {
			t.Errorf("Expected metadata to round-trip, got %v", all[0].Metadata)
		}

		limited, _ := s.ListGenerations(ctx, 2)
		if len(limited) != 2 {
			t.Errorf("Expected 2 records, got %d", len(limited))
		}
	})
}

func TestFileStore_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	ctx := context.Background()

	s1, _ := NewFileStore(path)
	s1.Create(ctx, CourseCompletion())
	s1.CreateGeneration(ctx, &GenerationRecord{TemplateID: "course-completion", RecipientName: "Ada", Status: StatusCompleted})

	s2, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	if _, err := s2.Get(ctx, "course-completion"); err != nil {
		t.Errorf("Expected template after reopen: %v", err)
	}
	gens, _ := s2.ListGenerations(ctx, 0)
	if len(gens) != 1 {
		t.Errorf("Expected 1 generation after reopen, got %d", len(gens))
	}
}

func TestFileStore_FailedWriteLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "missing-dir", "store.json"))
	if err != nil {
		t.Fatalf("Failed to create file store: %v", err)
	}

	if _, err := s.Create(ctx, CourseCompletion()); err == nil {
		t.Fatal("Expected create to fail when the directory is missing")
	}
	if _, err := s.Get(ctx, "course-completion"); !errors.Is(err, certformat.ErrTemplateNotFound) {
		t.Errorf("Expected ErrTemplateNotFound after failed create, got %v", err)
	}

	if _, err := s.CreateGeneration(ctx, &GenerationRecord{TemplateID: "course-completion", Status: StatusCompleted}); err == nil {
		t.Fatal("Expected generation write to fail when the directory is missing")
	}
	gens, _ := s.ListGenerations(ctx, 0)
	if len(gens) != 0 {
		t.Errorf("Expected no generations after failed write, got %d", len(gens))
	}
}

func TestFileStore_FailedUpdateKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "data")
	if err := os.Mkdir(dir, 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	s, _ := NewFileStore(filepath.Join(dir, "store.json"))
	if _, err := s.Create(ctx, CourseCompletion()); err != nil {
		t.Fatalf("Failed to create: %v", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("Failed to remove dir: %v", err)
	}

	got, _ := s.Get(ctx, "course-completion")
	got.Name = "Renamed"
	if _, err := s.Update(ctx, got); err == nil {
		t.Fatal("Expected update to fail")
	}
	if err := s.Delete(ctx, "course-completion"); err == nil {
		t.Fatal("Expected delete to fail")
	}

	again, err := s.Get(ctx, "course-completion")
	if err != nil {
		t.Fatalf("Expected template to survive failed delete: %v", err)
	}
	if again.Name != "Course Completion Certificate" {
		t.Errorf("Expected original name after failed update, got %s", again.Name)
	}
}

func TestFileStore_HistoryIsAppended(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	ctx := context.Background()

	s, _ := NewFileStore(path)
	for _, name := range []string{"Ada", "Grace"} {
		if _, err := s.CreateGeneration(ctx, &GenerationRecord{TemplateID: "t", RecipientName: name, Status: StatusCompleted}); err != nil {
			t.Fatalf("Failed to create generation: %v", err)
		}
	}

	data, err := os.ReadFile(HistoryPath(path))
	if err != nil {
		t.Fatalf("Failed to read history file: %v", err)
	}
	if lines := strings.Count(string(data), "\n"); lines != 2 {
		t.Errorf("Expected 2 history lines, got %d", lines)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Expected template file untouched by history writes, got %v", err)
	}
}

func TestHistoryPath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"store.json", "store.history.jsonl"},
		{"/var/lib/certs/templates", "/var/lib/certs/templates.history.jsonl"},
	}
	for _, tt := range tests {
		if got := HistoryPath(tt.in); got != tt.want {
			t.Errorf("HistoryPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFileStore_ReturnsCopies(t *testing.T) {
	s, _ := NewFileStore("")
	ctx := context.Background()
	s.Create(ctx, CourseCompletion())

	got, _ := s.Get(ctx, "course-completion")
	got.Elements = nil

	again, _ := s.Get(ctx, "course-completion")
	if len(again.Elements) != 8 {
		t.Error("Expected stored template unaffected by caller mutation")
	}
}

func TestSeed(t *testing.T) {
	s, _ := NewFileStore("")
	ctx := context.Background()

	seeded, err := Seed(ctx, s)
	if err != nil || !seeded {
		t.Fatalf("Expected first seed to write, got %v %v", seeded, err)
	}

	seeded, err = Seed(ctx, s)
	if err != nil || seeded {
		t.Errorf("Expected second seed to be a no-op, got %v %v", seeded, err)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), Options{Driver: "postgres"}); err == nil {
		t.Error("Expected error for unknown driver")
	}
}

func TestRedactDSN(t *testing.T) {
	got := RedactDSN("mysql", "user:secret@tcp(localhost:3306)/certs")
	if got == "" || strings.Contains(got, "secret") {
		t.Errorf("Expected password hidden, got %s", got)
	}
	if RedactDSN("sqlite", "file.db") != "file.db" {
		t.Error("Expected sqlite dsn unchanged")
	}
}

func setClock(s Store, now func() time.Time) {
	switch st := s.(type) {
	case *FileStore:
		st.now = now
	case *SQLStore:
		st.now = now
	}
}
