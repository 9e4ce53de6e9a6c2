package transcript

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/0xcro3dile/filechat-go/internal/domain/entities"
	"github.com/0xcro3dile/filechat-go/internal/domain/ports"
)

type closingTranscript interface {
	ports.Transcript
	Close() error
}

func stores(t *testing.T) map[string]closingTranscript {
	t.Helper()
	sqlite, err := NewSQLiteStore()
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}
	return map[string]closingTranscript{
		"memory": NewInMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestTranscript_AppendAndList(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			defer store.Close()
			ctx := context.Background()
			at := time.Unix(1700000000, 0)

			user, err := store.Append(ctx, "s1", entities.DisplayMessage{Role: entities.RoleUser, Content: "What is the total revenue?", At: at})
			if err != nil {
				t.Fatalf("append failed: %v", err)
			}
			reply, err := store.Append(ctx, "s1", entities.DisplayMessage{Role: entities.RoleAssistant, Content: "$4.2M", At: at.Add(time.Second)})
			if err != nil {
				t.Fatalf("append failed: %v", err)
			}
			if user.Seq == 0 || reply.Seq <= user.Seq {
				t.Errorf("expected increasing sequence, got %d then %d", user.Seq, reply.Seq)
			}

			log, err := store.List(ctx, "s1")
			if err != nil {
				t.Fatalf("list failed: %v", err)
			}
			if len(log) != 2 {
				t.Fatalf("expected 2 messages, got %d", len(log))
			}
			if log[0].Role != entities.RoleUser || log[1].Role != entities.RoleAssistant {
				t.Errorf("unexpected order: %+v", log)
			}
			if log[1].Content != "$4.2M" || !log[1].At.Equal(at.Add(time.Second)) {
				t.Errorf("unexpected reply: %+v", log[1])
			}
		})
	}
}

func TestTranscript_SessionsAreIsolated(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			defer store.Close()
			ctx := context.Background()

			store.Append(ctx, "s1", entities.DisplayMessage{Role: entities.RoleUser, Content: "one"})
			store.Append(ctx, "s2", entities.DisplayMessage{Role: entities.RoleUser, Content: "two"})

			log, _ := store.List(ctx, "s2")
			if len(log) != 1 || log[0].Content != "two" {
				t.Errorf("unexpected s2 log: %+v", log)
			}
			empty, err := store.List(ctx, "missing")
			if err != nil {
				t.Fatalf("list failed: %v", err)
			}
			if len(empty) != 0 {
				t.Errorf("expected empty log, got %+v", empty)
			}
		})
	}
}

func TestTranscript_Drop(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			defer store.Close()
			ctx := context.Background()

			store.Append(ctx, "s1", entities.DisplayMessage{Role: entities.RoleUser, Content: "hello"})
			store.Append(ctx, "s2", entities.DisplayMessage{Role: entities.RoleUser, Content: "keep"})

			if err := store.Drop(ctx, "s1"); err != nil {
				t.Fatalf("drop failed: %v", err)
			}
			if log, _ := store.List(ctx, "s1"); len(log) != 0 {
				t.Errorf("expected s1 dropped, got %+v", log)
			}
			if log, _ := store.List(ctx, "s2"); len(log) != 1 {
				t.Errorf("expected s2 kept, got %+v", log)
			}
		})
	}
}

func TestTranscript_ConcurrentAppends(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			defer store.Close()
			ctx := context.Background()

			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					store.Append(ctx, "s1", entities.DisplayMessage{Role: entities.RoleUser, Content: "x"})
				}()
			}
			wg.Wait()

			log, _ := store.List(ctx, "s1")
			if len(log) != 20 {
				t.Fatalf("expected 20 messages, got %d", len(log))
			}
			for i := 1; i < len(log); i++ {
				if log[i].Seq <= log[i-1].Seq {
					t.Errorf("sequence not increasing at %d", i)
				}
			}
		})
	}
}

func TestSQLiteStore_PrivateDatabases(t *testing.T) {
	a, err := NewSQLiteStore()
	if err != nil {
		t.Fatalf("create a: %v", err)
	}
	defer a.Close()
	b, err := NewSQLiteStore()
	if err != nil {
		t.Fatalf("create b: %v", err)
	}
	defer b.Close()

	ctx := context.Background()
	a.Append(ctx, "s1", entities.DisplayMessage{Role: entities.RoleUser, Content: "only in a"})
	if log, _ := b.List(ctx, "s1"); len(log) != 0 {
		t.Errorf("stores share data: %+v", log)
	}
}
