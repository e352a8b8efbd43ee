package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"restaurant-chat-backend/internal/model"
)

func TestResolveCreatesSessionWhenNoneOpen(t *testing.T) {
	repo := newMemoryRepository()
	resolver := NewResolver(repo, fixedClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)))

	session, err := resolver.Resolve(context.Background(), model.GuestIdentity("guest-7"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if session.IdentityKind != model.IdentityGuest || session.IdentityID != "guest-7" {
		t.Fatalf("session identity = %s/%s", session.IdentityKind, session.IdentityID)
	}
	if session.Closed() {
		t.Fatal("new session must be open")
	}
	if session.StartTime != "2026-03-01T09:00:00Z" {
		t.Fatalf("startTime = %s", session.StartTime)
	}
}

func TestResolveReturnsExistingOpenSession(t *testing.T) {
	repo := newMemoryRepository()
	resolver := NewResolver(repo, nil)
	identity := model.CustomerIdentity("cust-9")

	first, err := resolver.Resolve(context.Background(), identity)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	second, err := resolver.Resolve(context.Background(), identity)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if first.SessionID != second.SessionID {
		t.Fatalf("resolve returned %s then %s", first.SessionID, second.SessionID)
	}
}

func TestResolveIgnoresClosedSessions(t *testing.T) {
	repo := newMemoryRepository()
	resolver := NewResolver(repo, nil)
	identity := model.CustomerIdentity("cust-2")

	first, err := resolver.Resolve(context.Background(), identity)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if err := resolver.Close(context.Background(), first.SessionID); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second, err := resolver.Resolve(context.Background(), identity)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if second.SessionID == first.SessionID {
		t.Fatal("resolve must not reuse a closed session")
	}
}

func TestReconcilePrefersSessionWithLatestMessage(t *testing.T) {
	repo := newMemoryRepository()
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	identity := model.AnonymousIdentity("anon-5")

	// Two duplicate open sessions, as left by a tab race.
	quiet := model.ChatSessionItem{
		PK: model.SessionPK(identity, "aaa"), SessionID: "aaa",
		IdentityKind: identity.Kind, IdentityID: identity.ID, IdentityKey: identity.Key(),
		StartTime: "2026-03-01T08:59:00Z",
	}
	active := model.ChatSessionItem{
		PK: model.SessionPK(identity, "bbb"), SessionID: "bbb",
		IdentityKind: identity.Kind, IdentityID: identity.ID, IdentityKey: identity.Key(),
		StartTime: "2026-03-01T08:58:00Z",
	}
	repo.CreateSession(context.Background(), quiet)
	repo.CreateSession(context.Background(), active)

	store := NewStore(repo, fixedClock(clock))
	if _, err := store.Append(context.Background(), "bbb", model.SenderUser, "xin chào"); err != nil {
		t.Fatalf("Append: %v", err)
	}

	resolver := NewResolver(repo, fixedClock(clock))
	winner, err := resolver.Resolve(context.Background(), identity)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if winner.SessionID != "bbb" {
		t.Fatalf("winner = %s, want the session with the latest message", winner.SessionID)
	}
}

func TestReconcileFallsBackToLatestStartTime(t *testing.T) {
	repo := newMemoryRepository()
	identity := model.GuestIdentity("guest-3")

	older := model.ChatSessionItem{
		PK: model.SessionPK(identity, "aaa"), SessionID: "aaa",
		IdentityKind: identity.Kind, IdentityID: identity.ID, IdentityKey: identity.Key(),
		StartTime: "2026-03-01T08:00:00Z",
	}
	newer := model.ChatSessionItem{
		PK: model.SessionPK(identity, "bbb"), SessionID: "bbb",
		IdentityKind: identity.Kind, IdentityID: identity.ID, IdentityKey: identity.Key(),
		StartTime: "2026-03-01T08:30:00Z",
	}
	repo.CreateSession(context.Background(), older)
	repo.CreateSession(context.Background(), newer)

	resolver := NewResolver(repo, nil)
	winner, err := resolver.Resolve(context.Background(), identity)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if winner.SessionID != "bbb" {
		t.Fatalf("winner = %s, want the latest startTime", winner.SessionID)
	}

	// The same winner on every subsequent resolve.
	again, err := resolver.Resolve(context.Background(), identity)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if again.SessionID != "bbb" {
		t.Fatalf("second resolve = %s, want bbb", again.SessionID)
	}
}

func TestConcurrentResolvesConverge(t *testing.T) {
	repo := newMemoryRepository()
	resolver := NewResolver(repo, nil)
	identity := model.CustomerIdentity("cust-race")

	const callers = 16
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := resolver.Resolve(context.Background(), identity); err != nil {
				t.Errorf("Resolve: %v", err)
			}
		}()
	}
	wg.Wait()

	// Once the race quiesces, every subsequent resolve lands on one winner
	// no matter how many duplicates the race left behind.
	final, err := resolver.Resolve(context.Background(), identity)
	if err != nil {
		t.Fatalf("final Resolve: %v", err)
	}
	for i := 0; i < callers; i++ {
		again, err := resolver.Resolve(context.Background(), identity)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if again.SessionID != final.SessionID {
			t.Fatalf("resolve %d returned %s, want %s", i, again.SessionID, final.SessionID)
		}
	}
}

// gatedRepository blocks ListOpenSessions until released so tests can hold
// a resolve in flight.
type gatedRepository struct {
	*memoryRepository
	entered chan struct{}
	release chan struct{}
}

func (g *gatedRepository) ListOpenSessions(ctx context.Context, identity model.Identity) ([]model.ChatSessionItem, error) {
	g.entered <- struct{}{}
	<-g.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return g.memoryRepository.ListOpenSessions(ctx, identity)
}

func TestResolveSurvivesFirstCallerCancel(t *testing.T) {
	repo := &gatedRepository{
		memoryRepository: newMemoryRepository(),
		entered:          make(chan struct{}, 2),
		release:          make(chan struct{}),
	}
	resolver := NewResolver(repo, nil)
	identity := model.CustomerIdentity("cust-cancel")

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, err := resolver.Resolve(firstCtx, identity)
		firstDone <- err
	}()
	<-repo.entered

	secondDone := make(chan error, 1)
	go func() {
		_, err := resolver.Resolve(context.Background(), identity)
		secondDone <- err
	}()

	// The first caller gives up mid-flight; the waiter sharing its resolve
	// must still get a session.
	cancelFirst()
	if err := <-firstDone; err == nil {
		t.Fatal("cancelled caller must see its own cancellation")
	}
	close(repo.release)

	if err := <-secondDone; err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	repo := newMemoryRepository()
	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	current := first
	resolver := NewResolver(repo, func() time.Time { return current })

	session, err := resolver.Resolve(context.Background(), model.GuestIdentity("guest-1"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if err := resolver.Close(context.Background(), session.SessionID); err != nil {
		t.Fatalf("Close: %v", err)
	}

	current = first.Add(time.Hour)
	if err := resolver.Close(context.Background(), session.SessionID); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	stored, err := repo.GetSession(context.Background(), session.SessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if stored.EndTime != "2026-03-01T10:00:00Z" {
		t.Fatalf("endTime = %s, want the first close timestamp", stored.EndTime)
	}
}

func TestCloseUnknownSession(t *testing.T) {
	resolver := NewResolver(newMemoryRepository(), nil)
	err := resolver.Close(context.Background(), "nope")
	var svcErr *Error
	if !errors.As(err, &svcErr) || svcErr.Code != ErrorCodeNotFound {
		t.Fatalf("err = %v, want not_found", err)
	}
}
