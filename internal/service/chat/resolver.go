package chat

import (
	"context"
	"errors"
	"time"

	"restaurant-chat-backend/internal/model"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// resolveWaitBudget bounds how long a caller waits on another in-flight
// resolve for the same identity before attempting its own.
const resolveWaitBudget = 5 * time.Second

// Resolver maps an identity to the single canonical session, creating one
// lazily and converging duplicate open sessions onto a deterministic winner.
// Creation races are expected; resolution is idempotent rather than locked.
type Resolver struct {
	repo       Repository
	now        func() time.Time
	group      singleflight.Group
	waitBudget time.Duration
}

func NewResolver(repo Repository, now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{
		repo:       repo,
		now:        now,
		waitBudget: resolveWaitBudget,
	}
}

// Resolve collapses concurrent callers for the same identity onto one
// in-flight lookup. A caller that outwaits the budget falls through to its
// own resolve instead of deadlocking; the server-side reconciliation keeps
// that safe.
func (r *Resolver) Resolve(ctx context.Context, identity model.Identity) (model.ChatSessionItem, error) {
	if err := identity.Validate(); err != nil {
		return model.ChatSessionItem{}, newError(ErrorCodeValidation, err.Error(), err)
	}

	ch := r.group.DoChan(identity.Key(), func() (interface{}, error) {
		// Every waiter on this key shares one resolve, so it must not die
		// with the first caller's request context.
		sharedCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.waitBudget)
		defer cancel()
		return r.resolve(sharedCtx, identity)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return model.ChatSessionItem{}, res.Err
		}
		return res.Val.(model.ChatSessionItem), nil
	case <-time.After(r.waitBudget):
		return r.resolve(ctx, identity)
	case <-ctx.Done():
		return model.ChatSessionItem{}, newError(ErrorCodeInternal, "resolve cancelled", ctx.Err())
	}
}

func (r *Resolver) resolve(ctx context.Context, identity model.Identity) (model.ChatSessionItem, error) {
	open, err := r.repo.ListOpenSessions(ctx, identity)
	if err != nil {
		return model.ChatSessionItem{}, newError(ErrorCodeInternal, "failed to list sessions", err)
	}

	switch len(open) {
	case 0:
		return r.createSession(ctx, identity)
	case 1:
		return open[0], nil
	default:
		return r.reconcile(ctx, open)
	}
}

func (r *Resolver) createSession(ctx context.Context, identity model.Identity) (model.ChatSessionItem, error) {
	now := r.now().UTC()
	sessionID := uuid.NewString()
	session := model.ChatSessionItem{
		PK:           model.SessionPK(identity, sessionID),
		SessionID:    sessionID,
		IdentityKind: identity.Kind,
		IdentityID:   identity.ID,
		IdentityKey:  identity.Key(),
		StartTime:    now.Format(time.RFC3339),
	}

	if err := r.repo.CreateSession(ctx, session); err != nil {
		return model.ChatSessionItem{}, newError(ErrorCodeInternal, "failed to create session", err)
	}

	return session, nil
}

// reconcile picks the winner among duplicate open sessions: the one whose
// latest message is newest, then the latest startTime, ties broken by
// smallest session id. Every resolver applies the same ordering, so traffic
// converges on one session no matter the candidate order. Losing duplicates
// are left dangling; closing them is an administrative action.
func (r *Resolver) reconcile(ctx context.Context, candidates []model.ChatSessionItem) (model.ChatSessionItem, error) {
	type ranked struct {
		session       model.ChatSessionItem
		lastMessageID string
	}

	rankedCandidates := make([]ranked, 0, len(candidates))
	for _, candidate := range candidates {
		entry := ranked{session: candidate}
		latest, err := r.repo.LatestMessage(ctx, candidate.SessionID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return model.ChatSessionItem{}, newError(ErrorCodeInternal, "failed to inspect session messages", err)
		}
		if err == nil {
			entry.lastMessageID = latest.MessageID
		}
		rankedCandidates = append(rankedCandidates, entry)
	}

	winner := rankedCandidates[0]
	for _, candidate := range rankedCandidates[1:] {
		if beats(candidate.lastMessageID, candidate.session, winner.lastMessageID, winner.session) {
			winner = candidate
		}
	}

	return winner.session, nil
}

// beats orders candidates: a session with a message beats one without; newer
// latest-message ids (ULIDs, so lexicographic = chronological) beat older;
// then later startTime; then smaller session id, so the pick is total and
// deterministic.
func beats(aLastID string, a model.ChatSessionItem, bLastID string, b model.ChatSessionItem) bool {
	if aLastID != bLastID {
		return aLastID > bLastID
	}
	if aLastID == "" && a.StartTime != b.StartTime {
		return a.StartTime > b.StartTime
	}
	return a.SessionID < b.SessionID
}

// Close marks a session ended. Closing an already-closed session is a no-op
// that preserves the first close timestamp.
func (r *Resolver) Close(ctx context.Context, sessionID string) error {
	session, err := r.repo.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return newError(ErrorCodeNotFound, "session not found", err)
		}
		return newError(ErrorCodeInternal, "failed to fetch session", err)
	}

	if session.Closed() {
		return nil
	}

	endTime := r.now().UTC().Format(time.RFC3339)
	if err := r.repo.CloseSession(ctx, session.PK, endTime); err != nil {
		if errors.Is(err, ErrAlreadyClosed) {
			return nil
		}
		return newError(ErrorCodeInternal, "failed to close session", err)
	}

	return nil
}
