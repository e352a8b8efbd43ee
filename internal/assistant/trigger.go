package assistant

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"restaurant-chat-backend/internal/model"
	"restaurant-chat-backend/internal/queue"

	"github.com/rs/zerolog/log"
)

// ResponderWindow bounds how long a reply may take; past it the typing
// indicator disappears and no bot message is appended.
const ResponderWindow = 15 * time.Second

// typingRefreshInterval keeps the sender's typing indicator alive while the
// responder works. Each typing event self-expires after its TTL, so simply
// stopping the refresh clears the window with no explicit stop event.
const typingRefreshInterval = 2 * time.Second

// keywords gates the default anonymous-visitor flow: only questions that
// look like restaurant business reach the responder.
var keywords = []string{
	"menu", "thực đơn",
	"price", "giá", "bao nhiêu",
	"booking", "book", "đặt bàn", "reservation",
	"hours", "open", "giờ", "mở cửa",
	"address", "địa chỉ", "where",
	"phở", "món",
	"delivery", "giao hàng",
}

// ShouldRespond reports whether a stored message warrants an automated
// reply. Staff and bot messages never do, regardless of content.
func ShouldRespond(senderType model.SenderType, content string) bool {
	if senderType != model.SenderUser {
		return false
	}
	content = strings.TrimSpace(content)
	if utf8.RuneCountInString(content) <= 1 {
		return false
	}

	lowered := strings.ToLower(content)
	for _, keyword := range keywords {
		if strings.Contains(lowered, keyword) {
			return true
		}
	}
	return false
}

// Appender is the slice of the message store the trigger needs.
type Appender interface {
	Append(ctx context.Context, sessionID string, senderType model.SenderType, content string) (model.ChatMessageItem, error)
}

// Dispatcher mirrors the delivery dispatcher surface the trigger uses.
type Dispatcher interface {
	MessageAppended(session model.ChatSessionItem, message model.ChatMessageItem)
	Typing(sessionID string, senderType model.SenderType)
}

type Trigger struct {
	responder  Responder
	store      Appender
	dispatcher Dispatcher
	jobs       *queue.RequestQueueManager
	window     time.Duration
}

func NewTrigger(responder Responder, store Appender, dispatcher Dispatcher, jobs *queue.RequestQueueManager) *Trigger {
	return &Trigger{
		responder:  responder,
		store:      store,
		dispatcher: dispatcher,
		jobs:       jobs,
		window:     ResponderWindow,
	}
}

// MessageAppended inspects a freshly stored message and, when eligible,
// hands the responder call to the worker queue. The caller never waits on
// the responder.
func (t *Trigger) MessageAppended(session model.ChatSessionItem, message model.ChatMessageItem) {
	if !ShouldRespond(message.SenderType, message.Content) {
		return
	}

	incTriggered()

	if t.jobs != nil {
		t.jobs.EnqueueJob(queue.Job{Fn: func() error {
			t.handle(session, message)
			return nil
		}})
		return
	}
	go t.handle(session, message)
}

func (t *Trigger) handle(session model.ChatSessionItem, message model.ChatMessageItem) {
	ctx, cancel := context.WithTimeout(context.Background(), t.window)
	defer cancel()

	stopTyping := t.keepTyping(ctx, session.SessionID)
	defer stopTyping()

	reply, err := t.responder.Reply(ctx, message.Content, session.SessionID)
	if err != nil {
		// Timeout or failure: the indicator expires and the user simply
		// gets no bot message. Degraded, not fatal.
		incFailed()
		log.Warn().Err(err).Str("session_id", session.SessionID).Msg("assistant responder failed")
		return
	}

	botMessage, err := t.store.Append(ctx, session.SessionID, model.SenderBot, reply)
	if err != nil {
		incFailed()
		log.Error().Err(err).Str("session_id", session.SessionID).Msg("failed to store bot reply")
		return
	}

	incResponded()
	if t.dispatcher != nil {
		t.dispatcher.MessageAppended(session, botMessage)
	}
}

// keepTyping emits a typing event now and refreshes it until the returned
// stop function runs or ctx ends; the subscriber-side TTL then clears the
// indicator on its own.
func (t *Trigger) keepTyping(ctx context.Context, sessionID string) func() {
	if t.dispatcher == nil {
		return func() {}
	}

	t.dispatcher.Typing(sessionID, model.SenderBot)

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(typingRefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.dispatcher.Typing(sessionID, model.SenderBot)
			}
		}
	}()

	var once bool
	return func() {
		if !once {
			once = true
			close(done)
		}
	}
}
