package websocket

import (
	"fmt"
	"sync"
	"testing"
)

func TestConcurrentRoomCreationAndBroadcast(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	// Room creation happens on request goroutines while the hub goroutine
	// broadcasts; the room map must survive both at once.
	const callers = 50
	const rooms = 8

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("sess-%d", n%rooms)
			hub.EnsureRoom(id)
			hub.Broadcast <- &WSMessage{Event: EventNewMessage, SessionID: id}
			_ = hub.RoomIDs()
		}(i)
	}
	wg.Wait()

	if got := hub.RoomCount(); got != rooms {
		t.Fatalf("rooms = %d, want %d", got, rooms)
	}
	for i := 0; i < rooms; i++ {
		if !hub.HasRoom(fmt.Sprintf("sess-%d", i)) {
			t.Fatalf("room sess-%d missing", i)
		}
	}
}

func TestEnsureRoomReportsFirstCreationOnly(t *testing.T) {
	hub := NewHub()
	if !hub.EnsureRoom("sess-1") {
		t.Fatal("first EnsureRoom must create the room")
	}
	if hub.EnsureRoom("sess-1") {
		t.Fatal("second EnsureRoom must not re-create the room")
	}
	if got := hub.RoomCount(); got != 1 {
		t.Fatalf("rooms = %d, want 1", got)
	}
}
