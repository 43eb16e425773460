package notify

import (
	"image"
	"sync"
)

// Kind identifies a notification.
type Kind int

const (
	Loaded Kind = iota + 1
	SortingChanged
	FileAdded
	FileRemoved
	FileModified
	FileRenamed
	DirAdded
	DirRemoved
	DirRenamed
	ImageReady
	LoadFailed
	ImageUpdated
	ErrorOccurred
)

var kindNames = map[Kind]string{
	Loaded:         "loaded",
	SortingChanged: "sortingChanged",
	FileAdded:      "fileAdded",
	FileRemoved:    "fileRemoved",
	FileModified:   "fileModified",
	FileRenamed:    "fileRenamed",
	DirAdded:       "dirAdded",
	DirRemoved:     "dirRemoved",
	DirRenamed:     "dirRenamed",
	ImageReady:     "imageReady",
	LoadFailed:     "loadFailed",
	ImageUpdated:   "imageUpdated",
	ErrorOccurred:  "errorOccurred",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Event is a change notification for UI consumers.
// Index is the position of Path before a removal or after an insert;
// NewPath and NewIndex are only set for renames and repositioning updates.
type Event struct {
	Kind     Kind
	Path     string
	Index    int
	NewPath  string
	NewIndex int
	Message  string
	Image    image.Image
}

// Bus broadcasts Events to all subscribers.
type Bus struct {
	mu      sync.RWMutex
	clients map[chan Event]struct{}
}

// subscriberBuffer bounds how far a subscriber may fall behind.
const subscriberBuffer = 64

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{
		clients: make(map[chan Event]struct{}),
	}
}

// Subscribe registers a new client and returns its event channel.
func (b *Bus) Subscribe() chan Event {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Bus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.clients[ch]; ok {
		delete(b.clients, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish sends an event to all connected clients.
// Slow clients are skipped (non-blocking send).
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- event:
		default:
			// slow client, drop event
		}
	}
}

// Close unsubscribes every client.
func (b *Bus) Close() {
	b.mu.Lock()
	for ch := range b.clients {
		close(ch)
	}
	b.clients = make(map[chan Event]struct{})
	b.mu.Unlock()
}
