package server

import (
	"encoding/json"
	"sync"
)

// Event is the payload pushed to the notification surfaces (SSE and
// websocket subscribers).
type Event struct {
	Type string `json:"type"`

	// round_presented
	PromptCity  string `json:"promptCity,omitempty"`
	ChoiceCount int    `json:"choiceCount,omitempty"`

	// answer_result
	ActivatedCity  string `json:"activatedCity,omitempty"`
	CorrectCity    string `json:"correctCity,omitempty"`
	CorrectCountry string `json:"correctCountry,omitempty"`
	IsCorrect      bool   `json:"isCorrect,omitempty"`
	Streak         int    `json:"streak,omitempty"`
	TokenGranted   bool   `json:"tokenGranted,omitempty"`

	// rescue_offered / rescue_resolved
	AtRiskStreak int  `json:"atRiskStreak,omitempty"`
	Accepted     bool `json:"accepted,omitempty"`
	TimedOut     bool `json:"timedOut,omitempty"`

	// difficulty_changed
	DifficultyLevel int `json:"difficultyLevel,omitempty"`
}

// Broker is an in-process pub/sub fanning session events out to every
// connected notification stream.
type Broker struct {
	mu   sync.RWMutex
	subs map[chan []byte]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[chan []byte]struct{}),
	}
}

// Subscribe returns a channel that receives JSON-encoded events.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a channel from the subscribers.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
}

// Publish sends an event to all subscribers.
func (b *Broker) Publish(event Event) {
	data, _ := json.Marshal(event)
	b.mu.RLock()
	for ch := range b.subs {
		select {
		case ch <- data:
		default:
			// Drop if subscriber is slow.
		}
	}
	b.mu.RUnlock()
}
