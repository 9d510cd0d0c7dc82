package chat

import (
	"sort"
	"sync"
)

// Store is the ordered, de-duplicated message list of one conversation.
//
// Messages are kept ascending by CreatedAt; ties keep insertion order.
// Ids are unique at all times. Every mutation names the conversation it
// belongs to and is ignored when that is not the current scope, so late
// events for a previous conversation cannot leak into the next one.
//
// Store is safe for concurrent use.
type Store struct {
	mu             sync.Mutex
	conversationID string
	messages       []Message
	deleted        map[string]struct{}
	onChange       func()
}

// NewStore returns an empty, unscoped store.
func NewStore() *Store {
	return &Store{deleted: make(map[string]struct{})}
}

// OnChange registers fn to run after every mutation that changes the
// visible list. fn runs outside the store lock.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Switch empties the store and scopes it to conversationID.
// An empty id leaves the store unscoped; every mutation is then ignored.
func (s *Store) Switch(conversationID string) {
	s.mutate(func() bool {
		changed := len(s.messages) > 0
		s.conversationID = conversationID
		s.messages = nil
		s.deleted = make(map[string]struct{})
		return changed
	})
}

// Clear empties the store and keeps its scope.
func (s *Store) Clear() {
	s.mutate(func() bool {
		changed := len(s.messages) > 0
		s.messages = nil
		s.deleted = make(map[string]struct{})
		return changed
	})
}

// Conversation returns the current scope.
func (s *Store) Conversation() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// Load replaces the contents with initial, sorted and de-duplicated (first
// occurrence wins). Entries already added since the last Switch and absent
// from initial are kept: pending placeholders and feed inserts that raced
// the fetch. Ids deleted by the feed since the last Switch stay deleted.
func (s *Store) Load(conversationID string, initial []Message) bool {
	return s.mutate(func() bool {
		if !s.inScope(conversationID) {
			return false
		}

		next := make([]Message, 0, len(initial)+len(s.messages))
		seen := make(map[string]struct{}, len(initial))
		for _, m := range initial {
			if _, dup := seen[m.ID]; dup || m.ID == "" {
				continue
			}
			if _, gone := s.deleted[m.ID]; gone {
				continue
			}
			seen[m.ID] = struct{}{}
			m.Pending = false
			next = append(next, withAuthorFallback(m))
		}
		sort.SliceStable(next, func(i, j int) bool {
			return next[i].CreatedAt.Before(next[j].CreatedAt)
		})

		kept := s.messages
		s.messages = next
		for _, m := range kept {
			if _, dup := seen[m.ID]; !dup {
				s.insertSorted(m)
			}
		}
		return true
	})
}

// AppendOptimistic adds a pending placeholder. The placeholder's CreatedAt
// is "now", so it sorts last under normal clocks.
func (s *Store) AppendOptimistic(m Message) bool {
	return s.mutate(func() bool {
		if !s.inScope(m.ConversationID) || s.indexOf(m.ID) >= 0 {
			return false
		}
		m.Pending = true
		s.insertSorted(m)
		return true
	})
}

// ReconcileInsert swaps the placeholder tempID for the confirmed row.
// It is idempotent: if the confirmed id is already present (the feed echo
// arrived first) that entry is replaced rather than duplicated. A confirmed
// row that was already deleted by the feed is not re-added.
func (s *Store) ReconcileInsert(tempID string, confirmed Message) bool {
	return s.mutate(func() bool {
		if !s.inScope(confirmed.ConversationID) {
			return false
		}
		s.removeAt(s.indexOf(tempID))
		if _, gone := s.deleted[confirmed.ID]; gone {
			return true
		}
		s.removeAt(s.indexOf(confirmed.ID))
		confirmed.Pending = false
		s.insertSorted(withAuthorFallback(confirmed))
		return true
	})
}

// ApplyRemoteInsert folds a feed insert into the store. Re-applying an id
// that is already present is a no-op. A row matching an in-flight
// placeholder (same author and content) replaces that placeholder.
func (s *Store) ApplyRemoteInsert(m Message) bool {
	return s.mutate(func() bool {
		if !s.inScope(m.ConversationID) || s.indexOf(m.ID) >= 0 {
			return false
		}
		if _, gone := s.deleted[m.ID]; gone {
			return false
		}
		s.removeAt(s.pendingMatch(m))
		m.Pending = false
		s.insertSorted(withAuthorFallback(m))
		return true
	})
}

// MatchPending returns the oldest pending placeholder with m's author and
// content, if any.
func (s *Store) MatchPending(m Message) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inScope(m.ConversationID) {
		return Message{}, false
	}
	if i := s.pendingMatch(m); i >= 0 {
		return s.messages[i], true
	}
	return Message{}, false
}

// ApplyRemoteUpdate merges content and created_at of m into the entry with
// the same id, keeping its author display. Unknown ids are ignored.
func (s *Store) ApplyRemoteUpdate(m Message) bool {
	return s.mutate(func() bool {
		if !s.inScope(m.ConversationID) {
			return false
		}
		i := s.indexOf(m.ID)
		if i < 0 {
			return false
		}
		cur := s.messages[i]
		cur.Content = m.Content
		if !m.CreatedAt.IsZero() {
			cur.CreatedAt = m.CreatedAt
		}
		s.removeAt(i)
		s.insertSorted(cur)
		return true
	})
}

// ApplyRemoteDelete removes id and remembers it as deleted until the next
// Switch, so a late fetch or confirmation cannot resurrect it.
func (s *Store) ApplyRemoteDelete(conversationID, id string) bool {
	return s.mutate(func() bool {
		if !s.inScope(conversationID) {
			return false
		}
		s.deleted[id] = struct{}{}
		i := s.indexOf(id)
		s.removeAt(i)
		return i >= 0
	})
}

// Remove drops id without remembering it. Used to roll back placeholders.
func (s *Store) Remove(id string) bool {
	return s.mutate(func() bool {
		i := s.indexOf(id)
		s.removeAt(i)
		return i >= 0
	})
}

// Messages returns a copy of the visible list.
func (s *Store) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Get returns the message with id.
func (s *Store) Get(id string) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		return s.messages[i], true
	}
	return Message{}, false
}

// Has reports whether id is present.
func (s *Store) Has(id string) bool {
	_, ok := s.Get(id)
	return ok
}

// Len returns the number of visible messages.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// mutate runs fn under the lock and fires onChange when fn reports a change.
func (s *Store) mutate(fn func() bool) bool {
	s.mu.Lock()
	changed := fn()
	notify := s.onChange
	s.mu.Unlock()

	if changed && notify != nil {
		notify()
	}
	return changed
}

func (s *Store) inScope(conversationID string) bool {
	return s.conversationID != "" && conversationID == s.conversationID
}

func (s *Store) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i := range s.messages {
		if s.messages[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) pendingMatch(m Message) int {
	for i := range s.messages {
		p := s.messages[i]
		if p.Pending && p.AuthorID == m.AuthorID && p.Content == m.Content {
			return i
		}
	}
	return -1
}

func (s *Store) removeAt(i int) {
	if i < 0 {
		return
	}
	s.messages = append(s.messages[:i], s.messages[i+1:]...)
}

// insertSorted places m after every entry whose CreatedAt is <= m.CreatedAt.
func (s *Store) insertSorted(m Message) {
	i := sort.Search(len(s.messages), func(i int) bool {
		return s.messages[i].CreatedAt.After(m.CreatedAt)
	})
	s.messages = append(s.messages, Message{})
	copy(s.messages[i+1:], s.messages[i:])
	s.messages[i] = m
}
