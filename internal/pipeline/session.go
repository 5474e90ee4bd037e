//-------------------------------------------------------------------------
//
// FleetIQ Claims Analyst
//
// Portions copyright (c) 2025 - 2026, FleetIQ, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package pipeline

import (
	"strings"
	"sync"
	"time"
)

// HistoryLimit is the SQL history ring buffer capacity. After more
// insertions the oldest entries are evicted first.
const HistoryLimit = 10

// Assistant turns shorter than this after data-dump stripping carry no
// conversational signal and are dropped from the essential history.
const minEssentialLength = 20

// dataDumpMarkers identify assistant message lines that are rendered query
// output rather than conversation; such lines are stripped before a turn
// is considered for the essential history.
var dataDumpMarkers = []string{
	"Total rows:",
	"execution_time",
	"Row count:",
	"| --- |",
}

// Session holds the conversation and SQL history for one thread. One
// session exists per conversation thread; turns are processed one at a
// time under the session mutex.
type Session struct {
	mu sync.Mutex

	id         string
	turns      []ConversationTurn
	essential  []ConversationTurn
	sqlHistory []SQLHistoryEntry
	createdAt  time.Time
}

// NewSession creates an empty session for a thread.
func NewSession(id string) *Session {
	return &Session{
		id:        id,
		createdAt: time.Now(),
	}
}

// ID returns the thread identifier.
func (s *Session) ID() string {
	return s.id
}

// CreatedAt returns the session creation time.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// lock serializes turns; the orchestrator holds it for a whole turn.
func (s *Session) lock() {
	s.mu.Lock()
}

func (s *Session) unlock() {
	s.mu.Unlock()
}

// appendTurn records a turn in the full log and, if it survives the
// essential filter, in the private essential history. User turns are kept
// verbatim; assistant turns are kept only when non-trivial after
// data-dump stripping.
func (s *Session) appendTurn(turn ConversationTurn) {
	s.turns = append(s.turns, turn)

	if turn.Role == "user" {
		s.essential = append(s.essential, turn)
		return
	}

	cleaned := stripDataDump(turn.Text)
	if len(strings.TrimSpace(cleaned)) >= minEssentialLength {
		s.essential = append(s.essential, ConversationTurn{
			Role: turn.Role,
			Text: cleaned,
		})
	}
}

// stripDataDump removes lines that look like rendered query output.
func stripDataDump(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		dump := false
		for _, marker := range dataDumpMarkers {
			if strings.Contains(line, marker) {
				dump = true
				break
			}
		}
		if !dump {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// recordSQL appends an entry to the SQL history ring, evicting the oldest
// entry beyond HistoryLimit. Consecutive duplicates are skipped.
func (s *Session) recordSQL(entry SQLHistoryEntry) {
	if n := len(s.sqlHistory); n > 0 {
		last := s.sqlHistory[n-1]
		if last.GeneratedSQL == entry.GeneratedSQL && last.UserQuestion == entry.UserQuestion {
			return
		}
	}

	s.sqlHistory = append(s.sqlHistory, entry)
	if len(s.sqlHistory) > HistoryLimit {
		s.sqlHistory = s.sqlHistory[len(s.sqlHistory)-HistoryLimit:]
	}
}

// latestSQL returns the most recent SQL history entry, if any.
func (s *Session) latestSQL() (SQLHistoryEntry, bool) {
	if len(s.sqlHistory) == 0 {
		return SQLHistoryEntry{}, false
	}
	return s.sqlHistory[len(s.sqlHistory)-1], true
}

// Turns returns a copy of the full conversation log.
func (s *Session) Turns() []ConversationTurn {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ConversationTurn, len(s.turns))
	copy(out, s.turns)
	return out
}

// SQLHistory returns a copy of the SQL history, oldest first.
func (s *Session) SQLHistory() []SQLHistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SQLHistoryEntry, len(s.sqlHistory))
	copy(out, s.sqlHistory)
	return out
}

// Reset clears all conversation and SQL history.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns = nil
	s.essential = nil
	s.sqlHistory = nil
}
