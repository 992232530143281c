package lockstepinput

import "sync"

// StagingBuffer accumulates per-client per-turn input lists between
// turn boundaries (spec §3: "server staging buffer"). Ingest is
// protected by a single lock with an O(1) critical section per input,
// matching the concurrency model in spec §5.
type StagingBuffer struct {
	mu   sync.Mutex
	data map[string]List
}

// NewStagingBuffer constructs an empty staging buffer.
func NewStagingBuffer() *StagingBuffer {
	return &StagingBuffer{data: make(map[string]List)}
}

// Ingest appends a non-empty raw input to client's open-turn list.
// Empty inputs are dropped by the caller before reaching here (spec
// §4.4: "if is_empty(inputs), drop").
func (s *StagingBuffer) Ingest(clientID string, raw RawInput) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[clientID] = append(s.data[clientID], raw)
}

// Drain atomically moves the staging buffer into a Row for every id in
// connectedClients, leaving the buffer empty, and returns the Row. Any
// connected client absent from the buffer contributes an empty list
// (spec §4.4 step 1).
func (s *StagingBuffer) Drain(connectedClients []string) Row {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := make(Row, len(connectedClients))
	for _, id := range connectedClients {
		if list, ok := s.data[id]; ok {
			row[id] = list
		} else {
			row[id] = List{}
		}
	}
	s.data = make(map[string]List)
	return row
}
