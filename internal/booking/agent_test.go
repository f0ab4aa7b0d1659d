package booking

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparshcare/wellness-platform/internal/appointments"
)

// memorySlotStore is an in-memory SlotStore with real compare-and-set
// semantics, good enough to exercise race behavior.
type memorySlotStore struct {
	mu    sync.Mutex
	slots []appointments.Slot
	err   error
}

func (m *memorySlotStore) ListOpen(ctx context.Context) ([]appointments.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var open []appointments.Slot
	for _, s := range m.slots {
		if s.Status == appointments.StatusOpen {
			open = append(open, s)
		}
	}
	return open, nil
}

func (m *memorySlotStore) Request(ctx context.Context, id uuid.UUID, studentID, studentName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.slots {
		if m.slots[i].ID == id {
			if m.slots[i].Status != appointments.StatusOpen {
				return appointments.ErrSlotTaken
			}
			m.slots[i].Status = appointments.StatusRequested
			m.slots[i].BookedByStudentID = studentID
			m.slots[i].BookedByStudentName = studentName
			return nil
		}
	}
	return appointments.ErrNotFound
}

func openSlot(date, slotTime, counselor string) appointments.Slot {
	return appointments.Slot{
		ID:            uuid.New(),
		Date:          date,
		Time:          slotTime,
		CounselorName: counselor,
		Status:        appointments.StatusOpen,
		CreatedAt:     time.Now().UTC(),
	}
}

func TestHandleListing(t *testing.T) {
	store := &memorySlotStore{slots: []appointments.Slot{
		openSlot("2026-09-03", "10:00", "Dr. Rao"),
		openSlot("2026-09-04", "15:00", "Dr. Mehta"),
	}}
	agent := NewAgent(store, nil)

	reply, err := agent.Handle(context.Background(), "stu-1", "Asha", "what slots are available?")
	require.NoError(t, err)
	assert.Contains(t, reply, "Dr. Rao")
	assert.Contains(t, reply, "Dr. Mehta")
}

func TestHandleListingEmpty(t *testing.T) {
	agent := NewAgent(&memorySlotStore{}, nil)
	reply, err := agent.Handle(context.Background(), "stu-1", "Asha", "show me the options")
	require.NoError(t, err)
	assert.Contains(t, reply, "no open appointment slots")
}

func TestHandleBooking(t *testing.T) {
	slot := openSlot("2026-09-03", "10:00", "Dr. Rao")
	store := &memorySlotStore{slots: []appointments.Slot{slot}}
	agent := NewAgent(store, nil)

	reply, err := agent.Handle(context.Background(), "stu-1", "Asha", "please book that for me")
	require.NoError(t, err)
	assert.Contains(t, reply, "requested the appointment")
	assert.Equal(t, appointments.StatusRequested, store.slots[0].Status)
	assert.Equal(t, "stu-1", store.slots[0].BookedByStudentID)
}

func TestConcurrentRequestExactlyOneWins(t *testing.T) {
	slot := openSlot("2026-09-03", "10:00", "Dr. Rao")
	store := &memorySlotStore{slots: []appointments.Slot{slot}}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, student := range []string{"stu-1", "stu-2"} {
		wg.Add(1)
		go func(i int, student string) {
			defer wg.Done()
			errs[i] = store.Request(context.Background(), slot.ID, student, "Student")
		}(i, student)
	}
	wg.Wait()

	wins := 0
	losses := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, appointments.ErrSlotTaken):
			losses++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins, "exactly one request must win")
	assert.Equal(t, 1, losses, "the other must lose the race")
	assert.Equal(t, appointments.StatusRequested, store.slots[0].Status)
}

// lostRaceStore always loses the request race after listing an open slot.
type lostRaceStore struct {
	slot appointments.Slot
}

func (s *lostRaceStore) ListOpen(ctx context.Context) ([]appointments.Slot, error) {
	return []appointments.Slot{s.slot}, nil
}

func (s *lostRaceStore) Request(ctx context.Context, id uuid.UUID, studentID, studentName string) error {
	return appointments.ErrSlotTaken
}

func TestHandleLostRaceReply(t *testing.T) {
	agent := NewAgent(&lostRaceStore{slot: openSlot("2026-09-03", "10:00", "Dr. Rao")}, nil)

	reply, err := agent.Handle(context.Background(), "stu-2", "Ravi", "book it")
	require.NoError(t, err)
	assert.True(t, strings.Contains(reply, "just taken"), "got %q", reply)
}

func TestHandleStoreError(t *testing.T) {
	agent := NewAgent(&memorySlotStore{err: errors.New("db down")}, nil)
	_, err := agent.Handle(context.Background(), "stu-1", "Asha", "book it")
	assert.Error(t, err)
}
