package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SlotStatus is the appointment slot state machine:
// open -> requested -> confirmed, with reject returning to open.
type SlotStatus string

const (
	StatusOpen      SlotStatus = "open"
	StatusRequested SlotStatus = "requested"
	StatusConfirmed SlotStatus = "confirmed"
)

// Slot is a bookable counselor appointment slot.
type Slot struct {
	ID                  uuid.UUID  `json:"id"`
	Date                string     `json:"date"`
	Time                string     `json:"time"`
	CounselorName       string     `json:"counselor_name"`
	Status              SlotStatus `json:"status"`
	BookedByStudentID   string     `json:"booked_by_student_id,omitempty"`
	BookedByStudentName string     `json:"booked_by_student_name,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

// Label renders a human-readable description used in chat messages and
// booking suggestion payloads.
func (s Slot) Label() string {
	return fmt.Sprintf("%s at %s with %s", s.Date, s.Time, s.CounselorName)
}

// ErrSlotTaken is returned when a request transition loses the race: the
// slot was no longer open at write time.
var ErrSlotTaken = errors.New("appointments: slot no longer open")

// ErrNotFound is returned when a slot id does not exist.
var ErrNotFound = errors.New("appointments: slot not found")

// DB is the pgx query surface the repository needs; satisfied by
// *pgxpool.Pool and by pgxmock pools in tests.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides persistence for appointment slots.
type Repository struct {
	db DB
}

// NewRepository creates a repository backed by a pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &Repository{db: pool}
}

// NewRepositoryWithDB allows injecting mocks for tests.
func NewRepositoryWithDB(db DB) *Repository {
	return &Repository{db: db}
}

const slotColumns = `id, slot_date, slot_time, counselor_name, status,
	COALESCE(booked_by_student_id, ''), COALESCE(booked_by_student_name, ''), created_at`

// Create inserts a new open slot; used by counselor tooling.
func (r *Repository) Create(ctx context.Context, date, slotTime, counselorName string) (Slot, error) {
	slot := Slot{
		ID:            uuid.New(),
		Date:          date,
		Time:          slotTime,
		CounselorName: counselorName,
		Status:        StatusOpen,
		CreatedAt:     time.Now().UTC(),
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO appointment_slots (id, slot_date, slot_time, counselor_name, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		slot.ID, slot.Date, slot.Time, slot.CounselorName, slot.Status, slot.CreatedAt,
	)
	if err != nil {
		return Slot{}, fmt.Errorf("appointments: insert slot: %w", err)
	}
	return slot, nil
}

// ListOpen returns open slots in stable earliest-created-first order.
func (r *Repository) ListOpen(ctx context.Context) ([]Slot, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+slotColumns+` FROM appointment_slots WHERE status = $1 ORDER BY created_at ASC`,
		StatusOpen,
	)
	if err != nil {
		return nil, fmt.Errorf("appointments: list open slots: %w", err)
	}
	defer rows.Close()
	return scanSlots(rows)
}

// Get loads a single slot by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Slot, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+slotColumns+` FROM appointment_slots WHERE id = $1`, id)
	slot, err := scanSlot(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Slot{}, ErrNotFound
	}
	if err != nil {
		return Slot{}, fmt.Errorf("appointments: load slot: %w", err)
	}
	return slot, nil
}

// Request transitions a slot from open to requested on behalf of a student.
// The update is a compare-and-set: it only succeeds if the slot is still
// open at write time, so concurrent requests cannot both win.
func (r *Repository) Request(ctx context.Context, id uuid.UUID, studentID, studentName string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE appointment_slots
		 SET status = $1, booked_by_student_id = $2, booked_by_student_name = $3
		 WHERE id = $4 AND status = $5`,
		StatusRequested, studentID, studentName, id, StatusOpen,
	)
	if err != nil {
		return fmt.Errorf("appointments: request slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotTaken
	}
	return nil
}

// Confirm transitions a requested slot to confirmed; counselor action.
func (r *Repository) Confirm(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE appointment_slots SET status = $1 WHERE id = $2 AND status = $3`,
		StatusConfirmed, id, StatusRequested,
	)
	if err != nil {
		return fmt.Errorf("appointments: confirm slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Reject returns a requested slot to open and clears the student binding.
func (r *Repository) Reject(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE appointment_slots
		 SET status = $1, booked_by_student_id = NULL, booked_by_student_name = NULL
		 WHERE id = $2 AND status = $3`,
		StatusOpen, id, StatusRequested,
	)
	if err != nil {
		return fmt.Errorf("appointments: reject slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanSlots(rows pgx.Rows) ([]Slot, error) {
	var slots []Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan slot: %w", err)
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: iterate slots: %w", err)
	}
	return slots, nil
}

func scanSlot(row pgx.Row) (Slot, error) {
	var slot Slot
	err := row.Scan(
		&slot.ID, &slot.Date, &slot.Time, &slot.CounselorName, &slot.Status,
		&slot.BookedByStudentID, &slot.BookedByStudentName, &slot.CreatedAt,
	)
	return slot, err
}
