// Package booking hosts the sub-agent that turns a freeform student request
// into a slot-listing or slot-booking outcome.
package booking

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/sparshcare/wellness-platform/internal/appointments"
	"github.com/sparshcare/wellness-platform/pkg/logging"
)

var bookingTracer = otel.Tracer("sparsh.internal.booking")

// SlotStore is the slot persistence surface the agent needs.
type SlotStore interface {
	ListOpen(ctx context.Context) ([]appointments.Slot, error)
	Request(ctx context.Context, id uuid.UUID, studentID, studentName string) error
}

// Agent routes a natural-language booking query to either a listing or a
// booking outcome and phrases the reply.
type Agent struct {
	slots  SlotStore
	logger *logging.Logger
}

// NewAgent constructs a booking agent.
func NewAgent(slots SlotStore, logger *logging.Logger) *Agent {
	if slots == nil {
		panic("booking: slot store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Agent{slots: slots, logger: logger}
}

var listingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(what|which|when)\b.*\b(slots?|times?|appointments?)\b`),
	regexp.MustCompile(`(?i)\b(available|availability|options?|openings?)\b`),
	regexp.MustCompile(`(?i)\bshow\s+me\b`),
}

// Handle processes one booking query for a student. The booking path issues
// the request transition; a lost race comes back as a "slot taken" reply,
// not an error.
func (a *Agent) Handle(ctx context.Context, studentID, studentName, query string) (string, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.handle")
	defer span.End()
	span.SetAttributes(attribute.String("sparsh.student_id", studentID))

	if isListingQuery(query) {
		span.SetAttributes(attribute.String("sparsh.booking.route", "list"))
		return a.listSlots(ctx)
	}
	span.SetAttributes(attribute.String("sparsh.booking.route", "book"))
	return a.bookFirstOpen(ctx, studentID, studentName)
}

func (a *Agent) listSlots(ctx context.Context) (string, error) {
	slots, err := a.slots.ListOpen(ctx)
	if err != nil {
		return "", fmt.Errorf("booking: list slots: %w", err)
	}
	if len(slots) == 0 {
		return "There are no open appointment slots right now. I'll let you know as soon as one opens up.", nil
	}

	var b strings.Builder
	b.WriteString("Here are the open counselor slots:\n")
	for i, slot := range slots {
		if i == 3 {
			break
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, slot.Label())
	}
	b.WriteString("Say the word and I'll request one for you.")
	return b.String(), nil
}

func (a *Agent) bookFirstOpen(ctx context.Context, studentID, studentName string) (string, error) {
	slots, err := a.slots.ListOpen(ctx)
	if err != nil {
		return "", fmt.Errorf("booking: load slots for booking: %w", err)
	}
	if len(slots) == 0 {
		return "I couldn't find any open slots to book right now. Please check back soon or reach out to the counseling office directly.", nil
	}

	slot := slots[0]
	err = a.slots.Request(ctx, slot.ID, studentID, studentName)
	if errors.Is(err, appointments.ErrSlotTaken) {
		a.logger.Info("booking lost slot race", "slot_id", slot.ID, "student_id", studentID)
		return fmt.Sprintf("It looks like the slot %s was just taken by someone else. Would you like me to look for another time?", slot.Label()), nil
	}
	if err != nil {
		return "", fmt.Errorf("booking: request slot: %w", err)
	}

	a.logger.Info("slot requested", "slot_id", slot.ID, "student_id", studentID)
	return fmt.Sprintf("Done! I've requested the appointment %s for you. The counselor will confirm it shortly.", slot.Label()), nil
}

func isListingQuery(query string) bool {
	query = strings.TrimSpace(query)
	if query == "" {
		return true
	}
	for _, pat := range listingPatterns {
		if pat.MatchString(query) {
			return true
		}
	}
	return false
}
