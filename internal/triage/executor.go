package triage

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/sparshcare/wellness-platform/internal/tasks"
	"github.com/sparshcare/wellness-platform/pkg/logging"
)

var executorTracer = otel.Tracer("sparsh.internal.triage.executor")

// TaskAssigner persists wellness tasks onto a student's list.
type TaskAssigner interface {
	Assign(ctx context.Context, task tasks.Task) (tasks.Task, error)
}

// BookingAgent executes a booking query on behalf of a student.
type BookingAgent interface {
	Handle(ctx context.Context, studentID, studentName, query string) (string, error)
}

// Executor performs the side effect for an intervention decision. It is not
// idempotent by itself; the pipeline invokes it at most once per cycle.
type Executor struct {
	tasks   TaskAssigner
	slots   SlotLister
	booking BookingAgent
	logger  *logging.Logger
}

// NewExecutor constructs the intervention executor.
func NewExecutor(taskStore TaskAssigner, slots SlotLister, bookingAgent BookingAgent, logger *logging.Logger) *Executor {
	if logger == nil {
		logger = logging.Default()
	}
	return &Executor{tasks: taskStore, slots: slots, booking: bookingAgent, logger: logger}
}

// Execute carries out the decision and returns the cycle outcome. NONE
// produces no side effect and no message.
func (e *Executor) Execute(ctx context.Context, req CycleRequest, assessment EmotionAssessment, decision Decision) (Outcome, error) {
	ctx, span := executorTracer.Start(ctx, "triage.execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("sparsh.student_id", req.StudentID),
		attribute.String("sparsh.action", string(decision.Action)),
	)

	outcome := Outcome{
		Status:     OutcomeActed,
		Assessment: &assessment,
		Decision:   &decision,
	}

	switch decision.Action {
	case ActionNone:
		outcome.Status = OutcomeNone
		return outcome, nil

	case ActionAssignExercise:
		msg, err := e.assignExercise(ctx, req, assessment, decision)
		if err != nil {
			span.RecordError(err)
			return Outcome{}, err
		}
		outcome.Message = msg
		return outcome, nil

	case ActionSuggestBooking:
		msg, suggestion, err := e.suggestBooking(ctx)
		if err != nil {
			span.RecordError(err)
			return Outcome{}, err
		}
		outcome.Message = msg
		outcome.Suggestion = suggestion
		return outcome, nil

	case ActionBookSlot:
		if e.booking == nil {
			return Outcome{}, fmt.Errorf("triage: no booking agent configured")
		}
		query := LatestUserText(req.Turns)
		if query == "" {
			query = decision.Reasoning
		}
		msg, err := e.booking.Handle(ctx, req.StudentID, req.StudentName, query)
		if err != nil {
			span.RecordError(err)
			return Outcome{}, fmt.Errorf("triage: booking agent: %w", err)
		}
		outcome.Message = msg
		return outcome, nil

	default:
		return Outcome{}, fmt.Errorf("triage: unexecutable action %q", decision.Action)
	}
}

func (e *Executor) assignExercise(ctx context.Context, req CycleRequest, assessment EmotionAssessment, decision Decision) (string, error) {
	if e.tasks == nil {
		return "", fmt.Errorf("triage: no task store configured")
	}

	description := fmt.Sprintf("Assigned after your chat showed signs of %s.", assessment.Dominant)
	if decision.Reasoning != "" {
		description += " " + decision.Reasoning
	}

	task, err := e.tasks.Assign(ctx, tasks.Task{
		StudentID:   req.StudentID,
		Title:       string(decision.Exercise),
		Description: description,
		AssignedBy:  tasks.AssignedByAI,
	})
	if err != nil {
		return "", fmt.Errorf("triage: assign exercise task: %w", err)
	}

	e.logger.Info("wellness task assigned",
		"task_id", task.ID,
		"student_id", req.StudentID,
		"exercise", decision.Exercise,
	)
	return fmt.Sprintf("I've added a %s to your wellness tasks — it can really help when things feel like this. Take it at your own pace.", decision.Exercise), nil
}

func (e *Executor) suggestBooking(ctx context.Context) (string, *SlotSuggestion, error) {
	if e.slots == nil {
		return "", nil, fmt.Errorf("triage: no slot store configured")
	}
	slots, err := e.slots.ListOpen(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("triage: list slots for suggestion: %w", err)
	}
	if len(slots) == 0 {
		return "Talking to a counselor might really help. There are no open slots right this moment, but I'll keep an eye out for you.", nil, nil
	}

	first := slots[0]
	msg := fmt.Sprintf("Talking to a counselor might really help. The next open appointment is %s — tap to request it.", first.Label())
	return msg, &SlotSuggestion{SlotID: first.ID.String(), Label: first.Label()}, nil
}
