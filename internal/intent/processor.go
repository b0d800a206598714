package intent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"techsched/internal/booking"
	"techsched/internal/model"
	"techsched/internal/slots"
)

const displayLayout = "03:04 PM on January 02, 2006"

// Engine is the booking lifecycle the processor drives.
type Engine interface {
	Create(ctx context.Context, techType string, requested, now time.Time, opts ...booking.CreateOption) (*booking.Assignment, error)
	Cancel(ctx context.Context, bookingID int64) (*booking.CancelResult, error)
	Query(ctx context.Context, bookingID int64) (*booking.Assignment, error)
}

// TechnicianLister lists technicians for suggestion messages.
type TechnicianLister interface {
	List(ctx context.Context, activeOnly bool) ([]model.Technician, error)
}

// Suggester finds the first open slot for a technician type on a day.
type Suggester interface {
	Earliest(ctx context.Context, techType string, date, now time.Time) (*slots.Opening, error)
}

// suggestDays is how many days from the requested one are searched for an opening.
const suggestDays = 7

// Result is either a message with an optional booking, or an error message.
type Result struct {
	Message string                       `json:"message,omitempty"`
	Booking *model.BookingWithTechnician `json:"booking,omitempty"`
	Error   string                       `json:"error,omitempty"`
}

type Processor struct {
	engine      Engine
	technicians TechnicianLister
	suggester   Suggester
	loc         *time.Location
	logger      *zerolog.Logger
}

// NewProcessor builds a processor. technicians may be nil.
func NewProcessor(engine Engine, technicians TechnicianLister, loc *time.Location, logger *zerolog.Logger) *Processor {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Processor{engine: engine, technicians: technicians, loc: loc, logger: logger}
}

// UseSuggestions makes refusals for a busy or closed hour name the next
// opening after the requested time.
func (p *Processor) UseSuggestions(s Suggester) {
	p.suggester = s
}

// Process validates and executes one intent. Business outcomes and invalid
// input come back as Result.Error; the returned error is reserved for
// storage faults the caller should treat as internal.
func (p *Processor) Process(ctx context.Context, in Intent, now time.Time) (Result, error) {
	req, err := in.Validate(p.loc)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			return Result{Error: ve.Message}, nil
		}
		return Result{}, err
	}

	switch req.Action {
	case ActionCreate:
		return p.create(ctx, req, now)
	case ActionCancel:
		return p.cancel(ctx, req)
	default:
		return p.query(ctx, req)
	}
}

func (p *Processor) create(ctx context.Context, req *Request, now time.Time) (Result, error) {
	plural := pluralType(req.TechnicianType)
	when := req.BookingTime.Format(displayLayout)

	a, err := p.engine.Create(ctx, req.TechnicianType, req.BookingTime, now, booking.WithDescription(req.Description))
	switch {
	case err == nil:
		return Result{
			Message: fmt.Sprintf("Great! I've scheduled a %s (%s) for you at %s. Your booking ID is %d.",
				strings.ToLower(a.Technician.Type), a.Technician.Name, a.Booking.BookingTime.In(p.loc).Format(displayLayout), a.Booking.ID),
			Booking: joined(a),
		}, nil
	case errors.Is(err, model.ErrPastBookingTime):
		return Result{Error: fmt.Sprintf("The requested time %s has already passed. Could you please choose a time in the future?", when)}, nil
	case errors.Is(err, model.ErrUnknownTechnicianType):
		msg := fmt.Sprintf("I'm sorry, but I couldn't find any %s available.", plural)
		if known := p.knownTypes(ctx); known != "" {
			msg += " We currently have " + known + "."
		}
		return Result{Error: msg}, nil
	case errors.Is(err, model.ErrOutsideWorkingHours):
		msg := fmt.Sprintf("I apologize, but %s is outside the working hours of our %s. Would you like to try a different time?", when, plural)
		return Result{Error: msg + p.nextOpening(ctx, req)}, nil
	case errors.Is(err, model.ErrNoTechnicianAvailable):
		msg := fmt.Sprintf("I apologize, but no %s are available at %s. Would you like to try a different time?", plural, when)
		return Result{Error: msg + p.nextOpening(ctx, req)}, nil
	default:
		p.logger.Error().Err(err).Str("technician_type", req.TechnicianType).Time("booking_time", req.BookingTime).Msg("create booking failed")
		return Result{}, err
	}
}

func (p *Processor) cancel(ctx context.Context, req *Request) (Result, error) {
	res, err := p.engine.Cancel(ctx, req.BookingID)
	switch {
	case errors.Is(err, model.ErrBookingNotFound):
		return notFound(req.BookingID), nil
	case err != nil:
		p.logger.Error().Err(err).Int64("booking_id", req.BookingID).Msg("cancel booking failed")
		return Result{}, err
	case res.AlreadyCancelled:
		return Result{Message: fmt.Sprintf("Booking %d was already cancelled.", res.Booking.ID)}, nil
	default:
		return Result{Message: fmt.Sprintf("I've cancelled booking %d for you. Is there anything else you need help with?", res.Booking.ID)}, nil
	}
}

func (p *Processor) query(ctx context.Context, req *Request) (Result, error) {
	a, err := p.engine.Query(ctx, req.BookingID)
	if errors.Is(err, model.ErrBookingNotFound) {
		return notFound(req.BookingID), nil
	}
	if err != nil {
		p.logger.Error().Err(err).Int64("booking_id", req.BookingID).Msg("query booking failed")
		return Result{}, err
	}

	msg := fmt.Sprintf("Here are the details for booking %d:\n"+
		"- Time: %s\n"+
		"- Technician: %s (%s)\n"+
		"- Status: %s\n"+
		"- Working Hours: %d:00-%d:00",
		a.Booking.ID,
		a.Booking.BookingTime.In(p.loc).Format(displayLayout),
		a.Technician.Name, a.Technician.Type,
		a.Booking.Status,
		a.Technician.WorkingHoursStart, a.Technician.WorkingHoursEnd,
	)
	return Result{Message: msg, Booking: joined(a)}, nil
}

// nextOpening renders the first opening after the requested time as a
// trailing sentence, or "" when there is none within suggestDays.
func (p *Processor) nextOpening(ctx context.Context, req *Request) string {
	if p.suggester == nil {
		return ""
	}
	day := model.StartOfDay(req.BookingTime.In(p.loc))
	for i := 0; i < suggestDays; i++ {
		o, err := p.suggester.Earliest(ctx, req.TechnicianType, day.AddDate(0, 0, i), req.BookingTime)
		if errors.Is(err, model.ErrUnknownTechnicianType) {
			return ""
		}
		if err != nil {
			p.logger.Warn().Err(err).Str("technician_type", req.TechnicianType).Msg("find next opening")
			return ""
		}
		if o != nil {
			return fmt.Sprintf(" The next opening is %s with %s.", o.At.In(p.loc).Format(displayLayout), o.Technician.Name)
		}
	}
	return ""
}

func notFound(id int64) Result {
	return Result{Error: fmt.Sprintf("I couldn't find booking %d. Could you please verify the booking ID?", id)}
}

func joined(a *booking.Assignment) *model.BookingWithTechnician {
	t := a.Technician
	return &model.BookingWithTechnician{Booking: a.Booking, Technician: &t}
}

func pluralType(t string) string {
	return strings.ToLower(t) + "s"
}

// knownTypes renders the active technician types as "plumbers, electricians and welders".
func (p *Processor) knownTypes(ctx context.Context) string {
	if p.technicians == nil {
		return ""
	}
	techs, err := p.technicians.List(ctx, true)
	if err != nil {
		p.logger.Warn().Err(err).Msg("list technician types")
		return ""
	}

	seen := map[string]bool{}
	var types []string
	for _, t := range techs {
		if !seen[t.Type] {
			seen[t.Type] = true
			types = append(types, pluralType(t.Type))
		}
	}
	sort.Strings(types)

	switch len(types) {
	case 0:
		return ""
	case 1:
		return types[0]
	default:
		return strings.Join(types[:len(types)-1], ", ") + " and " + types[len(types)-1]
	}
}
