package intent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"techsched/internal/booking"
	"techsched/internal/model"
	"techsched/internal/slots"
)

type mockEngine struct {
	mock.Mock
}

func (m *mockEngine) Create(ctx context.Context, techType string, requested, now time.Time, opts ...booking.CreateOption) (*booking.Assignment, error) {
	args := m.Called(ctx, techType, requested, now)
	if a := args.Get(0); a != nil {
		return a.(*booking.Assignment), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockEngine) Cancel(ctx context.Context, bookingID int64) (*booking.CancelResult, error) {
	args := m.Called(ctx, bookingID)
	if r := args.Get(0); r != nil {
		return r.(*booking.CancelResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockEngine) Query(ctx context.Context, bookingID int64) (*booking.Assignment, error) {
	args := m.Called(ctx, bookingID)
	if a := args.Get(0); a != nil {
		return a.(*booking.Assignment), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockSuggester struct {
	mock.Mock
}

func (m *mockSuggester) Earliest(ctx context.Context, techType string, date, after time.Time) (*slots.Opening, error) {
	args := m.Called(ctx, techType, date, after)
	if o := args.Get(0); o != nil {
		return o.(*slots.Opening), args.Error(1)
	}
	return nil, args.Error(1)
}

type staticLister []model.Technician

func (s staticLister) List(context.Context, bool) ([]model.Technician, error) {
	return s, nil
}

var (
	now     = time.Date(2025, 10, 14, 8, 0, 0, 0, time.UTC)
	slot    = time.Date(2025, 10, 15, 11, 0, 0, 0, time.UTC)
	plumber = model.Technician{ID: 1, Name: "Nicolas Woollett", Type: "Plumber", WorkingHoursStart: 9, WorkingHoursEnd: 17, IsActive: true}
)

func createIntent() Intent {
	return Intent{Action: "create", TechnicianType: "plumber", BookingTime: "2025-10-15T11:00:00"}
}

func TestProcess_CreateSuccess(t *testing.T) {
	engine := new(mockEngine)
	engine.On("Create", mock.Anything, "Plumber", slot, now).Return(&booking.Assignment{
		Booking:    model.Booking{ID: 4, TechnicianID: 1, BookingTime: slot, Status: model.StatusBooked},
		Technician: plumber,
	}, nil)

	res, err := NewProcessor(engine, nil, time.UTC, nil).Process(context.Background(), createIntent(), now)
	require.NoError(t, err)

	assert.Equal(t, "Great! I've scheduled a plumber (Nicolas Woollett) for you at 11:00 AM on October 15, 2025. Your booking ID is 4.", res.Message)
	require.NotNil(t, res.Booking)
	assert.Equal(t, int64(4), res.Booking.ID)
	assert.Equal(t, "Nicolas Woollett", res.Booking.Technician.Name)
	assert.Empty(t, res.Error)
	engine.AssertExpectations(t)
}

func TestProcess_CreateFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"past", model.ErrPastBookingTime, "The requested time 11:00 AM on October 15, 2025 has already passed. Could you please choose a time in the future?"},
		{"unknown type", model.ErrUnknownTechnicianType, "I'm sorry, but I couldn't find any plumbers available. We currently have electricians and welders."},
		{"outside hours", model.ErrOutsideWorkingHours, "I apologize, but 11:00 AM on October 15, 2025 is outside the working hours of our plumbers. Would you like to try a different time?"},
		{"unavailable", model.ErrNoTechnicianAvailable, "I apologize, but no plumbers are available at 11:00 AM on October 15, 2025. Would you like to try a different time?"},
	}
	lister := staticLister{
		{ID: 3, Type: "Welder"},
		{ID: 2, Type: "Electrician"},
		{ID: 5, Type: "Electrician"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := new(mockEngine)
			engine.On("Create", mock.Anything, "Plumber", slot, now).Return(nil, tt.err)

			res, err := NewProcessor(engine, lister, time.UTC, nil).Process(context.Background(), createIntent(), now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Error)
			assert.Nil(t, res.Booking)
		})
	}
}

func TestProcess_RefusalSuggestsNextOpening(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2025, 10, d, 0, 0, 0, 0, time.UTC) }
	tests := []struct {
		name  string
		err   error
		setup func(s *mockSuggester)
		want  string
	}{
		{
			name: "later the same day",
			err:  model.ErrNoTechnicianAvailable,
			setup: func(s *mockSuggester) {
				s.On("Earliest", mock.Anything, "Plumber", day(15), slot).
					Return(&slots.Opening{Technician: plumber, At: slot.Add(2 * time.Hour)}, nil)
			},
			want: "I apologize, but no plumbers are available at 11:00 AM on October 15, 2025. Would you like to try a different time?" +
				" The next opening is 01:00 PM on October 15, 2025 with Nicolas Woollett.",
		},
		{
			name: "next day",
			err:  model.ErrOutsideWorkingHours,
			setup: func(s *mockSuggester) {
				s.On("Earliest", mock.Anything, "Plumber", day(15), slot).Return(nil, nil)
				s.On("Earliest", mock.Anything, "Plumber", day(16), slot).
					Return(&slots.Opening{Technician: plumber, At: time.Date(2025, 10, 16, 9, 0, 0, 0, time.UTC)}, nil)
			},
			want: "I apologize, but 11:00 AM on October 15, 2025 is outside the working hours of our plumbers. Would you like to try a different time?" +
				" The next opening is 09:00 AM on October 16, 2025 with Nicolas Woollett.",
		},
		{
			name: "nothing within a week",
			err:  model.ErrNoTechnicianAvailable,
			setup: func(s *mockSuggester) {
				s.On("Earliest", mock.Anything, "Plumber", mock.Anything, slot).Return(nil, nil)
			},
			want: "I apologize, but no plumbers are available at 11:00 AM on October 15, 2025. Would you like to try a different time?",
		},
		{
			name: "lookup failure keeps the refusal",
			err:  model.ErrNoTechnicianAvailable,
			setup: func(s *mockSuggester) {
				s.On("Earliest", mock.Anything, "Plumber", day(15), slot).Return(nil, errors.New("database is locked"))
			},
			want: "I apologize, but no plumbers are available at 11:00 AM on October 15, 2025. Would you like to try a different time?",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := new(mockEngine)
			engine.On("Create", mock.Anything, "Plumber", slot, now).Return(nil, tt.err)
			suggester := new(mockSuggester)
			tt.setup(suggester)

			p := NewProcessor(engine, nil, time.UTC, nil)
			p.UseSuggestions(suggester)
			res, err := p.Process(context.Background(), createIntent(), now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Error)
			suggester.AssertExpectations(t)
		})
	}
}

func TestProcess_StorageFaultIsReturned(t *testing.T) {
	engine := new(mockEngine)
	engine.On("Create", mock.Anything, "Plumber", slot, now).Return(nil, errors.New("database is locked"))

	_, err := NewProcessor(engine, nil, time.UTC, nil).Process(context.Background(), createIntent(), now)
	assert.EqualError(t, err, "database is locked")
}

func TestProcess_MalformedNeverReachesEngine(t *testing.T) {
	engine := new(mockEngine)

	res, err := NewProcessor(engine, nil, time.UTC, nil).Process(context.Background(), Intent{Action: "cancel"}, now)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Error)
	engine.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything)
}

func TestProcess_Cancel(t *testing.T) {
	tests := []struct {
		name    string
		result  *booking.CancelResult
		err     error
		wantMsg string
		wantErr string
	}{
		{
			name:    "cancelled",
			result:  &booking.CancelResult{Booking: model.Booking{ID: 1, Status: model.StatusCancelled}},
			wantMsg: "I've cancelled booking 1 for you. Is there anything else you need help with?",
		},
		{
			name:    "already cancelled",
			result:  &booking.CancelResult{Booking: model.Booking{ID: 1, Status: model.StatusCancelled}, AlreadyCancelled: true},
			wantMsg: "Booking 1 was already cancelled.",
		},
		{
			name:    "not found",
			err:     model.ErrBookingNotFound,
			wantErr: "I couldn't find booking 1. Could you please verify the booking ID?",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := new(mockEngine)
			engine.On("Cancel", mock.Anything, int64(1)).Return(tt.result, tt.err)

			res, err := NewProcessor(engine, nil, time.UTC, nil).Process(context.Background(), Intent{Action: "cancel", BookingID: id(1)}, now)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMsg, res.Message)
			assert.Equal(t, tt.wantErr, res.Error)
		})
	}
}

func TestProcess_Query(t *testing.T) {
	engine := new(mockEngine)
	engine.On("Query", mock.Anything, int64(1)).Return(&booking.Assignment{
		Booking:    model.Booking{ID: 1, TechnicianID: 1, BookingTime: time.Date(2025, 10, 15, 10, 0, 0, 0, time.UTC), Status: model.StatusCancelled},
		Technician: plumber,
	}, nil)
	engine.On("Query", mock.Anything, int64(999)).Return(nil, model.ErrBookingNotFound)

	p := NewProcessor(engine, nil, time.UTC, nil)

	res, err := p.Process(context.Background(), Intent{Action: "query", BookingID: id(1)}, now)
	require.NoError(t, err)
	assert.Equal(t, "Here are the details for booking 1:\n"+
		"- Time: 10:00 AM on October 15, 2025\n"+
		"- Technician: Nicolas Woollett (Plumber)\n"+
		"- Status: cancelled\n"+
		"- Working Hours: 9:00-17:00", res.Message)
	require.NotNil(t, res.Booking)
	assert.Equal(t, model.StatusCancelled, res.Booking.Status)

	res, err = p.Process(context.Background(), Intent{Action: "query", BookingID: id(999)}, now)
	require.NoError(t, err)
	assert.Equal(t, "I couldn't find booking 999. Could you please verify the booking ID?", res.Error)
}
