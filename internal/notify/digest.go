package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"techsched/internal/model"
)

// BookingLister returns the currently active bookings.
type BookingLister interface {
	ListActive(ctx context.Context) ([]model.BookingWithTechnician, error)
}

// Digest sends managers a daily summary of the next day's bookings.
type Digest struct {
	sender   Sender
	chatIDs  []int64
	bookings BookingLister
	loc      *time.Location
	hour     int
	limiter  *rate.Limiter
	logger   *zerolog.Logger
}

// NewDigest builds a digest sent every day at hour (0-23) in loc.
func NewDigest(sender Sender, chatIDs []int64, bookings BookingLister, loc *time.Location, hour int, logger *zerolog.Logger) *Digest {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if loc == nil {
		loc = time.Local
	}
	if hour < 0 || hour > 23 {
		hour = 9
	}
	return &Digest{
		sender:   sender,
		chatIDs:  chatIDs,
		bookings: bookings,
		loc:      loc,
		hour:     hour,
		limiter:  rate.NewLimiter(rate.Limit(20), 30), // under the Bot API's 30 msg/s
		logger:   logger,
	}
}

// Start blocks until ctx is done, sending the digest at the configured hour.
func (d *Digest) Start(ctx context.Context) {
	timer := time.NewTimer(untilNextHour(time.Now().In(d.loc), d.hour))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-timer.C:
			tomorrow := model.StartOfDay(now.In(d.loc)).AddDate(0, 0, 1)
			if _, err := d.SendFor(ctx, tomorrow); err != nil {
				d.logger.Error().Err(err).Msg("daily digest failed")
			}
			timer.Reset(untilNextHour(time.Now().In(d.loc), d.hour))
		}
	}
}

// SendFor sends the digest for day to every chat and returns how many
// bookings it listed.
func (d *Digest) SendFor(ctx context.Context, day time.Time) (int, error) {
	all, err := d.bookings.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list bookings: %w", err)
	}

	start := model.StartOfDay(day.In(d.loc))
	end := start.AddDate(0, 0, 1)
	var todays []model.BookingWithTechnician
	for _, b := range all {
		if !b.BookingTime.Before(start) && b.BookingTime.Before(end) {
			todays = append(todays, b)
		}
	}

	text := FormatDigest(start, todays, d.loc)
	for _, chatID := range d.chatIDs {
		if err := d.limiter.Wait(ctx); err != nil {
			return len(todays), err
		}
		if _, err := d.sender.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
			d.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("digest send failed")
		}
	}

	d.logger.Info().Str("day", start.Format(time.DateOnly)).Int("bookings", len(todays)).Msg("daily digest sent")
	return len(todays), nil
}

// FormatDigest renders the bookings of one day, already in time order.
func FormatDigest(day time.Time, bookings []model.BookingWithTechnician, loc *time.Location) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Bookings for %s", day.Format("02.01.2006"))
	if len(bookings) == 0 {
		sb.WriteString(": none")
		return sb.String()
	}
	sb.WriteString(":")
	for _, b := range bookings {
		fmt.Fprintf(&sb, "\n%s #%d", b.BookingTime.In(loc).Format("15:04"), b.ID)
		if b.Technician != nil {
			fmt.Fprintf(&sb, " %s (%s)", b.Technician.Name, b.Technician.Type)
		}
		if b.Description != "" {
			sb.WriteString(" - " + b.Description)
		}
	}
	return sb.String()
}

func untilNextHour(now time.Time, hour int) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}
