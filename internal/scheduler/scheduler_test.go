package scheduler

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/Idan-Levin/slack-shopping-agent/internal/config"
	"github.com/Idan-Levin/slack-shopping-agent/pkg/errorbank"
)

type recordingPoster struct {
	mu    sync.Mutex
	posts []string
}

func (p *recordingPoster) PostChannelMessage(ctx context.Context, channel, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.posts = append(p.posts, text)
	return nil
}

func newTestScheduler(t *testing.T, reminderCron string) *Scheduler {
	t.Helper()
	s, err := New(config.Config{
		Slack: config.Slack{ChannelID: "CMAIN"},
		Scheduler: config.Scheduler{
			Timezone:     "UTC",
			ReminderCron: reminderCron,
			ReminderText: "Add your items!",
		},
	}, &recordingPoster{}, zap.NewNop())
	if err != nil {
		t.Fatalf("building scheduler: %v", err)
	}
	return s
}

func TestNewRejectsBadTimezone(t *testing.T) {
	_, err := New(config.Config{
		Scheduler: config.Scheduler{Timezone: "Mars/Olympus"},
	}, &recordingPoster{}, zap.NewNop())
	if err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}

func TestScheduleListDelete(t *testing.T) {
	s := newTestScheduler(t, "")

	first, err := s.Schedule("0 17 * * FRI", "Weekly order closes at five!")
	if err != nil {
		t.Fatalf("scheduling: %v", err)
	}
	second, err := s.Schedule("0 9 * * MON", "New week, new list.")
	if err != nil {
		t.Fatalf("scheduling: %v", err)
	}
	if first.ID == second.ID {
		t.Fatalf("ids must be unique: %d", first.ID)
	}

	reminders := s.List()
	if len(reminders) != 2 {
		t.Fatalf("expected 2 reminders, got %d", len(reminders))
	}
	if reminders[0].ID != first.ID || reminders[1].ID != second.ID {
		t.Errorf("expected id order, got %+v", reminders)
	}

	if err := s.Delete(first.ID); err != nil {
		t.Fatalf("deleting: %v", err)
	}
	if len(s.List()) != 1 {
		t.Errorf("expected 1 reminder after delete")
	}

	err = s.Delete(first.ID)
	if errorbank.From(err).Kind() != errorbank.KindNotFound {
		t.Errorf("expected not found for repeated delete, got %v", err)
	}
}

func TestScheduleRejectsBadSpec(t *testing.T) {
	s := newTestScheduler(t, "")

	_, err := s.Schedule("every friday at noon", "text")
	if errorbank.From(err).Kind() != errorbank.KindBadRequest {
		t.Fatalf("expected bad request for invalid spec, got %v", err)
	}
	if len(s.List()) != 0 {
		t.Errorf("invalid spec must not register a reminder")
	}
}

func TestScheduleRequiresText(t *testing.T) {
	s := newTestScheduler(t, "")

	_, err := s.Schedule("0 17 * * FRI", "")
	if errorbank.From(err).Kind() != errorbank.KindBadRequest {
		t.Fatalf("expected bad request for empty text, got %v", err)
	}
}

func TestStartInstallsDefaultReminder(t *testing.T) {
	s := newTestScheduler(t, "0 17 * * FRI")

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("starting: %v", err)
	}
	defer s.Stop(context.Background())

	reminders := s.List()
	if len(reminders) != 1 {
		t.Fatalf("expected default reminder installed, got %d", len(reminders))
	}
	if reminders[0].Text != "Add your items!" {
		t.Errorf("unexpected default text %q", reminders[0].Text)
	}
	if reminders[0].NextRun.IsZero() {
		t.Errorf("running scheduler should report a next run")
	}
}
