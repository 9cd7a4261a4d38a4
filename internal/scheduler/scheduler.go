package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Idan-Levin/slack-shopping-agent/internal/config"
	"github.com/Idan-Levin/slack-shopping-agent/pkg/errorbank"
)

// Poster delivers a reminder message to a channel. The chat client
// satisfies this; the indirection keeps the scheduler free of any
// Slack dependency.
type Poster interface {
	PostChannelMessage(ctx context.Context, channel, text string) error
}

// Reminder describes one scheduled channel nudge.
type Reminder struct {
	ID      int64     `json:"id"`
	Spec    string    `json:"spec"`
	Text    string    `json:"text"`
	NextRun time.Time `json:"next_run"`
}

// Scheduler runs cron-timed reminders in the configured timezone.
// Reminders live in memory only and are re-seeded from configuration
// on every start.
type Scheduler struct {
	cron    *cron.Cron
	poster  Poster
	channel string
	logger  *zap.Logger
	cfg     config.Scheduler

	mu      sync.Mutex
	nextID  int64
	entries map[int64]reminderEntry
}

type reminderEntry struct {
	cronID cron.EntryID
	spec   string
	text   string
}

// New builds the Scheduler. The default weekly reminder from
// configuration is installed on Start.
func New(cfg config.Config, poster Poster, logger *zap.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Scheduler.Timezone, err)
	}

	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		poster:  poster,
		channel: cfg.Slack.ChannelID,
		logger:  logger,
		cfg:     cfg.Scheduler,
		entries: make(map[int64]reminderEntry),
	}, nil
}

// Start installs the default reminder and begins dispatching.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.ReminderCron != "" {
		if _, err := s.Schedule(s.cfg.ReminderCron, s.cfg.ReminderText); err != nil {
			return fmt.Errorf("install default reminder: %w", err)
		}
	}
	s.cron.Start()
	s.logger.Info("reminder scheduler started",
		zap.String("timezone", s.cfg.Timezone),
		zap.String("default_cron", s.cfg.ReminderCron),
	)
	return nil
}

// Stop halts dispatching, waiting for an in-flight reminder to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		s.logger.Info("reminder scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Schedule registers a reminder for the given cron spec and returns it.
func (s *Scheduler) Schedule(spec, text string) (Reminder, error) {
	if text == "" {
		return Reminder{}, errorbank.BadRequest("reminder text is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID + 1
	cronID, err := s.cron.AddFunc(spec, func() { s.fire(id, text) })
	if err != nil {
		return Reminder{}, errorbank.BadRequest("invalid cron spec", errorbank.WithCause(err), errorbank.WithDetail("spec", spec))
	}
	s.nextID = id
	s.entries[id] = reminderEntry{cronID: cronID, spec: spec, text: text}

	s.logger.Info("reminder scheduled", zap.Int64("id", id), zap.String("spec", spec))

	return Reminder{ID: id, Spec: spec, Text: text, NextRun: s.cron.Entry(cronID).Next}, nil
}

// List returns all reminders ordered by id.
func (s *Scheduler) List() []Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Reminder, 0, len(s.entries))
	for id, e := range s.entries {
		out = append(out, Reminder{
			ID:      id,
			Spec:    e.spec,
			Text:    e.text,
			NextRun: s.cron.Entry(e.cronID).Next,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Delete removes a reminder by id.
func (s *Scheduler) Delete(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return errorbank.NotFound("reminder not found", errorbank.WithDetail("id", id))
	}
	s.cron.Remove(e.cronID)
	delete(s.entries, id)

	s.logger.Info("reminder deleted", zap.Int64("id", id))

	return nil
}

func (s *Scheduler) fire(id int64, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.poster.PostChannelMessage(ctx, s.channel, text); err != nil {
		s.logger.Error("reminder post failed", zap.Int64("id", id), zap.Error(err))
		return
	}
	s.logger.Info("reminder posted", zap.Int64("id", id))
}
