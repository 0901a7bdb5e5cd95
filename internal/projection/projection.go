// Package projection keeps a live view of which resources are booked, derived
// from the active reservation set rather than the stored availability flag.
package projection

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"

	"github.com/hollanddz228/ComputerClubBookingg/internal/clock"
	"github.com/hollanddz228/ComputerClubBookingg/internal/model"
)

const DefaultTick = 15 * time.Second

// Availability is the projected state of one resource.
type Availability struct {
	IsBooked    bool       `json:"is_booked"`
	BookedFrom  *time.Time `json:"booked_from,omitempty"`
	BookedUntil *time.Time `json:"booked_until,omitempty"`
}

// Snapshot maps resource IDs to their projected availability.
type Snapshot struct {
	At        time.Time               `json:"at"`
	Resources map[string]Availability `json:"resources"`
}

type Source interface {
	ListAllActive(ctx context.Context) ([]model.Reservation, error)
}

// ResourceLister optionally supplies the full resource list so resources
// without reservations show up as free.
type ResourceLister interface {
	ListResources(ctx context.Context) ([]model.Resource, error)
}

type Recorder interface {
	ProjectionRebuilt(booked int, elapsed time.Duration)
}

type Projection struct {
	source    Source
	resources ResourceLister
	clock     clock.Clock
	logger    *slog.Logger
	recorder  Recorder

	mu          sync.RWMutex
	current     Snapshot
	subscribers map[int]chan Snapshot
	nextID      int
}

type Option func(*Projection)

func WithResources(l ResourceLister) Option {
	return func(p *Projection) { p.resources = l }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Projection) {
		if l != nil {
			p.logger = l
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(p *Projection) { p.recorder = r }
}

func New(source Source, clk clock.Clock, opts ...Option) *Projection {
	p := &Projection{
		source:      source,
		clock:       clk,
		logger:      slog.Default(),
		current:     Snapshot{Resources: map[string]Availability{}},
		subscribers: make(map[int]chan Snapshot),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Fold derives per-resource availability from active reservations at now.
// Reservations that already ended are dropped even if still marked active, and
// reservations with unusable timestamps are skipped. For a booked resource,
// BookedFrom/BookedUntil describe the earliest live reservation extended
// through any back-to-back successors.
func Fold(reservations []model.Reservation, now time.Time, logger *slog.Logger) map[string]Availability {
	type interval struct{ start, end time.Time }
	live := make(map[string][]interval)

	for _, r := range reservations {
		if r.Status != model.ReservationStatusActive {
			continue
		}
		start, end, ok := r.Interval()
		if !ok {
			if logger != nil {
				logger.Warn("skipping reservation with invalid interval",
					"reservation_id", r.ID,
					"resource_id", r.ResourceID,
				)
			}
			continue
		}
		if !end.After(now) {
			continue
		}
		live[r.ResourceID] = append(live[r.ResourceID], interval{start, end})
	}

	out := make(map[string]Availability, len(live))
	for resourceID, list := range live {
		sort.Slice(list, func(i, j int) bool { return list[i].start.Before(list[j].start) })
		from, until := list[0].start, list[0].end
		for _, iv := range list[1:] {
			if iv.start.After(until) {
				break
			}
			if iv.end.After(until) {
				until = iv.end
			}
		}
		out[resourceID] = Availability{IsBooked: true, BookedFrom: &from, BookedUntil: &until}
	}
	return out
}

// Rebuild reloads the active reservations and publishes a new snapshot.
func (p *Projection) Rebuild(ctx context.Context) (Snapshot, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "Projection.Rebuild")
	defer seg.Close(nil)

	started := time.Now()

	now, err := p.clock.Now(ctx)
	if err != nil {
		seg.Close(err)
		return Snapshot{}, fmt.Errorf("read clock: %w", err)
	}
	reservations, err := p.source.ListAllActive(ctx)
	if err != nil {
		seg.Close(err)
		return Snapshot{}, fmt.Errorf("list active reservations: %w", err)
	}

	resources := Fold(reservations, now, p.logger)
	booked := len(resources)
	if p.resources != nil {
		all, err := p.resources.ListResources(ctx)
		if err != nil {
			seg.Close(err)
			return Snapshot{}, fmt.Errorf("list resources: %w", err)
		}
		for _, r := range all {
			if _, ok := resources[r.ID]; !ok {
				resources[r.ID] = Availability{}
			}
		}
	}

	snap := Snapshot{At: now, Resources: resources}
	p.publish(snap)

	if p.recorder != nil {
		p.recorder.ProjectionRebuilt(booked, time.Since(started))
	}
	return snap, nil
}

// Snapshot returns the latest published snapshot.
func (p *Projection) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return copySnapshot(p.current)
}

// Subscribe returns a channel receiving every new snapshot, starting with the
// current one. A slow subscriber only ever sees the latest value. Call the
// returned func to unsubscribe.
func (p *Projection) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subscribers[id] = ch
	ch <- copySnapshot(p.current)
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subscribers, id)
			close(ch)
			p.mu.Unlock()
		})
	}
}

func (p *Projection) publish(snap Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = snap
	for _, ch := range p.subscribers {
		// drop the stale value if the subscriber has not read it yet
		select {
		case <-ch:
		default:
		}
		ch <- copySnapshot(snap)
	}
}

// Run rebuilds on every change notification and on every tick until ctx is
// cancelled. changes may be nil.
func (p *Projection) Run(ctx context.Context, changes <-chan string, tick time.Duration) {
	if tick <= 0 {
		tick = DefaultTick
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	p.rebuildLogged(ctx, "startup")
	for {
		select {
		case <-ctx.Done():
			return
		case resourceID, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			p.rebuildLogged(ctx, "change:"+resourceID)
		case <-ticker.C:
			p.rebuildLogged(ctx, "tick")
		}
	}
}

func (p *Projection) rebuildLogged(ctx context.Context, trigger string) {
	ctx, seg := xray.BeginSegment(ctx, "projection-rebuild")
	if _, err := p.Rebuild(ctx); err != nil {
		seg.Close(err)
		p.logger.Error("projection rebuild failed", "trigger", trigger, "error", err)
		return
	}
	seg.Close(nil)
	p.logger.Debug("projection rebuilt", "trigger", trigger)
}

func copySnapshot(s Snapshot) Snapshot {
	out := Snapshot{At: s.At, Resources: make(map[string]Availability, len(s.Resources))}
	for k, v := range s.Resources {
		out.Resources[k] = v
	}
	return out
}
