package node

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"saferide/go-backend/internal/aggregator"
	"saferide/go-backend/internal/broker"
	"saferide/go-backend/internal/clock"
	"saferide/go-backend/internal/models"
	"saferide/go-backend/internal/vehicle"
)

type recordingRenderer struct {
	frames []aggregator.DisplayState
}

func (r *recordingRenderer) Render(s aggregator.DisplayState) error {
	r.frames = append(r.frames, s)
	return nil
}

type recordingSender struct {
	topics   []string
	payloads [][]byte
	err      error
	onSend   func()
}

func (s *recordingSender) Publish(topic string, payload []byte) error {
	if s.onSend != nil {
		s.onSend()
	}
	s.topics = append(s.topics, topic)
	s.payloads = append(s.payloads, payload)
	return s.err
}

type fixture struct {
	loop     *Loop
	mailbox  *broker.Mailbox
	agg      *aggregator.Aggregator
	renderer *recordingRenderer
	sender   *recordingSender
	buttons  *vehicle.Latch
	lost     chan error
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newClockedFixture(t, nil)
}

func newClockedFixture(t *testing.T, clk clock.Clock) *fixture {
	t.Helper()
	f := &fixture{
		mailbox:  broker.NewMailbox(8),
		renderer: &recordingRenderer{},
		sender:   &recordingSender{},
		buttons:  &vehicle.Latch{},
		lost:     make(chan error, 1),
	}
	f.agg = aggregator.New(f.renderer)
	src := vehicle.NewSource(vehicle.Inputs{HardBraking: f.buttons}, vehicle.SourceConfig{
		Sampler: func(bool) int { return 72 },
	})
	f.loop = NewLoop(Config{VehicleID: "v-101"}, Deps{
		Mailbox:    f.mailbox,
		Source:     src,
		Aggregator: f.agg,
		Sender:     f.sender,
		Lost:       f.lost,
		Clock:      clk,
	})
	return f
}

var t0 = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func TestStepOptimisticBeforeSend(t *testing.T) {
	f := newFixture(t)
	f.sender.onSend = func() {
		if len(f.renderer.frames) == 0 || f.renderer.frames[len(f.renderer.frames)-1].Vehicle != models.VehicleHardBraking {
			t.Error("display was not updated before the send")
		}
	}

	f.buttons.Press()
	if err := f.loop.Step(t0); err != nil {
		t.Fatal(err)
	}
	if len(f.sender.topics) != 1 || f.sender.topics[0] != "vehicles/v-101/telemetry" {
		t.Fatalf("sent to %v", f.sender.topics)
	}
	if !f.agg.State().Tentative {
		t.Fatal("state should be tentative until the echo arrives")
	}

	msg, err := models.DecodeTelemetry(f.sender.payloads[0])
	if err != nil {
		t.Fatal(err)
	}
	if msg.Status != "hard braking" || msg.HeartRateValue() != 72 || msg.Confidence != 0.99 {
		t.Fatalf("payload = %+v", msg)
	}

	// The broker echoes our own message back on the shared topic.
	f.mailbox.Deliver(broker.Message{Topic: f.sender.topics[0], Payload: f.sender.payloads[0]})
	if err := f.loop.Step(t0.Add(100 * time.Millisecond)); err != nil {
		t.Fatal(err)
	}
	got := f.agg.State()
	if got.Vehicle != models.VehicleHardBraking || got.Tentative {
		t.Fatalf("after echo: %+v", got)
	}
}

func TestStepDrainsInboxBeforeInputs(t *testing.T) {
	f := newFixture(t)
	f.mailbox.Deliver(broker.Message{Payload: []byte(`{"status":"distracted"}`)})
	f.mailbox.Deliver(broker.Message{Payload: []byte(`{"status":"BANANA"}`)})
	f.mailbox.Deliver(broker.Message{Payload: []byte(`garbage`)})

	if err := f.loop.Step(t0); err != nil {
		t.Fatal(err)
	}
	if got := f.agg.State(); got.Driver != models.DriverDistracted || got.Vehicle != models.VehicleUnknown {
		t.Fatalf("state = %+v", got)
	}
	if len(f.sender.topics) != 0 {
		t.Fatal("nothing should be sent without an input")
	}
}

func TestStepSwallowsSendFailure(t *testing.T) {
	f := newFixture(t)
	f.sender.err = fmt.Errorf("%w: broker busy", broker.ErrUnavailable)

	f.buttons.Press()
	if err := f.loop.Step(t0); err != nil {
		t.Fatalf("Step = %v, want nil", err)
	}
	if f.agg.State().Vehicle != models.VehicleHardBraking {
		t.Fatal("optimistic write should stand after a failed send")
	}
}

func TestStepConnectionLost(t *testing.T) {
	f := newFixture(t)
	f.lost <- fmt.Errorf("%w: EOF", broker.ErrConnectionLost)

	if err := f.loop.Step(t0); !errors.Is(err, broker.ErrConnectionLost) {
		t.Fatalf("Step = %v, want ErrConnectionLost", err)
	}
}

func TestRunReturnsOnConnectionLost(t *testing.T) {
	f := newFixture(t)
	f.lost <- fmt.Errorf("%w: EOF", broker.ErrConnectionLost)

	err := f.loop.Run(context.Background())
	if !errors.Is(err, broker.ErrConnectionLost) {
		t.Fatalf("Run = %v", err)
	}
	if len(f.renderer.frames) == 0 {
		t.Fatal("initial screen was not drawn")
	}
}

type stubRunner struct {
	run    func(ctx context.Context) error
	closed bool
}

func (r *stubRunner) Run(ctx context.Context) error { return r.run(ctx) }
func (r *stubRunner) Close()                        { r.closed = true }

type screenLog struct {
	events []string
}

func (s *screenLog) WiFiFailed() error {
	s.events = append(s.events, "wifi")
	return nil
}

func (s *screenLog) Fault(err error) error {
	s.events = append(s.events, "fault")
	return nil
}

func TestSupervisorRestartsFromScratch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	screen := &screenLog{}
	var runners []*stubRunner
	builds := 0
	sup := &Supervisor{
		Screen: screen,
		Delay:  time.Millisecond,
		Build: func(context.Context) (Runner, error) {
			builds++
			switch builds {
			case 1:
				return nil, fmt.Errorf("%w: no route", broker.ErrUnavailable)
			case 2:
				r := &stubRunner{run: func(context.Context) error {
					return fmt.Errorf("%w: EOF", broker.ErrConnectionLost)
				}}
				runners = append(runners, r)
				return r, nil
			}
			r := &stubRunner{run: func(ctx context.Context) error {
				cancel()
				<-ctx.Done()
				return ctx.Err()
			}}
			runners = append(runners, r)
			return r, nil
		},
	}

	if err := sup.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v", err)
	}
	if builds != 3 {
		t.Fatalf("builds = %d, want 3", builds)
	}
	if len(screen.events) != 2 || screen.events[0] != "wifi" || screen.events[1] != "fault" {
		t.Fatalf("screen events = %v", screen.events)
	}
	for i, r := range runners {
		if !r.closed {
			t.Fatalf("runner %d was not closed", i)
		}
	}
}

func TestRunStepsOnClockTicks(t *testing.T) {
	clk := clock.Fake(t0)
	f := newClockedFixture(t, clk)
	sent := make(chan struct{}, 4)
	f.sender.onSend = func() { sent <- struct{}{} }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.loop.Run(ctx) }()

	clk.WaitForTickers(1)
	f.buttons.Press()
	clk.Advance(DefaultPollInterval)

	select {
	case <-sent:
	case <-time.After(5 * time.Second):
		t.Fatal("press was not sent on the first tick")
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v", err)
	}
	if len(f.sender.payloads) != 1 {
		t.Fatalf("sent %d events, want 1", len(f.sender.payloads))
	}
	msg, err := models.DecodeTelemetry(f.sender.payloads[0])
	if err != nil {
		t.Fatal(err)
	}
	if msg.Timestamp != t0.Add(DefaultPollInterval).Unix() {
		t.Fatalf("timestamp = %d, want the fake clock's time", msg.Timestamp)
	}
}

func TestSupervisorWaitsOnClock(t *testing.T) {
	clk := clock.Fake(t0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var builds atomic.Int32
	sup := &Supervisor{
		Screen: &screenLog{},
		Delay:  time.Hour,
		Clock:  clk,
		Build: func(ctx context.Context) (Runner, error) {
			if builds.Add(1) == 1 {
				return nil, fmt.Errorf("%w: no route", broker.ErrUnavailable)
			}
			return &stubRunner{run: func(ctx context.Context) error {
				cancel()
				<-ctx.Done()
				return ctx.Err()
			}}, nil
		},
	}

	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	clk.WaitForTickers(1)
	if n := builds.Load(); n != 1 {
		t.Fatalf("rebuilt before the delay elapsed: builds = %d", n)
	}
	clk.Advance(time.Hour)

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not restart after the delay")
	}
	if n := builds.Load(); n != 2 {
		t.Fatalf("builds = %d, want 2", n)
	}
}
