package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/fightlens/pkg/logger"
)

func init() {
	_ = logger.Init()
}

type fakeTask struct {
	name     string
	schedule string
	delay    time.Duration
	err      error
	block    chan struct{}

	runs    atomic.Int32
	running atomic.Int32
	maxPar  atomic.Int32
}

func (f *fakeTask) Name() string         { return f.name }
func (f *fakeTask) Schedule() string     { return f.schedule }
func (f *fakeTask) Delay() time.Duration { return f.delay }

func (f *fakeTask) Execute(ctx context.Context) error {
	n := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		m := f.maxPar.Load()
		if n <= m || f.maxPar.CompareAndSwap(m, n) {
			break
		}
	}
	f.runs.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

type failures struct {
	mu   sync.Mutex
	seen map[string]error
}

func (f *failures) hook(task string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen[task] = err
}

func (f *failures) get(task string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen[task]
}

func TestRegistry(t *testing.T) {
	Convey("Given a scheduler", t, func() {
		s := New()
		defer func() { _ = s.Stop(context.Background()) }()

		Convey("When tasks are registered", func() {
			So(s.Register(&fakeTask{name: "anticheat", schedule: "*/1 * * * *"}), ShouldBeNil)
			So(s.Register(&fakeTask{name: "faction", schedule: "*/1 * * * *", delay: 30 * time.Second}), ShouldBeNil)

			Convey("Then they are listed by name", func() {
				So(s.Tasks(), ShouldResemble, []string{"anticheat", "faction"})
			})

			Convey("And a duplicate name is rejected", func() {
				err := s.Register(&fakeTask{name: "faction", schedule: "@hourly"})
				So(errors.Is(err, ErrDuplicateTask), ShouldBeTrue)
			})

			Convey("And unregistering removes one task", func() {
				So(s.Unregister("anticheat"), ShouldBeNil)
				So(s.Tasks(), ShouldResemble, []string{"faction"})
				So(errors.Is(s.Unregister("anticheat"), ErrUnknownTask), ShouldBeTrue)
			})

			Convey("And the next activation is known once started", func() {
				s.Start()
				next, err := s.Next("faction")
				So(err, ShouldBeNil)
				So(next.After(time.Now()), ShouldBeTrue)
			})
		})

		Convey("When the schedule is not a cron expression", func() {
			err := s.Register(&fakeTask{name: "bad", schedule: "every minute"})

			Convey("Then registration fails", func() {
				So(err, ShouldNotBeNil)
				So(s.Tasks(), ShouldBeEmpty)
			})
		})

		Convey("When the task has no name", func() {
			err := s.Register(&fakeTask{schedule: "@hourly"})

			Convey("Then it is rejected", func() {
				So(errors.Is(err, ErrInvalidTask), ShouldBeTrue)
			})
		})
	})
}

func TestRunNow(t *testing.T) {
	Convey("Given a scheduler with a failure hook", t, func() {
		f := &failures{seen: map[string]error{}}
		s := New(WithFailureHook(f.hook))
		defer func() { _ = s.Stop(context.Background()) }()

		boom := errors.New("store unavailable")
		ok := &fakeTask{name: "ok", schedule: "@hourly", delay: time.Hour}
		bad := &fakeTask{name: "bad", schedule: "@hourly", err: boom}
		So(s.Register(ok), ShouldBeNil)
		So(s.Register(bad), ShouldBeNil)

		Convey("When a task is run on demand", func() {
			err := s.RunNow(context.Background(), "ok")

			Convey("Then it runs immediately without its delay", func() {
				So(err, ShouldBeNil)
				So(ok.runs.Load(), ShouldEqual, 1)
				So(f.get("ok"), ShouldBeNil)
			})
		})

		Convey("When a task fails", func() {
			err := s.RunNow(context.Background(), "bad")

			Convey("Then the error is returned and reported", func() {
				So(errors.Is(err, boom), ShouldBeTrue)
				So(f.get("bad"), ShouldEqual, boom)
			})
		})

		Convey("When the task is unknown", func() {
			err := s.RunNow(context.Background(), "ghost")

			Convey("Then ErrUnknownTask is returned", func() {
				So(errors.Is(err, ErrUnknownTask), ShouldBeTrue)
			})
		})
	})
}

func TestCronFiring(t *testing.T) {
	Convey("Given a seconds-resolution scheduler", t, func() {
		s := New(WithSeconds(), WithFailureHook(func(string, error) {}))

		Convey("When a quick task fires every second", func() {
			task := &fakeTask{name: "tick", schedule: "* * * * * *"}
			So(s.Register(task), ShouldBeNil)
			s.Start()
			time.Sleep(2500 * time.Millisecond)
			So(s.Stop(context.Background()), ShouldBeNil)

			Convey("Then it ran on the ticks", func() {
				So(task.runs.Load(), ShouldBeGreaterThanOrEqualTo, 2)
				So(s.Tasks(), ShouldBeEmpty)
			})
		})

		Convey("When a slow task is still running at the next tick", func() {
			task := &fakeTask{name: "slow", schedule: "* * * * * *", block: make(chan struct{})}
			So(s.Register(task), ShouldBeNil)
			s.Start()
			time.Sleep(3500 * time.Millisecond)
			close(task.block)
			So(s.Stop(context.Background()), ShouldBeNil)

			Convey("Then later ticks are skipped instead of overlapping", func() {
				So(task.runs.Load(), ShouldEqual, 1)
				So(task.maxPar.Load(), ShouldEqual, 1)
			})
		})

		Convey("When an on-demand run is requested during a scheduled run", func() {
			task := &fakeTask{name: "faction", schedule: "* * * * * *", block: make(chan struct{})}
			So(s.Register(task), ShouldBeNil)
			s.Start()
			time.Sleep(1500 * time.Millisecond)
			err := s.RunNow(context.Background(), "faction")
			So(s.Stop(context.Background()), ShouldBeNil)

			Convey("Then it is refused and the runs never overlap", func() {
				So(errors.Is(err, ErrTaskRunning), ShouldBeTrue)
				So(task.runs.Load(), ShouldEqual, 1)
				So(task.maxPar.Load(), ShouldEqual, 1)
			})
		})

		Convey("When ticks arrive during an on-demand run", func() {
			task := &fakeTask{name: "faction", schedule: "* * * * * *", block: make(chan struct{})}
			So(s.Register(task), ShouldBeNil)

			done := make(chan error, 1)
			go func() { done <- s.RunNow(context.Background(), "faction") }()
			for task.running.Load() == 0 {
				time.Sleep(10 * time.Millisecond)
			}
			s.Start()
			time.Sleep(2500 * time.Millisecond)
			So(s.Stop(context.Background()), ShouldBeNil)
			close(task.block)
			err := <-done

			Convey("Then the ticks are skipped", func() {
				So(err, ShouldBeNil)
				So(task.runs.Load(), ShouldEqual, 1)
				So(task.maxPar.Load(), ShouldEqual, 1)
			})
		})

		Convey("When the scheduler stops during a task delay", func() {
			task := &fakeTask{name: "delayed", schedule: "* * * * * *", delay: time.Hour}
			So(s.Register(task), ShouldBeNil)
			s.Start()
			time.Sleep(1500 * time.Millisecond)
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			err := s.Stop(ctx)

			Convey("Then the delayed run is abandoned", func() {
				So(err, ShouldBeNil)
				So(task.runs.Load(), ShouldEqual, 0)
			})
		})
	})
}
