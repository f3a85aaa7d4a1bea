package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/fightlens/internal/adapters/accounts"
	"github.com/okian/fightlens/internal/adapters/alert"
	"github.com/okian/fightlens/internal/adapters/repository"
	service "github.com/okian/fightlens/internal/app"
	"github.com/okian/fightlens/internal/domain/cluster"
	"github.com/okian/fightlens/internal/domain/geom"
	"github.com/okian/fightlens/internal/domain/model"
	"github.com/okian/fightlens/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var t0 = time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)

type sent struct {
	eventType string
	data      any
}

type fakeSink struct {
	mu     sync.Mutex
	events []sent
	err    error
}

func (f *fakeSink) Send(_ context.Context, eventType string, data any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, sent{eventType: eventType, data: data})
	return nil
}

func (f *fakeSink) Healthy() bool { return f.err == nil }

func (f *fakeSink) ofType(eventType string) []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sent
	for _, e := range f.events {
		if e.eventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// failingStore fails batch writes.
type failingStore struct {
	*repository.MemoryStore
	err error
}

func (s *failingStore) ApplyPatches(context.Context, []model.EncounterPatch) error { return s.err }

// slowClusters widens the window between reading recent clusters and inserting one.
type slowClusters struct {
	*repository.MemoryStore
}

func (s *slowClusters) RecentClusters(ctx context.Context, factionID string, limit int) ([]model.FactionCluster, error) {
	time.Sleep(50 * time.Millisecond)
	return s.MemoryStore.RecentClusters(ctx, factionID, limit)
}

func shots(n, hits int) []model.ShotEvent {
	out := make([]model.ShotEvent, n)
	for i := range out {
		out[i] = model.ShotEvent{
			ShotSend:      t0.UnixMilli() + int64(i*100),
			ShotDirection: geom.V(0, 1, 0),
			Hit:           i < hits,
		}
	}
	return out
}

func fight(id, account string, created time.Time, shotCount, hits int) model.Encounter {
	return model.Encounter{
		ID:        id,
		AccountID: account,
		Shots:     shots(shotCount, hits),
		Created:   created,
	}
}

func newService(store repository.Store, sink alert.Sink, factions map[string]string) *service.Service {
	n := 0
	svc, err := service.New(
		service.WithStore(store),
		service.WithResolver(accounts.NewStatic(factions)),
		service.WithSink(sink),
		service.WithRunIDs(func() string {
			n++
			return fmt.Sprintf("run-%d", n)
		}),
		service.WithClusterOptions(cluster.WithClock(func() time.Time { return t0.Add(time.Hour) })),
	)
	So(err, ShouldBeNil)
	return svc
}

func TestService_New(t *testing.T) {
	Convey("Given service options", t, func() {
		Convey("Missing stores are rejected", func() {
			_, err := service.New(service.WithResolver(accounts.NewStatic(nil)))
			So(errors.Is(err, service.ErrMissingStore), ShouldBeTrue)
		})

		Convey("A missing resolver is rejected", func() {
			_, err := service.New(service.WithStore(repository.NewMemoryStore()))
			So(errors.Is(err, service.ErrMissingResolver), ShouldBeTrue)
		})

		Convey("Tasks carry their names and schedules", func() {
			svc, err := service.New(
				service.WithStore(repository.NewMemoryStore()),
				service.WithResolver(accounts.NewStatic(nil)),
				service.WithSchedules("*/5 * * * *", "*/2 * * * *", 15*time.Second),
			)
			So(err, ShouldBeNil)

			at := svc.AnticheatTask()
			So(at.Name(), ShouldEqual, service.AnticheatTaskName)
			So(at.Schedule(), ShouldEqual, "*/5 * * * *")
			So(at.Delay(), ShouldEqual, 0)

			ft := svc.FactionFightTask()
			So(ft.Name(), ShouldEqual, service.FactionFightTaskName)
			So(ft.Schedule(), ShouldEqual, "*/2 * * * *")
			So(ft.Delay(), ShouldEqual, 15*time.Second)
		})
	})
}

func TestService_Anticheat(t *testing.T) {
	Convey("Given stored encounters", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		sink := &fakeSink{}
		svc := newService(store, sink, nil)

		So(store.PutEncounter(fight("clean", "acc-1", t0, 10, 2)), ShouldBeNil)
		So(store.PutEncounter(fight("sharp", "acc-2", t0, 10, 9)), ShouldBeNil)
		So(store.PutEncounter(fight("tiny", "acc-3", t0, 2, 2)), ShouldBeNil)

		Convey("A pass analyzes every pending encounter", func() {
			rep, err := svc.RunAnticheat(ctx)
			So(err, ShouldBeNil)
			So(rep.RunID, ShouldEqual, "run-1")
			So(rep.Pending, ShouldEqual, 3)
			So(rep.Analyzed, ShouldEqual, 2)
			So(rep.Skipped, ShouldEqual, 1)
			So(rep.Flagged, ShouldEqual, 1)

			Convey("Every encounter receives a summary", func() {
				for _, id := range []string{"clean", "sharp", "tiny"} {
					e, err := store.Encounter(id)
					So(err, ShouldBeNil)
					So(e.Analysis, ShouldNotBeNil)
				}
				tiny, _ := store.Encounter("tiny")
				So(tiny.Analysis.ShotCount, ShouldEqual, 0)
				sharp, _ := store.Encounter("sharp")
				So(sharp.Analysis.HitRate, ShouldAlmostEqual, 0.9)
			})

			Convey("Only the suspicious encounter raises a flag", func() {
				flags := sink.ofType(alert.EventFlag)
				So(flags, ShouldHaveLength, 1)
				flag, ok := flags[0].data.(service.FlagAlert)
				So(ok, ShouldBeTrue)
				So(flag.FightID, ShouldEqual, "sharp")
				So(flag.AccountID, ShouldEqual, "acc-2")
				So(flag.Reasons, ShouldContain, "hitRate")
			})

			Convey("The pass summary is sent last", func() {
				So(sink.events[len(sink.events)-1].eventType, ShouldEqual, alert.EventPass)
				pass := sink.events[len(sink.events)-1].data.(service.PassAlert)
				So(pass.Analyzed, ShouldEqual, 2)
				So(pass.Flagged, ShouldEqual, 1)
				So(rep.Alerts, ShouldEqual, 2)
			})

			Convey("A second pass finds nothing to do", func() {
				again, err := svc.RunAnticheat(ctx)
				So(err, ShouldBeNil)
				So(again.Pending, ShouldEqual, 0)
				So(sink.ofType(alert.EventFlag), ShouldHaveLength, 1)
			})

			Convey("Stats reflect the pass", func() {
				stats := svc.GetStats()
				So(stats["anticheatRuns"], ShouldEqual, 1)
				So(stats["analyzed"], ShouldEqual, 2)
				So(stats["flagged"], ShouldEqual, 1)
				So(stats["alertsHealthy"], ShouldBeTrue)
				So(stats, ShouldContainKey, "lastAnticheat")
			})
		})

		Convey("Alert failures do not fail the pass", func() {
			sink.err = errors.New("bridge down")
			rep, err := svc.RunAnticheat(ctx)
			So(err, ShouldBeNil)
			So(rep.Flagged, ShouldEqual, 1)
			So(rep.Alerts, ShouldEqual, 0)
			e, _ := store.Encounter("sharp")
			So(e.Analysis, ShouldNotBeNil)
		})

		Convey("A disabled sink is tolerated", func() {
			svc := newService(store, alert.Nop{}, nil)
			rep, err := svc.RunAnticheat(ctx)
			So(err, ShouldBeNil)
			So(rep.Alerts, ShouldEqual, 0)
			So(svc.GetStats()["alertsHealthy"], ShouldBeFalse)
		})

		Convey("A failed write sends no alerts", func() {
			broken := &failingStore{MemoryStore: store, err: errors.New("write failed")}
			svc := newService(broken, sink, nil)
			_, err := svc.RunAnticheat(ctx)
			So(err, ShouldNotBeNil)
			So(sink.events, ShouldBeEmpty)
			So(svc.GetStats()["lastAnticheat"], ShouldNotBeNil)
		})
	})
}

func TestService_FactionFights(t *testing.T) {
	Convey("Given analyzed encounters of one faction", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		factions := map[string]string{"a": "lspd", "b": "lspd", "c": "lspd", "d": "lspd", "x": ""}
		svc := newService(store, &fakeSink{}, factions)

		for i, acc := range []string{"a", "b", "c", "d"} {
			e := fight(fmt.Sprintf("e%d", i), acc, t0.Add(time.Duration(i)*2*time.Minute), 10, 3)
			So(store.PutEncounter(e), ShouldBeNil)
		}
		So(store.PutEncounter(fight("lonely", "x", t0, 10, 3)), ShouldBeNil)

		Convey("Nothing is clustered before analysis", func() {
			rep, err := svc.RunFactionFights(ctx)
			So(err, ShouldBeNil)
			So(rep.Pending, ShouldEqual, 0)
			So(store.Clusters(), ShouldBeEmpty)
		})

		Convey("After analysis", func() {
			_, err := svc.RunAnticheat(ctx)
			So(err, ShouldBeNil)

			rep, err := svc.RunFactionFights(ctx)
			So(err, ShouldBeNil)
			So(rep.Pending, ShouldEqual, 5)
			So(rep.Result.Created, ShouldEqual, 1)
			So(rep.Result.Clustered, ShouldEqual, 4)

			clusters := store.Clusters()
			So(clusters, ShouldHaveLength, 1)
			So(clusters[0].FactionID, ShouldEqual, "lspd")
			So(clusters[0].EncounterIDs, ShouldHaveLength, 4)

			Convey("Members reference the new faction fight", func() {
				for i := 0; i < 4; i++ {
					e, err := store.Encounter(fmt.Sprintf("e%d", i))
					So(err, ShouldBeNil)
					So(e.ClusterRef, ShouldNotBeNil)
					So(*e.ClusterRef, ShouldEqual, clusters[0].ID)
				}
			})

			Convey("An account without a faction is retired", func() {
				e, _ := store.Encounter("lonely")
				So(e.ClusterRef, ShouldBeNil)
				So(e.AssignmentAttempts(), ShouldEqual, cluster.DefaultMaxAttempts)
			})

			Convey("A rerun creates nothing new", func() {
				again, err := svc.RunFactionFights(ctx)
				So(err, ShouldBeNil)
				So(again.Pending, ShouldEqual, 0)
				So(store.Clusters(), ShouldHaveLength, 1)
			})

			Convey("Stats count the cluster", func() {
				stats := svc.GetStats()
				So(stats["factionRuns"], ShouldEqual, 1)
				So(stats["clustersCreated"], ShouldEqual, 1)
				So(stats["clustered"], ShouldEqual, 4)
			})
		})

		Convey("Overlapping passes create one faction fight", func() {
			slow := &slowClusters{MemoryStore: store}
			svc := newService(slow, &fakeSink{}, factions)
			_, err := svc.RunAnticheat(ctx)
			So(err, ShouldBeNil)

			var wg sync.WaitGroup
			errs := make([]error, 2)
			for i := range errs {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, errs[i] = svc.RunFactionFights(ctx)
				}(i)
			}
			wg.Wait()

			So(errs[0], ShouldBeNil)
			So(errs[1], ShouldBeNil)
			So(store.Clusters(), ShouldHaveLength, 1)
			So(svc.GetStats()["clustersCreated"], ShouldEqual, 1)
		})

		Convey("Tasks run the passes", func() {
			So(svc.AnticheatTask().Execute(ctx), ShouldBeNil)
			So(svc.FactionFightTask().Execute(ctx), ShouldBeNil)
			So(store.Clusters(), ShouldHaveLength, 1)
		})
	})
}
