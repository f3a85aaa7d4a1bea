package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/fightlens/internal/domain/model"
)

func intPtr(n int) *int       { return &n }
func strPtr(s string) *string { return &s }

func seq() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("c%d", n)
	}
}

func TestMemoryStorePending(t *testing.T) {
	Convey("Given a memory store with encounters in every state", t, func() {
		ctx := context.Background()
		s := NewMemoryStore()
		base := time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)
		analyzed := &model.AnalysisSummary{ShotCount: 9}

		So(s.PutEncounter(model.Encounter{ID: "new", AccountID: "a1", Created: base}), ShouldBeNil)
		So(s.PutEncounter(model.Encounter{ID: "ready", AccountID: "a2", Created: base, Analysis: analyzed}), ShouldBeNil)
		So(s.PutEncounter(model.Encounter{ID: "retry", AccountID: "a3", Created: base, Analysis: analyzed, Attempts: intPtr(1)}), ShouldBeNil)
		So(s.PutEncounter(model.Encounter{ID: "done", AccountID: "a4", Created: base, Analysis: analyzed, Attempts: intPtr(2)}), ShouldBeNil)
		So(s.PutEncounter(model.Encounter{ID: "assigned", AccountID: "a5", Created: base, Analysis: analyzed, ClusterRef: strPtr("c1")}), ShouldBeNil)

		Convey("When querying pending analysis", func() {
			got, err := s.PendingAnalysis(ctx)

			Convey("Then only the unanalyzed encounter is returned", func() {
				So(err, ShouldBeNil)
				So(len(got), ShouldEqual, 1)
				So(got[0].ID, ShouldEqual, "new")
			})
		})

		Convey("When querying pending clustering with a cap of 2", func() {
			got, err := s.PendingClustering(ctx, 2)

			Convey("Then unassigned encounters below the cap are returned in order", func() {
				So(err, ShouldBeNil)
				So(len(got), ShouldEqual, 2)
				So(got[0].ID, ShouldEqual, "ready")
				So(got[1].ID, ShouldEqual, "retry")
			})
		})

		Convey("When a returned encounter is mutated", func() {
			got, _ := s.PendingClustering(ctx, 2)
			got[1].Attempts = intPtr(7)
			*got[0].Analysis = model.AnalysisSummary{}

			Convey("Then the stored copy is untouched", func() {
				stored, err := s.Encounter("retry")
				So(err, ShouldBeNil)
				So(stored.AssignmentAttempts(), ShouldEqual, 1)
				ready, _ := s.Encounter("ready")
				So(ready.Analysis.ShotCount, ShouldEqual, 9)
			})
		})

		Convey("When the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := s.PendingAnalysis(cctx)

			Convey("Then the query fails", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			})
		})

		Convey("When reading an unknown encounter", func() {
			_, err := s.Encounter("nope")

			Convey("Then ErrNotFound is returned", func() {
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When putting an encounter without id", func() {
			err := s.PutEncounter(model.Encounter{AccountID: "x"})

			Convey("Then it is rejected", func() {
				So(errors.Is(err, ErrMissingID), ShouldBeTrue)
			})
		})
	})
}

func TestMemoryStoreApplyPatches(t *testing.T) {
	Convey("Given a memory store with one encounter", t, func() {
		ctx := context.Background()
		s := NewMemoryStore()
		So(s.PutEncounter(model.Encounter{ID: "e1", AccountID: "a1"}), ShouldBeNil)

		Convey("When applying analysis, ref and attempts patches", func() {
			err := s.ApplyPatches(ctx, []model.EncounterPatch{
				{ID: "e1", Analysis: &model.AnalysisSummary{HitCount: 3}},
				{ID: "e1", Attempts: intPtr(1)},
				{ID: "e1", ClusterRef: strPtr("c9")},
				{ID: "missing", Attempts: intPtr(2)},
				{ID: "e1"},
			})

			Convey("Then every field is written and unknown ids are ignored", func() {
				So(err, ShouldBeNil)
				e, _ := s.Encounter("e1")
				So(e.Analysis.HitCount, ShouldEqual, 3)
				So(e.AssignmentAttempts(), ShouldEqual, 1)
				So(*e.ClusterRef, ShouldEqual, "c9")
				_, err := s.Encounter("missing")
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			})

			Convey("And the encounter leaves both pending sets", func() {
				a, _ := s.PendingAnalysis(ctx)
				c, _ := s.PendingClustering(ctx, 2)
				So(a, ShouldBeEmpty)
				So(c, ShouldBeEmpty)
			})
		})
	})
}

func TestMemoryStoreClusters(t *testing.T) {
	Convey("Given a memory store with sequential ids", t, func() {
		ctx := context.Background()
		s := NewMemoryStore(WithIDGenerator(seq()))
		base := time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)

		for i := 0; i < 4; i++ {
			_, err := s.InsertCluster(ctx, &model.FactionCluster{
				FactionID:        "red",
				EncounterIDs:     []string{fmt.Sprintf("e%d", i)},
				MemberAccountIDs: []string{"a"},
				StartTime:        base.Add(time.Duration(i) * time.Hour),
				EndTime:          base.Add(time.Duration(i)*time.Hour + 10*time.Minute),
			})
			So(err, ShouldBeNil)
		}
		blueID, err := s.InsertCluster(ctx, &model.FactionCluster{FactionID: "blue", EndTime: base.Add(24 * time.Hour)})
		So(err, ShouldBeNil)
		So(blueID, ShouldEqual, "c5")

		Convey("When listing the two most recent red clusters", func() {
			got, err := s.RecentClusters(ctx, "red", 2)

			Convey("Then they are ordered by end time, newest first", func() {
				So(err, ShouldBeNil)
				So(len(got), ShouldEqual, 2)
				So(got[0].ID, ShouldEqual, "c4")
				So(got[1].ID, ShouldEqual, "c3")
			})
		})

		Convey("When the limit is not positive", func() {
			_, err := s.RecentClusters(ctx, "red", 0)

			Convey("Then ErrInvalidLimit is returned", func() {
				So(errors.Is(err, ErrInvalidLimit), ShouldBeTrue)
			})
		})

		Convey("When a cluster is updated", func() {
			got, _ := s.RecentClusters(ctx, "red", 1)
			c := got[0]
			c.EncounterIDs = append(c.EncounterIDs, "e9")
			So(s.UpdateClusters(ctx, []model.FactionCluster{c}), ShouldBeNil)

			Convey("Then the stored cluster carries the new member", func() {
				all := s.Clusters()
				So(all[3].EncounterIDs, ShouldResemble, []string{"e3", "e9"})
			})
		})

		Convey("When updating an unknown cluster", func() {
			err := s.UpdateClusters(ctx, []model.FactionCluster{{ID: "c1"}, {ID: "ghost"}})

			Convey("Then the batch fails without partial writes", func() {
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
				So(s.Clusters()[0].FactionID, ShouldEqual, "red")
			})
		})
	})
}
