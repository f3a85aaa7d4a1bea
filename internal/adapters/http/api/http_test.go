package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/okian/fightlens/internal/adapters/http/api"
	"github.com/okian/fightlens/internal/scheduler"
	. "github.com/smartystreets/goconvey/convey"
)

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

type mockRunner struct {
	ran  []string
	busy bool
	err  error
}

func (m *mockRunner) RunNow(_ context.Context, name string) error {
	if name != "anticheat-task" {
		return fmt.Errorf("run %q: %w", name, scheduler.ErrUnknownTask)
	}
	if m.busy {
		return fmt.Errorf("run %q: %w", name, scheduler.ErrTaskRunning)
	}
	m.ran = append(m.ran, name)
	return m.err
}

func okCheck(name string) api.Check {
	return api.Check{Name: name, Run: func(context.Context) error { return nil }}
}

func failingCheck(name string) api.Check {
	return api.Check{Name: name, Run: func(context.Context) error { return errors.New("connection refused") }}
}

func TestServer_Register(t *testing.T) {
	Convey("Given a new API server", t, func() {
		statsProvider := &mockStatsProvider{stats: map[string]interface{}{"anticheatRuns": 2}}
		runner := &mockRunner{}
		server := api.NewServer(statsProvider, runner, okCheck("store"))
		mux := http.NewServeMux()

		Convey("When registering routes", func() {
			server.Register(context.Background(), mux)

			Convey("Then the health endpoint should be accessible", func() {
				req := httptest.NewRequest("GET", "/healthz", nil)
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, req)
				So(w.Code, ShouldEqual, http.StatusOK)
			})

			Convey("And the metrics endpoint should serve the registry", func() {
				req := httptest.NewRequest("GET", "/metrics", nil)
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, req)
				So(w.Code, ShouldEqual, http.StatusOK)
			})

			Convey("And the stats endpoint should be accessible", func() {
				req := httptest.NewRequest("GET", "/stats", nil)
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, req)
				So(w.Code, ShouldEqual, http.StatusOK)
			})

			Convey("And a known task can be triggered", func() {
				req := httptest.NewRequest("POST", "/tasks/anticheat-task/run", nil)
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, req)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(runner.ran, ShouldResemble, []string{"anticheat-task"})
			})

			Convey("And unknown paths are not found", func() {
				req := httptest.NewRequest("GET", "/fights", nil)
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, req)
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("Without a runner no task route is registered", func() {
			mux := http.NewServeMux()
			api.NewServer(statsProvider, nil).Register(context.Background(), mux)
			req := httptest.NewRequest("POST", "/tasks/anticheat-task/run", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestHealthHandler_HandleHealth(t *testing.T) {
	Convey("Given a health handler", t, func() {
		Convey("When every check passes", func() {
			handler := api.NewHealthHandler(okCheck("store"), okCheck("accounts"))
			req := httptest.NewRequest("GET", "/healthz", nil)
			w := httptest.NewRecorder()
			handler.HandleHealth(w, req)

			Convey("Then it should return OK status", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var body struct {
					Status string            `json:"status"`
					Checks map[string]string `json:"checks"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body.Status, ShouldEqual, "ok")
				So(body.Checks, ShouldResemble, map[string]string{"store": "ok", "accounts": "ok"})
			})
		})

		Convey("When a check fails", func() {
			handler := api.NewHealthHandler(okCheck("store"), failingCheck("accounts"))
			req := httptest.NewRequest("GET", "/healthz", nil)
			w := httptest.NewRecorder()
			handler.HandleHealth(w, req)

			Convey("Then it should report unavailable", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
				So(w.Body.String(), ShouldContainSubstring, "connection refused")
			})
		})

		Convey("When metrics are requested", func() {
			handler := api.NewHealthHandler(failingCheck("store"))
			req := httptest.NewRequest("GET", "/healthz", nil)
			req.Header.Set("Accept", "text/plain")
			w := httptest.NewRecorder()
			handler.HandleHealth(w, req)

			Convey("Then checks are not run", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
			})
		})
	})
}

func TestStatsHandler_HandleStats(t *testing.T) {
	Convey("Given a stats handler", t, func() {
		handler := api.NewStatsHandler(&mockStatsProvider{
			stats: map[string]interface{}{
				"anticheatRuns": 3,
				"flagged":       1,
			},
		})

		Convey("When handling GET", func() {
			req := httptest.NewRequest("GET", "/stats", nil)
			w := httptest.NewRecorder()
			handler.HandleStats(w, req)

			Convey("Then it returns the stats as JSON", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldEqual, "application/json; charset=utf-8")
				var body map[string]interface{}
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body["anticheatRuns"], ShouldEqual, float64(3))
				So(body["flagged"], ShouldEqual, float64(1))
			})
		})

		Convey("When handling POST", func() {
			req := httptest.NewRequest("POST", "/stats", nil)
			w := httptest.NewRecorder()
			handler.HandleStats(w, req)

			Convey("Then it returns not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestTasksHandler_HandleRun(t *testing.T) {
	Convey("Given a tasks handler", t, func() {
		runner := &mockRunner{}
		mux := http.NewServeMux()
		mux.HandleFunc("POST /tasks/{name}/run", api.NewTasksHandler(runner).HandleRun)

		Convey("An unknown task is not found", func() {
			req := httptest.NewRequest("POST", "/tasks/missing/run", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(w.Body.String(), ShouldContainSubstring, "unknown_task")
		})

		Convey("A pass that is already running is a conflict", func() {
			runner.busy = true
			req := httptest.NewRequest("POST", "/tasks/anticheat-task/run", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusConflict)
			So(w.Body.String(), ShouldContainSubstring, "task_running")
			So(runner.ran, ShouldBeEmpty)
		})

		Convey("A failing pass returns a server error", func() {
			runner.err = errors.New("mongo down")
			req := httptest.NewRequest("POST", "/tasks/anticheat-task/run", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(w.Body.String(), ShouldContainSubstring, "mongo down")
		})
	})
}
