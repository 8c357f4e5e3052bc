package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	app "github.com/okian/akut/internal/app"
	"github.com/okian/akut/internal/config"
	"github.com/okian/akut/internal/domain/model"
	"github.com/okian/akut/internal/domain/types"
	"github.com/okian/akut/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

const caseYAML = `
cases:
  - id: aks
    title: Chest pain
    expectedActions:
      - actionId: C_BP_MEASURE
        importance: CRITICAL
        timeTargetsSec: {green: 60, yellow: 120, red: 300}
  - id: broken
    title: Empty action id
    expectedActions:
      - actionId: ""
        importance: CRITICAL
`

func writeCases(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "cases.yaml"), []byte(caseYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := config.New()
	cfg.CasesDir = dir
	cfg.WorkerCount = 1
	return cfg
}

func TestLoadCatalog(t *testing.T) {
	convey.Convey("Given a cases directory", t, func() {
		ctx := context.Background()
		cfg := writeCases(t)

		convey.Convey("Then valid cases load and broken ones are rejected", func() {
			c, err := loadCatalog(ctx, cfg)
			convey.So(err, convey.ShouldBeNil)
			convey.So(c.Count(), convey.ShouldEqual, 1)
		})

		convey.Convey("Then a missing directory yields an empty catalog", func() {
			cfg.CasesDir = filepath.Join(cfg.CasesDir, "missing")
			c, err := loadCatalog(ctx, cfg)
			convey.So(err, convey.ShouldBeNil)
			convey.So(c.Count(), convey.ShouldEqual, 0)
		})
	})
}

func TestRouter(t *testing.T) {
	convey.Convey("Given the full application router", t, func() {
		ctx := context.Background()
		cfg := writeCases(t)
		cases, err := loadCatalog(ctx, cfg)
		convey.So(err, convey.ShouldBeNil)

		svc := app.New(append(app.FromConfig(cfg), app.WithCatalog(cases))...)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		srv := httptest.NewServer(newRouter(ctx, svc, cfg.MaxListLimit))
		defer srv.Close()

		convey.Convey("When a timeline is evaluated", func() {
			body := `{"caseId":"aks","timeline":[],"remoteEvents":[{"id":"e1","type":"DEFIB_NIBP","tRelMs":30000}]}`
			resp, err := http.Post(srv.URL+"/evaluate", "application/json", strings.NewReader(body))
			convey.So(err, convey.ShouldBeNil)
			defer resp.Body.Close()

			convey.Convey("Then the device event is graded", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
				var ev types.Evaluation
				convey.So(json.NewDecoder(resp.Body).Decode(&ev), convey.ShouldBeNil)
				convey.So(ev.Summary.Green, convey.ShouldEqual, 1)
				convey.So(ev.Summary.Score, convey.ShouldEqual, 100)
			})
		})

		convey.Convey("When a run is submitted", func() {
			body := `{"runId":"r1","ownerId":"o1","caseId":"aks","timeline":[{"id":"l1","timeMs":90000,"actionId":"C_BP_MEASURE"}]}`
			resp, err := http.Post(srv.URL+"/runs", "application/json", strings.NewReader(body))
			convey.So(err, convey.ShouldBeNil)
			resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusAccepted)

			convey.Convey("Then it becomes readable once graded", func() {
				var run model.Run
				deadline := time.Now().Add(5 * time.Second)
				for {
					r, err := http.Get(srv.URL + "/runs/r1")
					convey.So(err, convey.ShouldBeNil)
					if r.StatusCode == http.StatusOK {
						convey.So(json.NewDecoder(r.Body).Decode(&run), convey.ShouldBeNil)
						r.Body.Close()
						break
					}
					r.Body.Close()
					if time.Now().After(deadline) {
						t.Fatal("run was not graded in time")
					}
					time.Sleep(10 * time.Millisecond)
				}
				convey.So(run.Summary.Yellow, convey.ShouldEqual, 1)
				convey.So(run.Summary.Score, convey.ShouldEqual, 50)
			})
		})

		convey.Convey("Then the API docs are served", func() {
			for _, path := range []string{"/api-docs", "/openapi.yaml", "/schema/scenario", "/healthz"} {
				resp, err := http.Get(srv.URL + path)
				convey.So(err, convey.ShouldBeNil)
				resp.Body.Close()
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
			}
		})
	})
}

func TestReloadLogLevel(t *testing.T) {
	convey.Convey("Given the reload callback", t, func() {
		ctx := context.Background()
		reload := reloadLogLevel(ctx, logger.Get())
		defer func() { _ = logger.SetLevelString("info") }()

		convey.Convey("Then a valid level is applied and errors are tolerated", func() {
			cfg := config.New()
			cfg.LogLevel = "debug"
			convey.So(func() { reload(cfg, nil) }, convey.ShouldNotPanic)
			cfg.LogLevel = "loud"
			convey.So(func() { reload(cfg, nil) }, convey.ShouldNotPanic)
			convey.So(func() { reload(nil, errors.New("boom")) }, convey.ShouldNotPanic)
		})
	})
}

func TestMetricsUpdaters(t *testing.T) {
	convey.Convey("Given the background updaters", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
		convey.So(func() { startServiceMetricsUpdater(ctx, app.New()) }, convey.ShouldNotPanic)
		convey.So(updateSystemMetrics, convey.ShouldNotPanic)
	})
}
