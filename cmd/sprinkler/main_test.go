package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sprinkler/internal/types"
)

// Monday, 12 January 2026.
var monday = time.Date(2026, time.January, 12, 6, 0, 0, 0, time.UTC)

// stepClock advances on every Sleep instead of blocking.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.now = c.now.Add(d)
	}
	return nil
}

type valveCall struct {
	Valve int
	Dur   int
	At    time.Time
}

// garden fakes the rain sensor, the forecast API and the valve controller
// behind one chi router.
type garden struct {
	clock *stepClock

	mu          sync.Mutex
	rain        string
	pop         string
	forecastErr bool
	valveStatus int
	calls       []valveCall
	sensorHits  int
	runIDs      []string
}

func newGarden(clock *stepClock) *garden {
	return &garden{clock: clock, rain: "Not Detected", pop: "10", valveStatus: http.StatusOK}
}

func (g *garden) router() http.Handler {
	r := chi.NewRouter()
	r.Get("/sensor", func(w http.ResponseWriter, _ *http.Request) {
		g.mu.Lock()
		defer g.mu.Unlock()
		g.sensorHits++
		fmt.Fprintf(w, "<html><body><p>Rain: %s</p></body></html>", g.rain)
	})
	r.Get("/api/{key}/forecast/q/{state}/{zip}.json", func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.forecastErr || chi.URLParam(r, "key") != "wu_key" {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"forecast":{"txt_forecast":{"forecastday":[{"period":0,"pop":"0"},{"period":1,"pop":%q}]}}}`, g.pop)
	})
	r.Get("/valve", func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		defer g.mu.Unlock()
		valve, _ := strconv.Atoi(r.URL.Query().Get("valve"))
		dur, _ := strconv.Atoi(r.URL.Query().Get("dur"))
		g.calls = append(g.calls, valveCall{Valve: valve, Dur: dur, At: g.clock.Now()})
		g.runIDs = append(g.runIDs, r.Header.Get("X-Run-ID"))
		w.WriteHeader(g.valveStatus)
	})
	return r
}

type harness struct {
	garden *garden
	clock  *stepClock
	srv    *httptest.Server
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{clock: &stepClock{now: monday}}
	h.garden = newGarden(h.clock)
	h.srv = httptest.NewServer(h.garden.router())
	t.Cleanup(h.srv.Close)

	for _, k := range []string{"SCHEDULE_PATH", "DRY_RUN", "MAX_SESSION_DURATION", "INTER_SESSION_DELAY",
		"FORECAST_POP_LIMIT", "PUSHGATEWAY_URL", "HTTP_USER_AGENT", "LOG_LEVEL"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	t.Setenv("APP_ENV", "local")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("TZ_NAME", "UTC")
	t.Setenv("HTTP_TIMEOUT", "2s")
	t.Setenv("METRICS_BACKEND", "none")
	t.Setenv("RAIN_SENSOR_URL", h.srv.URL+"/sensor")
	t.Setenv("FORECAST_ENABLED", "true")
	t.Setenv("FORECAST_BASE_URL", h.srv.URL)
	t.Setenv("WUNDERGROUND_API_KEY", "wu_key")
	t.Setenv("FORECAST_STATE", "CA")
	t.Setenv("FORECAST_ZIP", "94043")
	return h
}

func (h *harness) writeSchedule(t *testing.T, reference string, lines ...string) string {
	t.Helper()
	var b bytes.Buffer
	b.WriteString("# test schedule\n")
	b.WriteString(reference + "\n")
	for _, l := range lines {
		fmt.Fprintf(&b, l+"\n", h.srv.URL)
	}
	path := filepath.Join(t.TempDir(), "schedule.txt")
	require.NoError(t, os.WriteFile(path, b.Bytes(), 0o600))
	return path
}

func (h *harness) run(args ...string) int {
	return run(context.Background(), args, &h.stdout, &h.stderr, h.clock)
}

const everyDay = "Mon,Tue,Wed,Thu,Fri,Sat,Sun"

func TestRun_AdjustsAndFires(t *testing.T) {
	h := newHarness(t)
	path := h.writeSchedule(t, `{"Jan": 0.1, "Jul": 0.9}`, "lawn valve 3; 10 min; "+everyDay+"; %s/valve")

	code := h.run(path)

	require.Equal(t, exitOK, code, h.stdout.String()+h.stderr.String())
	require.Len(t, h.garden.calls, 1)
	assert.Equal(t, valveCall{Valve: 3, Dur: 66, At: monday}, h.garden.calls[0])
	assert.NotEmpty(t, h.garden.runIDs[0], "run id header is sent")
	assert.Contains(t, h.stdout.String(), "run_id="+h.garden.runIDs[0])
}

func TestRun_OverflowIsSplitWithCooldown(t *testing.T) {
	h := newHarness(t)
	path := h.writeSchedule(t, `{"Jan": 1}`, "beds valve 4; 700 sec; "+everyDay+"; %s/valve")

	require.Equal(t, exitOK, h.run(path))

	require.Len(t, h.garden.calls, 3)
	assert.Equal(t, []valveCall{
		{Valve: 4, Dur: 300, At: monday},
		{Valve: 4, Dur: 300, At: monday.Add(1500 * time.Second)},
		{Valve: 4, Dur: 100, At: monday.Add(3000 * time.Second)},
	}, h.garden.calls)
}

func TestRun_SchedulePathFromEnv(t *testing.T) {
	h := newHarness(t)
	t.Setenv("SCHEDULE_PATH", h.writeSchedule(t, `{"Jan": 1}`, "lawn valve 1; 1 min; Mon; %s/valve"))

	require.Equal(t, exitOK, h.run())
	assert.Len(t, h.garden.calls, 1)
}

func TestRun_InactiveDayDoesNotFire(t *testing.T) {
	h := newHarness(t)
	path := h.writeSchedule(t, `{"Jan": 1}`, "lawn valve 1; 10 min; Tue,Thu; %s/valve")

	require.Equal(t, exitOK, h.run(path))
	assert.Empty(t, h.garden.calls)
	assert.Contains(t, h.stdout.String(), "no watering today")
}

func TestRun_RainSuppresses(t *testing.T) {
	tests := []struct {
		name  string
		setup func(g *garden)
	}{
		{"sensor detects rain", func(g *garden) { g.rain = "Detected" }},
		{"forecast pop 50", func(g *garden) { g.pop = "50" }},
		{"sensor wet while forecast is down", func(g *garden) { g.rain = "Detected"; g.forecastErr = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			tt.setup(h.garden)
			path := h.writeSchedule(t, `{"Jan": 1}`, "lawn valve 1; 10 min; "+everyDay+"; %s/valve")

			require.Equal(t, exitOK, h.run(path))
			assert.Empty(t, h.garden.calls)
			assert.Contains(t, h.stdout.String(), "watering suppressed")
		})
	}
}

func TestRun_ForecastDownStillWaters(t *testing.T) {
	h := newHarness(t)
	h.garden.forecastErr = true
	path := h.writeSchedule(t, `{"Jan": 1}`, "lawn valve 1; 1 min; "+everyDay+"; %s/valve")

	require.Equal(t, exitOK, h.run(path))
	assert.Len(t, h.garden.calls, 1)
	assert.Contains(t, h.stdout.String(), "could not get weather forecast")
}

func TestRun_BothSourcesDownStillWaters(t *testing.T) {
	h := newHarness(t)
	h.garden.forecastErr = true
	t.Setenv("RAIN_SENSOR_URL", "http://127.0.0.1:1/")
	path := h.writeSchedule(t, `{"Jan": 1}`, "lawn valve 1; 1 min; "+everyDay+"; %s/valve")

	require.Equal(t, exitOK, h.run(path))
	assert.Len(t, h.garden.calls, 1)
}

func TestRun_ValveFailureIsSoft(t *testing.T) {
	h := newHarness(t)
	h.garden.valveStatus = http.StatusInternalServerError
	path := h.writeSchedule(t, `{"Jan": 1}`,
		"lawn valve 1; 1 min; "+everyDay+"; %s/valve",
		"beds valve 2; 1 min; "+everyDay+"; %s/valve",
	)

	require.Equal(t, exitOK, h.run(path))
	assert.Len(t, h.garden.calls, 2)
	assert.Contains(t, h.stdout.String(), "valve trigger failed")
}

func TestRun_DryRun(t *testing.T) {
	h := newHarness(t)
	path := h.writeSchedule(t, `{"Jan": 1}`, "lawn valve 1; 1 min; "+everyDay+"; %s/valve")

	require.Equal(t, exitOK, h.run("-dry-run", path))
	assert.Empty(t, h.garden.calls)
	assert.Contains(t, h.stdout.String(), "valve=1&dur=60")
}

func TestRun_FatalErrors(t *testing.T) {
	tests := []struct {
		name      string
		reference string
		line      string
		want      string
	}{
		{"zero peak", `{"Jan": 0, "Jul": 0}`, "lawn valve 1; 10 min; " + everyDay + "; %s/valve", "reference_peak_zero"},
		{"missing month", `{"Jul": 0.9}`, "lawn valve 1; 10 min; " + everyDay + "; %s/valve", "reference_rate_missing"},
		{"malformed line", `{"Jan": 1}`, "lawn valve 1; ten min; " + everyDay + "; %s/valve", "schedule_malformed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			path := h.writeSchedule(t, tt.reference, tt.line)

			assert.Equal(t, exitFatal, h.run(path))
			assert.Empty(t, h.garden.calls)
			assert.Zero(t, h.garden.sensorHits, "no network call before the schedule is valid")
			assert.Contains(t, h.stdout.String(), tt.want)
		})
	}
}

func TestRun_MissingScheduleFile(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, exitFatal, h.run(filepath.Join(t.TempDir(), "missing.txt")))
}

func TestRun_InvalidConfig(t *testing.T) {
	h := newHarness(t)
	t.Setenv("LOG_FORMAT", "xml")

	assert.Equal(t, exitFatal, h.run("schedule.txt"))
	assert.Contains(t, h.stderr.String(), "loading configuration")
}

func TestRun_Usage(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, exitUsage, h.run(), "no schedule path")
	assert.Equal(t, exitUsage, h.run("a.txt", "b.txt"), "too many arguments")
	assert.Equal(t, exitUsage, h.run("-bogus"), "unknown flag")
	assert.Contains(t, h.stderr.String(), "Usage:")
}

func TestRun_Version(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, exitOK, h.run("-version"))
	assert.Contains(t, h.stdout.String(), "sprinkler dev")
}

func TestRun_Interrupted(t *testing.T) {
	h := newHarness(t)
	path := h.writeSchedule(t, `{"Jan": 1}`, "lawn valve 1; 1 min; "+everyDay+"; %s/valve")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	code := run(ctx, []string{path}, &h.stdout, &h.stderr, h.clock)

	assert.Equal(t, exitFatal, code)
	assert.Empty(t, h.garden.calls)
}

func TestExitStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"completed", nil, exitOK},
		{"malformed schedule", types.NewAppError(types.ErrCodeScheduleMalformed, "line 2", nil), exitFatal},
		{"zero peak", fmt.Errorf("adjust: %w", types.NewAppError(types.ErrCodeReferencePeakZero, "peak", nil)), exitFatal},
		{"invalid config", types.NewAppError(types.ErrCodeConfigInvalid, "bad", nil), exitFatal},
		{"valve unavailable", types.NewAppError(types.ErrCodeUpstreamValve, "down", nil), exitOK},
		{"circuit open", types.NewAppError(types.ErrCodeUpstreamCircuitOpen, "open", nil), exitOK},
		{"interrupted", context.Canceled, exitFatal},
		{"plain error", errors.New("boom"), exitFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitStatus(tt.err))
		})
	}
}
