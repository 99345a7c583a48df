package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"master-agent/internal/agent"
	"master-agent/internal/models"
	"master-agent/internal/risk"
	"master-agent/internal/supervisor"
)

type fakeReporter struct {
	agents   []supervisor.AgentSummary
	report   supervisor.RiskReport
	reported []risk.PositionReturns
	panics   bool
}

func (f *fakeReporter) ListAgents() []supervisor.AgentSummary {
	if f.panics {
		panic("reporter failure")
	}
	return f.agents
}

func (f *fakeReporter) Report(positionReturns []risk.PositionReturns) supervisor.RiskReport {
	f.reported = positionReturns
	return f.report
}

type fakePositions struct {
	positions []models.Position
	exposure  float64
}

func (f *fakePositions) Positions() []models.Position { return f.positions }
func (f *fakePositions) Exposure() float64            { return f.exposure }
func (f *fakePositions) Count() int                   { return len(f.positions) }

func newTestServer(rep Reporter, pos PositionReader) *httptest.Server {
	s := NewServer(rep, pos, zerolog.Nop())
	return httptest.NewServer(s.Router())
}

func getJSON(t *testing.T, url string, out interface{}) int {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(&fakeReporter{}, &fakePositions{})
	defer srv.Close()

	var body map[string]string
	if status := getJSON(t, srv.URL+"/health", &body); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if body["status"] != "healthy" {
		t.Fatalf("body = %v", body)
	}
}

func TestAgentsEndpoint(t *testing.T) {
	rep := &fakeReporter{agents: []supervisor.AgentSummary{
		{ID: "strategy_20250101_120000", Kind: agent.KindStrategy, Status: agent.StatusActive},
	}}
	srv := newTestServer(rep, &fakePositions{})
	defer srv.Close()

	var body []supervisor.AgentSummary
	if status := getJSON(t, srv.URL+"/agents", &body); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if len(body) != 1 || body[0].ID != "strategy_20250101_120000" {
		t.Fatalf("body = %+v", body)
	}
}

func TestPositionsEndpoint(t *testing.T) {
	pos := &fakePositions{
		positions: []models.Position{{Symbol: "BTC/USDT", Size: 1, EntryPrice: 100, Direction: models.Long}},
		exposure:  100,
	}
	srv := newTestServer(&fakeReporter{}, pos)
	defer srv.Close()

	var body struct {
		Positions []models.Position `json:"positions"`
		Exposure  float64           `json:"exposure"`
		Count     int               `json:"count"`
	}
	if status := getJSON(t, srv.URL+"/positions", &body); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if body.Count != 1 || body.Exposure != 100 || body.Positions[0].Symbol != "BTC/USDT" {
		t.Fatalf("body = %+v", body)
	}
}

func TestRiskEndpoint(t *testing.T) {
	rep := &fakeReporter{report: supervisor.RiskReport{
		Metrics: risk.Metrics{Sharpe: 1.5, PositionCount: 2},
	}}
	srv := newTestServer(rep, &fakePositions{})
	defer srv.Close()

	var body supervisor.RiskReport
	if status := getJSON(t, srv.URL+"/risk", &body); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if body.Metrics.Sharpe != 1.5 || body.Metrics.PositionCount != 2 {
		t.Fatalf("body = %+v", body)
	}
}

func TestRiskEndpointCountsOpenPositions(t *testing.T) {
	rep := &fakeReporter{}
	pos := &fakePositions{positions: []models.Position{
		{Symbol: "BTC/USDT", Size: 1, EntryPrice: 100, Direction: models.Long},
		{Symbol: "ETH/USDT", Size: 2, EntryPrice: 50, Direction: models.Short},
	}}
	srv := newTestServer(rep, pos)
	defer srv.Close()

	if status := getJSON(t, srv.URL+"/risk", nil); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if len(rep.reported) != 2 {
		t.Fatalf("reported %d position series, want 2", len(rep.reported))
	}
	if rep.reported[0].Symbol != "BTC/USDT" || rep.reported[1].Symbol != "ETH/USDT" {
		t.Fatalf("reported = %+v", rep.reported)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(&fakeReporter{}, &fakePositions{})
	defer srv.Close()

	if status := getJSON(t, srv.URL+"/metrics", nil); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	srv := newTestServer(&fakeReporter{panics: true}, &fakePositions{})
	defer srv.Close()

	var body map[string]string
	if status := getJSON(t, srv.URL+"/agents", &body); status != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", status)
	}
	if body["error"] == "" {
		t.Fatalf("body = %v", body)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(&fakeReporter{}, &fakePositions{})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/health", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
}
