package engine

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/talgya/pedsim/internal/agents"
	"github.com/talgya/pedsim/internal/geom"
	"github.com/talgya/pedsim/internal/world"
)

var testSpawn = agents.SpawnConfig{
	Radius: 0.5,
	Speed:  0.3,
	Models: []agents.Model{{Name: "walker", Scale: 1}, {Name: "tall", Scale: 1.2}},
}

func newTestManager(t *testing.T, count int) *Manager {
	t.Helper()
	w := world.Generate(world.DefaultGenConfig())
	m := NewManager(w, 11)
	m.Init(count, 11, testSpawn)
	if m.Len() == 0 {
		t.Fatal("expected pedestrians to be placed")
	}
	return m
}

func TestBucketInvariantHoldsAcrossTicks(t *testing.T) {
	m := newTestManager(t, 300)
	if err := m.CheckIndex(); err != nil {
		t.Fatalf("after init: %v", err)
	}
	changes := 0
	for tick := 0; tick < 400; tick++ {
		rep := m.NextFrame(1)
		changes += rep.PlotChanges
		if err := m.CheckIndex(); err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
	}
	if changes == 0 {
		t.Error("expected some pedestrians to change plot")
	}
}

func TestFirstFrameAssignsDestinations(t *testing.T) {
	m := newTestManager(t, 100)
	m.NextFrame(1)
	for _, p := range m.Peds() {
		if p.DestBldg < 0 {
			t.Fatalf("ssn %d: expected a destination building", p.SSN)
		}
		if m.World().PlotCity(p.DestPlot) != p.City {
			t.Errorf("ssn %d: destination plot %d outside city %d", p.SSN, p.DestPlot, p.City)
		}
	}
}

func TestSameSeedRunsAreIdentical(t *testing.T) {
	a := newTestManager(t, 200)
	b := newTestManager(t, 200)
	for tick := 0; tick < 200; tick++ {
		ra, rb := a.NextFrame(1), b.NextFrame(1)
		if ra != rb {
			t.Fatalf("tick %d: reports differ: %+v vs %+v", tick, ra, rb)
		}
	}
	for i := range a.Peds() {
		if a.Peds()[i].Pos != b.Peds()[i].Pos {
			t.Fatalf("ped %d: positions differ: %v vs %v", i, a.Peds()[i].Pos, b.Peds()[i].Pos)
		}
	}
}

func TestIdentityIsStableAcrossResorts(t *testing.T) {
	m := newTestManager(t, 200)
	seen := make(map[agents.SSN]bool)
	for _, p := range m.Peds() {
		seen[p.SSN] = true
	}
	for tick := 0; tick < 300; tick++ {
		m.NextFrame(1)
	}
	if len(m.Peds()) != len(seen) {
		t.Fatalf("expected %d pedestrians, got %d", len(seen), len(m.Peds()))
	}
	for i, p := range m.Peds() {
		if !seen[p.SSN] {
			t.Fatalf("unexpected ssn %d", p.SSN)
		}
		if ix, ok := m.PedIndex(p.SSN); !ok || ix != i {
			t.Fatalf("ssn %d: expected index %d, got %d %v", p.SSN, i, ix, ok)
		}
	}
}

func TestDestroyIsDeferredToNextTick(t *testing.T) {
	m := newTestManager(t, 200)
	m.NextFrame(1)
	victim := m.Peds()[0]
	before := m.Len()

	n := m.DestroyInRadius(victim.Pos, 0)
	if n < 1 {
		t.Fatalf("expected at least one pedestrian destroyed, got %d", n)
	}
	if m.Len() != before {
		t.Fatalf("expected removal deferred, got %d pedestrians", m.Len())
	}
	if _, err := m.Ped(victim.SSN); err != nil {
		t.Fatalf("expected tombstoned pedestrian still addressable, got %v", err)
	}

	rep := m.NextFrame(1)
	if rep.Destroyed != n || m.Len() != before-n {
		t.Fatalf("expected %d removed leaving %d, got %d leaving %d", n, before-n, rep.Destroyed, m.Len())
	}
	if _, err := m.Ped(victim.SSN); !errors.Is(err, ErrUnknownPed) {
		t.Errorf("expected ErrUnknownPed, got %v", err)
	}
	if err := m.CheckIndex(); err != nil {
		t.Errorf("after compaction: %v", err)
	}
}

func TestDestroyInRadiusClearsArea(t *testing.T) {
	m := newTestManager(t, 300)
	center := m.World().PlotBCube(0).Center()
	center.Z = 0
	if n := m.DestroyInRadius(center, 20); n == 0 {
		t.Fatal("expected pedestrians near the plot center")
	}
	m.NextFrame(1)
	// Survivors moved at most one step since the sweep.
	for _, p := range m.Peds() {
		if geom.Dist(p.Pos, center) < 20-1 {
			t.Fatalf("ssn %d survived inside the destroy radius at %v", p.SSN, p.Pos)
		}
	}
}

func TestProcSphereColl(t *testing.T) {
	m := newTestManager(t, 100)
	p := m.Peds()[0]

	normal, hit := m.ProcSphereColl(p.Pos.Add(geom.V(0.2, 0, 0)), 0.1)
	if !hit {
		t.Fatal("expected sphere to hit a pedestrian")
	}
	if math.Abs(normal.Mag()-1) > 1e-9 {
		t.Errorf("expected unit normal, got %v", normal)
	}
	if _, hit := m.ProcSphereColl(geom.V(p.Pos.X, p.Pos.Y, 1000), 1); hit {
		t.Error("expected no hit far above the pedestrians")
	}
}

func TestLineIntersectAndPick(t *testing.T) {
	m := newTestManager(t, 100)
	p := m.Peds()[5]
	top, bottom := geom.V(p.Pos.X, p.Pos.Y, 100), geom.V(p.Pos.X, p.Pos.Y, -1)

	tHit, ssn, ok := m.LineIntersect(top, bottom)
	if !ok {
		t.Fatal("expected ray to hit")
	}
	want := (100 - (p.Pos.Z + p.Radius)) / 101
	if tHit > want+1e-9 {
		t.Errorf("expected nearest hit at t <= %f, got %f", want, tHit)
	}
	hitPed, err := m.Ped(ssn)
	if err != nil {
		t.Fatal(err)
	}
	if !geom.DistXYLessThan(hitPed.Pos, p.Pos, hitPed.Radius+1e-9) {
		t.Errorf("expected hit pedestrian under the ray, got %v", hitPed.Pos)
	}

	if _, ok := m.PedAt(top, bottom); !ok {
		t.Error("expected a pick under the ray")
	}
	if _, _, ok := m.LineIntersect(geom.V(-500, -500, 100), geom.V(-500, -400, 100)); ok {
		t.Error("expected miss outside the cities")
	}
}

func TestSelectFollowsIdentity(t *testing.T) {
	m := newTestManager(t, 100)
	if err := m.Select(1 << 30); !errors.Is(err, ErrUnknownPed) {
		t.Fatalf("expected ErrUnknownPed, got %v", err)
	}
	ssn := m.Peds()[10].SSN
	if err := m.Select(ssn); err != nil {
		t.Fatal(err)
	}
	for tick := 0; tick < 100; tick++ {
		m.NextFrame(1)
	}
	p, ok := m.Selected()
	if !ok || p.SSN != ssn {
		t.Fatalf("expected selection %d, got %d %v", ssn, p.SSN, ok)
	}

	m.DestroyInRadius(p.Pos, 0)
	m.NextFrame(1)
	if _, ok := m.Selected(); ok {
		t.Error("expected selection dropped after removal")
	}
}

func TestDebugIntrospection(t *testing.T) {
	m := newTestManager(t, 100)
	for tick := 0; tick < 20; tick++ {
		m.NextFrame(1)
	}
	if _, err := m.DebugString(1 << 30); !errors.Is(err, ErrUnknownPed) {
		t.Errorf("expected ErrUnknownPed, got %v", err)
	}
	kinds := make(map[PathKind]int)
	for _, p := range m.Peds() {
		s, err := m.DebugString(p.SSN)
		if err != nil || s == "" {
			t.Fatalf("ssn %d: expected debug string, got %q %v", p.SSN, s, err)
		}
		info, err := m.DebugPath(p.SSN)
		if err != nil {
			t.Fatal(err)
		}
		kinds[info.Kind]++
		if info.Kind != PathNone && len(info.Points) < 2 {
			t.Errorf("ssn %d: expected at least 2 points for %s route, got %d", p.SSN, info.Kind, len(info.Points))
		}
	}
	if kinds[PathStraight]+kinds[PathComplete] == 0 {
		t.Errorf("expected some usable routes, got %v", kinds)
	}
}

func TestEngineWindowsReports(t *testing.T) {
	e := NewEngine()
	e.ReportEvery = 3
	var got []TickReport
	e.OnTick = func(tick uint64) TickReport {
		return TickReport{Tick: tick, Alive: 5, Collisions: 1}
	}
	e.OnReport = func(rep TickReport) { got = append(got, rep) }

	for i := 0; i < 7; i++ {
		e.Step()
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(got))
	}
	if got[1].Tick != 6 || got[1].Collisions != 3 || got[1].Alive != 5 {
		t.Errorf("expected tick 6 with 3 collisions, got %+v", got[1])
	}
}

func TestEngineSpeedChangesWhileRunning(t *testing.T) {
	e := NewEngine()
	e.Interval = time.Millisecond
	e.ReportEvery = 0
	e.OnTick = func(tick uint64) TickReport { return TickReport{Tick: tick} }

	done := make(chan struct{})
	go func() {
		e.Run()
		close(done)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for e.Tick() < 5 {
		if time.Now().After(deadline) {
			e.Stop()
			t.Fatal("expected engine to advance")
		}
		e.SetSpeed(float64(1 + e.Tick()%4))
		time.Sleep(time.Millisecond)
	}
	e.SetSpeed(0)
	paused := e.Tick()
	time.Sleep(20 * time.Millisecond)
	// At most one tick already in flight when the pause landed.
	if got := e.Tick(); got > paused+1 {
		t.Errorf("expected paused engine to hold near tick %d, got %d", paused, got)
	}
	e.Stop()
	<-done
	if e.Running() {
		t.Error("expected engine stopped")
	}
}

func TestSimulationKeepsHistory(t *testing.T) {
	m := newTestManager(t, 50)
	sim := NewSimulation(m.World(), m)
	if _, ok := sim.LastReport(); ok {
		t.Fatal("expected no report before the first tick")
	}
	for i := uint64(1); i <= 5; i++ {
		sim.Step(i)
	}
	recent := sim.Recent(10)
	if len(recent) != 5 {
		t.Fatalf("expected 5 reports, got %d", len(recent))
	}
	for i := 1; i < len(recent); i++ {
		if recent[i].Tick != recent[i-1].Tick+1 {
			t.Errorf("expected consecutive ticks, got %d then %d", recent[i-1].Tick, recent[i].Tick)
		}
	}
	last, _ := sim.LastReport()
	if last != recent[4] {
		t.Errorf("expected last report to match newest, got %+v", last)
	}
	sim.Read(func(m *Manager) {
		if m.Len() != last.Alive {
			t.Errorf("expected %d alive, got %d", last.Alive, m.Len())
		}
	})
}
