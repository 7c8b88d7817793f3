package runmode

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"plantcode-go/bus"
	"plantcode-go/errcode"
	"plantcode-go/services/ui/uitest"
	"plantcode-go/types"
)

type fakeSensors struct {
	humidity float32
	battery  float32
	err      error
	reads    int
}

func (f *fakeSensors) ReadSoilHumidity() (float32, error) {
	f.reads++
	return f.humidity, f.err
}

func (f *fakeSensors) ReadBatteryVoltage() (float32, error) { return f.battery, f.err }

type fakePump struct {
	running bool
	power   uint8
	d       time.Duration
	starts  int
	stops   int
	err     error
}

func (f *fakePump) StartTimed(power uint8, d time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.running, f.power, f.d = true, power, d
	f.starts++
	return nil
}

func (f *fakePump) IsRunning() bool { return f.running }

func (f *fakePump) Stop() {
	f.running = false
	f.stops++
}

type staticConfig struct{ cfg types.Config }

func (s staticConfig) Get() types.Config { return s.cfg }

type fixture struct {
	clk    clockwork.FakeClock
	sens   *fakeSensors
	pump   *fakePump
	rec    *uitest.Recorder
	screen []bool
	conn   *bus.Connection
	m      *Mode
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clk:  clockwork.NewFakeClock(),
		sens: &fakeSensors{humidity: 1500, battery: 3.9},
		pump: &fakePump{},
		rec:  &uitest.Recorder{},
	}
	b := bus.NewBus(8, "+", "#")
	f.conn = b.NewConnection("test")
	f.m = New(Deps{
		Sensors:   f.sens,
		Pump:      f.pump,
		Presenter: f.rec,
		Config:    staticConfig{types.DefaultConfig()},
	}, Options{
		Clock:       f.clk,
		Conn:        b.NewConnection("run"),
		ScreenPower: func(on bool) { f.screen = append(f.screen, on) },
	})
	f.m.Enter(context.Background())
	return f
}

// step advances one check interval and ticks.
func (f *fixture) step() {
	f.clk.Advance(CheckInterval)
	f.m.Tick(context.Background())
}

func TestEnter_FullDashboardAndScreenOn(t *testing.T) {
	f := newFixture(t)
	if len(f.screen) != 1 || !f.screen[0] {
		t.Fatalf("screen power calls=%v", f.screen)
	}
	if f.rec.Last() != "ShowDashboard full=true" {
		t.Fatalf("last=%q", f.rec.Last())
	}
	d := f.rec.Dashboard
	if d.HumidityPct != 68.75 || d.ThresholdPct != 37.5 || d.LastWatering != "N/A" || d.Status != statusMonitoring {
		t.Fatalf("dashboard=%+v", d)
	}

	sub := f.conn.Subscribe(TopicRun)
	select {
	case m := <-sub.Channel():
		if v := m.Payload.(types.RunValue); v.Waterings != 0 || !m.Retained {
			t.Fatalf("run value=%+v", v)
		}
	case <-time.After(time.Second):
		t.Fatal("state/run not retained")
	}
}

func TestTick_WaitsForInterval(t *testing.T) {
	f := newFixture(t)
	reads := f.sens.reads
	f.clk.Advance(CheckInterval - time.Millisecond)
	f.m.Tick(context.Background())
	if f.sens.reads != reads {
		t.Fatal("checked before the interval elapsed")
	}
	f.clk.Advance(time.Millisecond)
	f.m.Tick(context.Background())
	if f.sens.reads != reads+1 {
		t.Fatal("no check at the interval")
	}
}

func TestWatersWhenDry(t *testing.T) {
	f := newFixture(t)
	f.sens.humidity = 2500
	f.step()
	if f.pump.starts != 1 || f.pump.power != 200 || f.pump.d != 3*time.Second {
		t.Fatalf("pump=%+v", f.pump)
	}
	if st := f.m.Status(); st.Waterings != 1 || st.LastWaterTS == 0 {
		t.Fatalf("status=%+v", st)
	}
	if !f.rec.Dashboard.Pumping || f.rec.Dashboard.Status != statusWatering {
		t.Fatalf("dashboard=%+v", f.rec.Dashboard)
	}
}

func TestWetSoilDoesNotWater(t *testing.T) {
	f := newFixture(t)
	f.sens.humidity = 2000 // equal to threshold
	f.step()
	if f.pump.starts != 0 {
		t.Fatal("watered at threshold")
	}
}

func TestMinIntervalBetweenWaterings(t *testing.T) {
	f := newFixture(t)
	f.sens.humidity = 2500
	f.step()
	f.pump.running = false

	f.step()
	if f.pump.starts != 1 {
		t.Fatal("watered again inside the minimum interval")
	}

	f.clk.Advance(time.Hour)
	f.m.Tick(context.Background())
	if f.pump.starts != 2 {
		t.Fatalf("starts=%d after the interval", f.pump.starts)
	}
	if f.rec.Dashboard.LastWatering != "0s ago" {
		t.Fatalf("last=%q", f.rec.Dashboard.LastWatering)
	}
}

func TestDashboardOnlyOnChange(t *testing.T) {
	f := newFixture(t)
	n := f.rec.Count("ShowDashboard")

	f.step()
	if f.rec.Count("ShowDashboard") != n {
		t.Fatal("redrawn without a change")
	}
	f.sens.humidity = 1550 // 3 %
	f.step()
	if f.rec.Count("ShowDashboard") != n {
		t.Fatal("redrawn for a small humidity change")
	}
	f.sens.humidity = 1600 // 6 % from what is shown
	f.step()
	if f.rec.Count("ShowDashboard") != n+1 {
		t.Fatal("no redraw for a large humidity change")
	}
	f.sens.battery = 3.7
	f.step()
	if f.rec.Count("ShowDashboard") != n+2 {
		t.Fatal("no redraw for a battery change")
	}
}

func TestFullRefreshEveryTenPartials(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < PartialRefreshLimit+1; i++ {
		if i%2 == 0 {
			f.sens.humidity = 1700
		} else {
			f.sens.humidity = 1500
		}
		f.step()
	}
	if got := f.rec.Count("ShowDashboard full=false"); got != PartialRefreshLimit {
		t.Fatalf("partials=%d", got)
	}
	if got := f.rec.Count("ShowDashboard full=true"); got != 2 {
		t.Fatalf("full=%d", got)
	}
}

func TestFullRefreshAfterHalfHour(t *testing.T) {
	f := newFixture(t)
	f.clk.Advance(FullRefreshInterval)
	f.sens.humidity = 1700
	f.m.Tick(context.Background())
	if f.rec.Last() != "ShowDashboard full=true" {
		t.Fatalf("last=%q", f.rec.Last())
	}
}

func TestForceWater(t *testing.T) {
	f := newFixture(t)
	if err := f.m.ForceWater(); err != nil {
		t.Fatal(err)
	}
	if f.pump.starts != 1 {
		t.Fatal("force did not water wet soil")
	}

	f.pump.err = &errcode.E{C: errcode.PumpBusy}
	if err := f.m.ForceWater(); errcode.Of(err) != errcode.PumpBusy {
		t.Fatalf("err=%v", err)
	}
}

func TestSensorErrorSkipsWatering(t *testing.T) {
	f := newFixture(t)
	f.sens.humidity = 3000
	f.sens.err = errors.New("adc")
	f.step()
	if f.pump.starts != 0 {
		t.Fatal("watered without a reading")
	}
	if f.rec.Dashboard.Status != statusSensorErr {
		t.Fatalf("status=%q", f.rec.Dashboard.Status)
	}
}

func TestExit_StopsPumpAndScreen(t *testing.T) {
	f := newFixture(t)
	f.m.Exit(context.Background())
	if f.pump.stops != 1 {
		t.Fatal("pump not stopped")
	}
	if len(f.screen) != 2 || f.screen[1] {
		t.Fatalf("screen power calls=%v", f.screen)
	}
}
