package interactive

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

type fakeInput struct {
	rot                     []int8
	click, double, long     bool
	clearAll, clearBtnCalls int
}

func (f *fakeInput) PollRotation() (int8, bool) {
	if len(f.rot) == 0 {
		return 0, false
	}
	v := f.rot[0]
	f.rot = f.rot[1:]
	return v, true
}

func take(flag *bool) bool {
	v := *flag
	*flag = false
	return v
}

func (f *fakeInput) TakeClick() bool       { return take(&f.click) }
func (f *fakeInput) TakeDoubleClick() bool { return take(&f.double) }
func (f *fakeInput) TakeLongPress() bool   { return take(&f.long) }

func (f *fakeInput) ClearAll() {
	f.rot = nil
	f.clearAll++
	f.ClearButtonOnly()
}

func (f *fakeInput) ClearButtonOnly() {
	f.click, f.double, f.long = false, false, false
	f.clearBtnCalls++
}

type fakeSensors struct {
	humidity float32
	battery  float32
	err      error
}

func (f *fakeSensors) ReadSoilHumidity() (float32, error)   { return f.humidity, f.err }
func (f *fakeSensors) ReadBatteryVoltage() (float32, error) { return f.battery, f.err }

type fakePump struct {
	running  bool
	power    uint8
	duration time.Duration
	starts   int
	stops    int
	err      error
}

func (f *fakePump) StartTimed(power uint8, d time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.running, f.power, f.duration = true, power, d
	f.starts++
	return nil
}

func (f *fakePump) IsRunning() bool { return f.running }
func (f *fakePump) Stop() {
	f.running = false
	f.stops++
}

type fakeConfig struct {
	cfg   types.Config
	err   error
	saves int
}

func (f *fakeConfig) Get() types.Config { return f.cfg }

func (f *fakeConfig) Update(fn func(*types.Config)) error {
	if f.err != nil {
		return f.err
	}
	c := f.cfg
	fn(&c)
	f.cfg = c
	f.saves++
	return nil
}

type fakeAssistant struct {
	asked   []string
	reply   string
	options []string
	err     error
}

func (f *fakeAssistant) ChatWithOptions(_ context.Context, text string) (string, []string, error) {
	f.asked = append(f.asked, text)
	return f.reply, f.options, f.err
}

type fixture struct {
	in   *fakeInput
	sens *fakeSensors
	pump *fakePump
	cfg  *fakeConfig
	ai   *fakeAssistant
	ui   *uitest.Recorder
	clk  clockwork.FakeClock
	m    *Machine
}

func newFixture(opts ...func(*Options)) *fixture {
	f := &fixture{
		in:   &fakeInput{},
		sens: &fakeSensors{humidity: 2500, battery: 3.9},
		pump: &fakePump{},
		cfg:  &fakeConfig{cfg: types.DefaultConfig()},
		ai:   &fakeAssistant{},
		ui:   &uitest.Recorder{},
		clk:  clockwork.NewFakeClock(),
	}
	o := Options{Clock: f.clk}
	for _, fn := range opts {
		fn(&o)
	}
	f.m = New(Deps{
		Input:     f.in,
		Sensors:   f.sens,
		Pump:      f.pump,
		Presenter: f.ui,
		Assistant: f.ai,
		Config:    f.cfg,
	}, o)
	f.m.Enter(context.Background())
	f.tick()
	return f
}

func (f *fixture) tick() { f.m.Tick(context.Background()) }

func (f *fixture) rotate(steps ...int8) {
	for _, s := range steps {
		f.in.rot = append(f.in.rot, s)
		f.tick()
	}
}

func (f *fixture) click() {
	f.in.click = true
	f.tick()
	f.tick()
}

func (f *fixture) doubleClick() {
	f.in.double = true
	f.tick()
	f.tick()
}

func (f *fixture) expect(t *testing.T, want types.WorkflowState) {
	t.Helper()
	if got := f.m.State(); got != want {
		t.Fatalf("state = %v, want %v", got, want)
	}
}

func TestEnter_StartsAtMainMenuIndexZero(t *testing.T) {
	f := newFixture()
	f.expect(t, stMainMenu)
	if f.m.Selected() != 0 || f.ui.MenuSelected != 0 {
		t.Fatalf("selected = %d / %d", f.m.Selected(), f.ui.MenuSelected)
	}
	if f.in.clearAll != 1 {
		t.Fatalf("ClearAll calls = %d", f.in.clearAll)
	}
	if f.ui.FullRefresh != 1 {
		t.Fatalf("full refreshes = %d", f.ui.FullRefresh)
	}
}

func TestMainMenu_RotationWraps(t *testing.T) {
	f := newFixture()
	for _, want := range []int{1, 2, 3, 0} {
		f.rotate(1)
		f.tick()
		if f.m.Selected() != want || f.ui.MenuSelected != want {
			t.Fatalf("selected = %d (shown %d), want %d", f.m.Selected(), f.ui.MenuSelected, want)
		}
	}
	f.rotate(-1)
	if f.m.Selected() != 3 {
		t.Fatalf("reverse wrap = %d", f.m.Selected())
	}
}

func TestMainMenu_ClickEntersSelectedScreen(t *testing.T) {
	targets := []types.WorkflowState{stStatus, stSettings, stWatering, stChat}
	for i, want := range targets {
		f := newFixture()
		for j := 0; j < i; j++ {
			f.rotate(1)
		}
		f.click()
		f.expect(t, want)
	}
}

func TestSwitchState_KeepsQueuedRotation(t *testing.T) {
	f := newFixture()
	// the menu consumes one step per tick; the second step outlives the switch
	f.in.rot = []int8{1, 1}
	f.in.click = true
	f.tick()
	f.expect(t, stSettings)
	if f.in.clearAll != 1 {
		t.Fatal("a state switch must not clear rotation")
	}
	if len(f.in.rot) != 1 {
		t.Fatalf("queued rotation = %v", f.in.rot)
	}
	f.tick()
	if f.m.Selected() != 1 {
		t.Fatalf("settings index = %d, rotation lost across switch", f.m.Selected())
	}
}

func TestMainMenu_DoubleClickIgnoredInProduction(t *testing.T) {
	f := newFixture()
	f.doubleClick()
	f.expect(t, stMainMenu)
	if f.m.ShouldExit() {
		t.Fatal("exit requested without harness option")
	}

	h := newFixture(func(o *Options) { o.ExitOnMainMenuDoubleClick = true })
	h.doubleClick()
	if !h.m.ShouldExit() {
		t.Fatal("harness exit not requested")
	}
}

func TestStatus_ShowsReadingsAndReturns(t *testing.T) {
	f := newFixture()
	f.click()
	f.expect(t, stStatus)
	if f.ui.Status.HumidityRaw != 2500 || f.ui.Status.Battery != 3.9 {
		t.Fatalf("status = %+v", f.ui.Status)
	}
	if f.ui.Status.HumidityPct < 6 || f.ui.Status.HumidityPct > 7 {
		t.Fatalf("humidity pct = %v", f.ui.Status.HumidityPct)
	}
	f.click()
	f.expect(t, stStatus)
	f.doubleClick()
	f.expect(t, stMainMenu)
}

func TestSettings_RotationWrapsAndDoubleClickReturns(t *testing.T) {
	f := newFixture()
	f.rotate(1)
	f.click()
	f.expect(t, stSettings)

	f.rotate(-1)
	f.tick()
	if f.m.Selected() != 5 || f.ui.MenuSelected != 5 {
		t.Fatalf("selected = %d (shown %d), want 5", f.m.Selected(), f.ui.MenuSelected)
	}
	if f.ui.MenuTitle != "Settings" {
		t.Fatalf("menu title = %q", f.ui.MenuTitle)
	}
	f.rotate(1)
	f.tick()
	if f.m.Selected() != 0 || f.ui.MenuSelected != 0 {
		t.Fatalf("selected = %d (shown %d), want 0", f.m.Selected(), f.ui.MenuSelected)
	}

	f.doubleClick()
	f.expect(t, stMainMenu)
	if f.cfg.saves != 0 {
		t.Fatal("leaving settings must not save")
	}
}

func TestSettingEdit_ClampsAtMax(t *testing.T) {
	f := newFixture()
	f.cfg.cfg.Watering.Threshold = 3990
	f.rotate(1)
	f.click()
	f.expect(t, stSettings)
	f.click()
	f.expect(t, stSettingEdit)
	if f.ui.Setting.Value != 3990 {
		t.Fatalf("initial preview = %d", f.ui.Setting.Value)
	}

	f.rotate(1)
	f.tick()
	if f.ui.Setting.Value != 4000 {
		t.Fatalf("preview = %d, want clamp at 4000", f.ui.Setting.Value)
	}
	f.rotate(1)
	f.tick()
	if f.ui.Setting.Value != 4000 {
		t.Fatalf("preview = %d after second step", f.ui.Setting.Value)
	}
	if f.cfg.cfg.Watering.Threshold != 3990 {
		t.Fatal("preview leaked into config before confirming")
	}

	f.click()
	f.expect(t, stSettings)
	if f.cfg.cfg.Watering.Threshold != 4000 || f.cfg.saves != 1 {
		t.Fatalf("threshold = %d saves = %d", f.cfg.cfg.Watering.Threshold, f.cfg.saves)
	}
}

func TestSettingEdit_DoubleClickDiscards(t *testing.T) {
	f := newFixture()
	f.rotate(1)
	f.click()
	f.rotate(1) // Pump Power
	f.click()
	f.expect(t, stSettingEdit)
	f.rotate(-1, -1)
	f.tick()
	if f.ui.Setting.Value != 180 {
		t.Fatalf("preview = %d", f.ui.Setting.Value)
	}
	f.doubleClick()
	f.expect(t, stSettings)
	if f.cfg.cfg.Watering.Power != 200 || f.cfg.saves != 0 {
		t.Fatal("cancelled edit was persisted")
	}
}

func TestSettingEdit_SaveFailureReturnsToMenuAfterTimeout(t *testing.T) {
	f := newFixture()
	f.cfg.err = &errcode.E{C: errcode.ConfigSaveFailed, Op: "config.save", Msg: "flash write failed"}
	f.rotate(1)
	f.click()
	f.click()
	f.click()
	if !f.m.ShowingError() || f.ui.Error != "flash write failed" {
		t.Fatalf("error screen = %v %q", f.m.ShowingError(), f.ui.Error)
	}
	f.expect(t, stSettingEdit)

	f.in.click = true
	f.in.rot = []int8{1}
	f.clk.Advance(ErrorTimeout - time.Millisecond)
	f.tick()
	f.expect(t, stSettingEdit)
	if len(f.in.rot) != 0 || f.in.click {
		t.Fatal("input during the error screen must be discarded")
	}

	f.clk.Advance(time.Millisecond)
	f.tick()
	f.expect(t, stMainMenu)
	if f.m.ShowingError() {
		t.Fatal("error screen still active")
	}
	f.tick()
	if f.ui.MenuTitle != "Main Menu" || f.ui.MenuSelected != 0 {
		t.Fatalf("menu not redrawn: %q %d", f.ui.MenuTitle, f.ui.MenuSelected)
	}
}

func TestWatering_FullFlow(t *testing.T) {
	f := newFixture()
	f.rotate(1, 1)
	f.click()
	f.expect(t, stWatering)
	if f.ui.Plan.Power != 200 || f.ui.Plan.Duration != 3*time.Second || f.ui.Plan.Before != 2500 {
		t.Fatalf("plan = %+v", f.ui.Plan)
	}

	f.click()
	inProgress := types.WorkflowState{Kind: types.WorkflowWatering, Step: types.WateringInProgress}
	f.expect(t, inProgress)
	if f.pump.starts != 1 || f.pump.power != 200 || f.pump.duration != 3*time.Second {
		t.Fatalf("pump = %+v", f.pump)
	}

	f.clk.Advance(1500 * time.Millisecond)
	f.tick()
	if f.ui.Progress != 50 {
		t.Fatalf("progress = %d", f.ui.Progress)
	}

	f.sens.humidity = 1800
	f.pump.running = false
	f.tick()
	f.expect(t, types.WorkflowState{Kind: types.WorkflowWatering, Step: types.WateringComplete})
	if f.ui.Before != 2500 || f.ui.After != 1800 {
		t.Fatalf("result = %v -> %v", f.ui.Before, f.ui.After)
	}

	f.click()
	f.expect(t, types.WorkflowState{Kind: types.WorkflowWatering, Step: types.WateringComplete})
	f.doubleClick()
	f.expect(t, stMainMenu)
}

func TestWatering_ConfirmDoubleClickCancels(t *testing.T) {
	f := newFixture()
	f.rotate(1, 1)
	f.click()
	f.doubleClick()
	f.expect(t, stMainMenu)
	if f.pump.starts != 0 {
		t.Fatal("pump started on cancel")
	}
}

func TestWatering_PumpBusyShowsError(t *testing.T) {
	f := newFixture()
	f.pump.err = &errcode.E{C: errcode.PumpBusy, Op: "pump.start", Msg: "pump already running"}
	f.rotate(1, 1)
	f.click()
	f.click()
	if !f.m.ShowingError() || f.ui.Error != "pump already running" {
		t.Fatalf("error = %q", f.ui.Error)
	}
}

func TestExit_StopsManualWatering(t *testing.T) {
	f := newFixture()
	f.rotate(1, 1)
	f.click()
	f.click()
	f.m.Exit(context.Background())
	if f.pump.stops != 1 || f.pump.running {
		t.Fatalf("pump stops = %d running = %v", f.pump.stops, f.pump.running)
	}
}

func TestChat_ReplyReplacesOptions(t *testing.T) {
	f := newFixture()
	f.ai.reply = "Soil is a bit dry."
	f.ai.options = []string{"Water it", "Wait", "Why?", "Something else"}
	f.rotate(1, 1, 1)
	f.click()
	f.expect(t, stChat)
	if f.ui.ChatMessage != chatGreeting || len(f.ui.ChatOptions) != 3 {
		t.Fatalf("chat = %q %v", f.ui.ChatMessage, f.ui.ChatOptions)
	}

	f.rotate(1)
	f.click()
	if len(f.ai.asked) != 1 || f.ai.asked[0] != defaultChatOptions[1] {
		t.Fatalf("asked = %v", f.ai.asked)
	}
	if f.ui.Loading == "" {
		t.Fatal("no loading screen before the request")
	}
	if f.ui.ChatMessage != "Soil is a bit dry." || len(f.ui.ChatOptions) != maxChatOptions || f.ui.ChatSelected != 0 {
		t.Fatalf("chat = %q %v %d", f.ui.ChatMessage, f.ui.ChatOptions, f.ui.ChatSelected)
	}
	f.expect(t, stChat)

	f.doubleClick()
	f.expect(t, stMainMenu)
}

func TestChat_FailureAutoReturns(t *testing.T) {
	f := newFixture()
	f.ai.err = errors.New("dial tcp: timeout")
	f.rotate(1, 1, 1)
	f.click()
	f.click()
	if !f.m.ShowingError() || f.ui.Error != "dial tcp: timeout" {
		t.Fatalf("error = %q", f.ui.Error)
	}
	f.clk.Advance(ErrorTimeout)
	f.tick()
	f.expect(t, stMainMenu)
}

func TestChat_NoAssistantConfigured(t *testing.T) {
	f := newFixture()
	f.m.d.Assistant = nil
	f.rotate(1, 1, 1)
	f.click()
	f.click()
	if f.ui.Error != "assistant not configured" {
		t.Fatalf("error = %q", f.ui.Error)
	}
}

func TestUnknownStateResetsToMainMenu(t *testing.T) {
	f := newFixture()
	f.rotate(1)
	f.m.state = types.WorkflowState{Kind: types.WorkflowKind(42)}
	f.tick()
	f.expect(t, stMainMenu)
	if f.m.Selected() != 0 {
		t.Fatalf("menu not re-entered, selected = %d", f.m.Selected())
	}
}

func TestTransitionsPublishRetainedState(t *testing.T) {
	b := bus.NewBus(8)
	f := newFixture(func(o *Options) { o.Conn = b.NewConnection("interactive") })
	f.rotate(1)
	f.click()

	sub := b.NewConnection("test").Subscribe(TopicState)
	select {
	case msg := <-sub.Channel():
		v := msg.Payload.(types.WorkflowValue)
		if v.State != "settings" || v.Selected != 0 {
			t.Fatalf("retained = %+v", v)
		}
	case <-time.After(time.Second):
		t.Fatal("no retained state/interactive")
	}
}
