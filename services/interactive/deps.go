package interactive

import (
	"context"
	"time"

	"plantcode-go/types"
)

// Input is the consuming side of the input manager.
type Input interface {
	PollRotation() (int8, bool)
	TakeClick() bool
	TakeDoubleClick() bool
	TakeLongPress() bool
	ClearAll()
	ClearButtonOnly()
}

type Sensors interface {
	ReadSoilHumidity() (float32, error)
	ReadBatteryVoltage() (float32, error)
}

type Pump interface {
	StartTimed(power uint8, d time.Duration) error
	IsRunning() bool
	Stop()
}

// Presenter renders screens. Calls are fire-and-forget.
type Presenter interface {
	ShowMenu(title string, items []string, selected int)
	ShowStatus(v types.StatusView)
	ShowSettingEdit(v types.SettingView)
	ShowWateringConfirm(p types.WateringPlan)
	ShowWateringProgress(percent int)
	ShowWateringResult(before, after float32)
	ShowChat(message string, options []string, selected int)
	ShowLoading(message string)
	ShowError(message string)
	TriggerFullRefresh()
}

type Assistant interface {
	ChatWithOptions(ctx context.Context, text string) (reply string, options []string, err error)
}

type ConfigStore interface {
	Get() types.Config
	// Update applies fn to a copy of the configuration and persists it.
	Update(fn func(*types.Config)) error
}

type NetStatus interface {
	WiFiConnected() bool
	TimeSynced() bool
}
