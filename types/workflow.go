package types

// WorkflowKind tags the active interactive screen.
type WorkflowKind uint8

const (
	WorkflowMainMenu WorkflowKind = iota
	WorkflowStatus
	WorkflowSettings
	WorkflowSettingEdit
	WorkflowWatering
	WorkflowChat
)

func (k WorkflowKind) String() string {
	switch k {
	case WorkflowMainMenu:
		return "main_menu"
	case WorkflowStatus:
		return "status"
	case WorkflowSettings:
		return "settings"
	case WorkflowSettingEdit:
		return "setting_edit"
	case WorkflowWatering:
		return "watering"
	case WorkflowChat:
		return "chat"
	default:
		return "unknown"
	}
}

// WateringStep is the sub-state carried by WorkflowWatering.
type WateringStep uint8

const (
	WateringConfirm WateringStep = iota
	WateringInProgress
	WateringComplete
)

func (s WateringStep) String() string {
	switch s {
	case WateringConfirm:
		return "confirm"
	case WateringInProgress:
		return "in_progress"
	case WateringComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// WorkflowState is the tagged value the interactive machine dispatches on.
// Step is only meaningful when Kind is WorkflowWatering.
type WorkflowState struct {
	Kind WorkflowKind
	Step WateringStep
}

func (s WorkflowState) String() string {
	if s.Kind == WorkflowWatering {
		return s.Kind.String() + "/" + s.Step.String()
	}
	return s.Kind.String()
}

// WorkflowValue is retained on state/interactive after every transition.
type WorkflowValue struct {
	State    string `json:"state"`
	Selected int    `json:"selected"`
	TS       int64  `json:"ts_ms"`
}
