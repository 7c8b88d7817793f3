// Package ui renders the device screens: Screen draws them with tinyfont on
// any drivers.Displayer, LogPresenter only logs them.
package ui

import (
	"fmt"

	"plantcode-go/types"
	"plantcode-go/x/mathx"
	"plantcode-go/x/strx"
)

// page is one screen worth of text. sel is the highlighted line (-1 for
// none) and bar a progress percentage (-1 for none).
type page struct {
	title string
	lines []string
	sel   int
	bar   int
}

func textPage(title string, lines ...string) page {
	return page{title: title, lines: lines, sel: -1, bar: -1}
}

func menuPage(title string, items []string, sel int) page {
	p := textPage(title, items...)
	p.sel = sel
	return p
}

func statusPage(v types.StatusView) page {
	return textPage("Status",
		fmt.Sprintf("Soil: %.0f (%.0f%%)", v.HumidityRaw, v.HumidityPct),
		fmt.Sprintf("Battery: %.2f V", v.Battery),
		fmt.Sprintf("Limit: %d  Pwr: %d", v.Watering.Threshold, v.Watering.Power),
		fmt.Sprintf("Water: %.1fs /%dm", v.Watering.Duration().Seconds(), v.Watering.MinIntervalS/60),
		"WiFi: "+onOff(v.WiFi)+"  NTP: "+onOff(v.TimeSynced),
	)
}

func settingPage(v types.SettingView) page {
	value := fmt.Sprintf("%d", v.Value)
	if v.Unit != "" {
		value += " " + v.Unit
	}
	return textPage(v.Name,
		"> "+value,
		fmt.Sprintf("%d..%d step %d", v.Min, v.Max, v.Step),
		"Click: save",
		"Double: cancel",
	)
}

func confirmPage(p types.WateringPlan) page {
	return textPage("Water now?",
		fmt.Sprintf("Soil: %.0f", p.Before),
		fmt.Sprintf("Power: %d", p.Power),
		fmt.Sprintf("Time: %.1fs", p.Duration.Seconds()),
		"Click: start",
		"Double: cancel",
	)
}

func progressPage(pct int) page {
	p := textPage("Watering", fmt.Sprintf("%d%%", pct))
	p.bar = mathx.Clamp(pct, 0, 100)
	return p
}

func resultPage(before, after float32) page {
	return textPage("Done",
		fmt.Sprintf("Before: %.0f", before),
		fmt.Sprintf("After: %.0f", after),
		fmt.Sprintf("Change: %+.0f", after-before),
		"Double: back",
	)
}

func chatPage(msg string, opts []string, sel, cols int) page {
	p := textPage("Chat", strx.Wrap(msg, cols)...)
	base := len(p.lines)
	for _, o := range opts {
		p.lines = append(p.lines, strx.Truncate(o, cols))
	}
	if len(opts) > 0 {
		p.sel = base + mathx.Clamp(sel, 0, len(opts)-1)
	}
	return p
}

func dashboardPage(v types.DashboardView) page {
	status := v.Status
	if v.Pumping {
		status = "Watering..."
	}
	return textPage("Plant",
		fmt.Sprintf("Soil: %.0f%% (<%.0f%%)", v.HumidityPct, v.ThresholdPct),
		fmt.Sprintf("Battery: %.2f V", v.Battery),
		"Last: "+strx.Coalesce(v.LastWatering, "never"),
		status,
	)
}

func shutdownPage() page {
	return textPage("Sleeping", "Turn the switch", "to wake me up")
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
