package errcode

import (
	"errors"
	"fmt"
	"testing"
)

func TestOf(t *testing.T) {
	if got := Of(nil); got != OK {
		t.Fatalf("Of(nil) = %q, want ok", got)
	}
	if got := Of(PumpBusy); got != PumpBusy {
		t.Fatalf("Of(code) = %q", got)
	}
	wrapped := fmt.Errorf("watering: %w", Wrap(SensorFailed, "soil.read", errors.New("adc")))
	if got := Of(wrapped); got != SensorFailed {
		t.Fatalf("Of(wrapped) = %q, want %q", got, SensorFailed)
	}
	if got := Of(errors.New("plain")); got != Error {
		t.Fatalf("Of(plain) = %q, want error", got)
	}
}

func TestE_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	e := &E{C: ConfigSaveFailed, Op: "config.save", Msg: "write temp", Err: cause}
	want := "config.save: config_save_failed: write temp: disk full"
	if e.Error() != want {
		t.Fatalf("Error() = %q, want %q", e.Error(), want)
	}
	if !errors.Is(e, cause) {
		t.Fatal("errors.Is should see the cause")
	}
}
