//go:build rp2040 || rp2350

// plant-pico is the firmware image for the Pico carrier. The serial
// console is served on UART0 (GP0 TX, GP1 RX) and logs go to USB serial.
package main

import (
	"context"
	"io"
	"log/slog"
	"machine"
	"time"

	"github.com/jangala-dev/tinygo-uartx/uartx"
	"golang.org/x/sync/errgroup"

	"plantcode-go/services/config"
	"plantcode-go/services/hal"
	"plantcode-go/services/harness"
	"plantcode-go/services/system"
)

const consoleBaud = 115200

// uartLink serves the console on a hardware UART. The port stays
// configured for the life of the image, so Close does nothing.
type uartLink struct{ u *uartx.UART }

func (l uartLink) Open(ctx context.Context) (io.ReadWriteCloser, error) {
	return uartRWC{ctx: ctx, u: l.u}, nil
}

func (uartLink) String() string { return "uart0" }

type uartRWC struct {
	ctx context.Context
	u   *uartx.UART
}

func (c uartRWC) Read(p []byte) (int, error)  { return c.u.RecvSomeContext(c.ctx, p) }
func (c uartRWC) Write(p []byte) (int, error) { return c.u.Write(p) }
func (uartRWC) Close() error                  { return nil }

func main() {
	// Let USB serial enumerate before the first log line.
	time.Sleep(1500 * time.Millisecond)

	log := slog.New(slog.NewTextHandler(machine.Serial, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(log)

	if err := uartx.UART0.Configure(uartx.UARTConfig{
		BaudRate: consoleBaud,
		TX:       machine.Pin(0),
		RX:       machine.Pin(1),
	}); err != nil {
		log.Error("console uart", "err", err)
	}

	sys, err := system.New(system.Options{
		Platform: hal.DefaultPlatform(),
		Pins:     hal.PicoPins,
		Logger:   log,
		Device:   "pico",
		Store:    &config.MemoryStore{},
		// Dormant sleep is not wired on rp2 yet, so OFF idles instead.
		NoSleep: true,
	})
	if err != nil {
		log.Error("system init", "err", err)
		for {
			time.Sleep(time.Second)
		}
	}

	ctx := context.Background()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sys.Run(ctx) })
	g.Go(func() error {
		return harness.ServeLink(ctx, sys, uartLink{u: uartx.UART0}, harness.Options{Logger: log})
	})
	if err := g.Wait(); err != nil {
		log.Error("stopped", "err", err)
	}
}
