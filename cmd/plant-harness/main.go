//go:build !rp2040 && !rp2350

// plant-harness drives the test console of a device over a serial port.
// Each command is sent on its own line; replies are printed until the
// end-of-output marker or the timeout.
//
//	plant-harness -port /dev/ttyACM0 "read all" "pump run 200 1500"
//	plant-harness -port /dev/ttyACM0 -script smoke.txt
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dikkadev/prettyslog"
	"go.bug.st/serial"

	"plantcode-go/services/harness"
)

func main() {
	port := flag.String("port", "", "serial port (e.g. /dev/ttyACM0)")
	baud := flag.Int("baud", 115200, "baud rate")
	script := flag.String("script", "", "file with one command per line; # starts a comment")
	timeout := flag.Duration("timeout", 10*time.Second, "per-command reply timeout")
	boot := flag.Duration("boot", 2*time.Second, "wait after opening the port")
	list := flag.Bool("list", false, "list serial ports and exit")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(prettyslog.NewPrettyslogHandler("harness", prettyslog.WithLevel(level)))
	slog.SetDefault(log)

	if *list {
		ports, err := serial.GetPortsList()
		if err != nil {
			log.Error("listing ports failed", "err", err)
			os.Exit(1)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}
	if *port == "" {
		log.Error("no serial port given, use -port")
		os.Exit(2)
	}

	cmds := flag.Args()
	if *script != "" {
		more, err := readScript(*script)
		if err != nil {
			log.Error("reading script failed", "path", *script, "err", err)
			os.Exit(1)
		}
		cmds = append(cmds, more...)
	}

	p, err := serial.Open(*port, &serial.Mode{BaudRate: *baud})
	if err != nil {
		log.Error("opening port failed", "port", *port, "err", err)
		os.Exit(1)
	}
	defer p.Close()
	if err := p.SetReadTimeout(100 * time.Millisecond); err != nil {
		log.Warn("read timeout not supported", "err", err)
	}
	log.Info("port open", "port", *port, "baud", *baud)
	time.Sleep(*boot)

	c := &client{port: p, r: bufio.NewReader(p), out: os.Stdout, log: log}
	if len(cmds) == 0 {
		// passive mode: print whatever the device says
		c.watch(*timeout)
		return
	}
	failed := 0
	for _, cmd := range cmds {
		if err := c.run(cmd, *timeout); err != nil {
			log.Error("command failed", "cmd", cmd, "err", err)
			failed++
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

type client struct {
	port serial.Port
	r    *bufio.Reader
	out  io.Writer
	log  *slog.Logger
}

var errTimeout = errors.New("no end-of-output marker before timeout")

// run sends one command and copies the reply lines to out.
func (c *client) run(cmd string, timeout time.Duration) error {
	c.log.Debug("send", "cmd", cmd)
	fmt.Fprintf(c.out, ">>> %s\n", cmd)
	if _, err := io.WriteString(c.port, cmd+"\n"); err != nil {
		return err
	}
	deadline := time.Now().Add(timeout)
	var partial strings.Builder
	for time.Now().Before(deadline) {
		chunk, err := c.r.ReadString('\n')
		partial.WriteString(chunk)
		if err != nil {
			// timed-out reads surface as io.ErrNoProgress; keep the partial line
			continue
		}
		line := strings.TrimRight(partial.String(), "\r\n")
		partial.Reset()
		if line == harness.EOT {
			return nil
		}
		fmt.Fprintln(c.out, line)
	}
	return errTimeout
}

func (c *client) watch(d time.Duration) {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		line, err := c.r.ReadString('\n')
		if line != "" {
			fmt.Fprint(c.out, line)
		}
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrNoProgress) {
			c.log.Warn("read failed", "err", err)
			return
		}
	}
}

func readScript(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}
