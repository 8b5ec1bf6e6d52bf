// Command rc2014vm runs the Z80 RC2014-class virtual machine against four
// bank images, driving it at a paced ~60 Hz frame rate until the guest
// halts or the process is interrupted.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"rc2014vm/internal/consolelog"
	"rc2014vm/internal/frameclock"
	"rc2014vm/internal/hostopts"
	"rc2014vm/internal/machine"
	"rc2014vm/internal/termguard"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	opts, err := hostopts.Parse(argv)
	if errors.Is(err, hostopts.ErrHelp) {
		fmt.Print(hostopts.Usage("rc2014vm"))
		return 0
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	log := consolelog.New(os.Stderr, opts.LogLevel)

	guard, err := termguard.NewGuard(int(os.Stdin.Fd()))
	if err != nil {
		log.Error("failed to prepare terminal", "error", err)
		return 1
	}
	defer guard.Restore()

	cfg := machine.DefaultConfig()
	cfg.BankPaths = opts.BankPaths

	vm := machine.New(cfg, log)
	if err := vm.Reset(); err != nil {
		log.Error("failed to reset machine", "error", err)
		return 1
	}
	defer vm.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("signal received, stopping")
		vm.Stop()
	}()

	clock := frameclock.New(frameclock.DefaultFrameInterval, opts.Turbo)
	for !vm.Stopped() {
		vm.Clock()
		clock.Wait()
	}

	log.Info("machine halted")
	return 0
}
