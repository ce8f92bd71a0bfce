package main

import (
	"fmt"

	"github.com/schollz/progressbar/v3"

	"github.com/ekaya/facegate/pkg/logging"
)

// cliSink renders capture session events on the terminal.
type cliSink struct {
	bar *progressbar.ProgressBar
}

func newCLISink() *cliSink {
	return &cliSink{}
}

func (c *cliSink) OnSampleProgress(count, required int) {
	if c.bar == nil {
		c.bar = progressbar.NewOptions(required,
			progressbar.OptionSetDescription("Capturing samples"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("samples"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionFullWidth(),
		)
	}
	if err := c.bar.Set(count); err != nil {
		logging.WithError(err).Debug("progress bar update failed")
	}
}

func (c *cliSink) finishBar() {
	if c.bar != nil {
		_ = c.bar.Finish()
		fmt.Println()
		c.bar = nil
	}
}

func (c *cliSink) OnEnrollmentSucceeded() {
	c.finishBar()
	fmt.Println("Enrollment complete.")
}

func (c *cliSink) OnVerificationSucceeded(name string, score float64) {
	fmt.Printf("Welcome, %s! (score %.2f)\n", displayName(name), score)
}

func (c *cliSink) OnVerificationFailed() {
	fmt.Println("Face not recognized.")
}

func (c *cliSink) OnCancelled() {
	c.finishBar()
	fmt.Println("Session cancelled.")
}

func (c *cliSink) OnError(reason string) {
	c.finishBar()
	fmt.Printf("Session error: %s\n", reason)
}
