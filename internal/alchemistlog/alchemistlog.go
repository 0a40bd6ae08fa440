// Package alchemistlog collects per-package failures during a bulk
// analysis run so one bad ebuild doesn't abort the whole pass: a count is
// always reported, and -v surfaces each failure as it happens.
package alchemistlog

import (
	"fmt"
	"log"
	"sync"
)

// Collector accumulates failures from concurrent workers. The zero value
// is ready to use.
type Collector struct {
	Verbose bool

	mu       sync.Mutex
	failures []string
}

// Fail records a failure for label (typically a package name), logging it
// immediately when Verbose is set.
func (c *Collector) Fail(label string, err error) {
	msg := fmt.Sprintf("%s: %v", label, err)
	if c.Verbose {
		log.Printf("FAIL: %s", msg)
	}
	c.mu.Lock()
	c.failures = append(c.failures, msg)
	c.mu.Unlock()
}

// Count returns the number of failures recorded so far.
func (c *Collector) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.failures)
}

// Summary logs a one-line failure count, and every individual failure
// when Verbose was never set (Fail already logged them otherwise).
func (c *Collector) Summary() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.failures) == 0 {
		return
	}
	log.Printf("%d package(s) failed analysis", len(c.failures))
	if !c.Verbose {
		for _, msg := range c.failures {
			log.Printf("  %s", msg)
		}
	}
}
