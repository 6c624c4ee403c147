// Copyright 2020 Stafi Protocol
// SPDX-License-Identifier: LGPL-3.0-only

package subspace

import (
	"errors"
	"sync"
	"time"

	"github.com/ChainSafe/log15"
)

var ErrorTerminated = errors.New("terminated")

// Archiver re-saves the chain state every interval until stopped.
type Archiver struct {
	client   *Client
	interval time.Duration
	log      log15.Logger
	stop     chan int
	wg       sync.WaitGroup
	once     sync.Once
	sysErr   chan<- error
}

var ArchiveRetryLimit = 5

func NewArchiver(client *Client, interval time.Duration, log log15.Logger, sysErr chan<- error) *Archiver {
	return &Archiver{
		client:   client,
		interval: interval,
		log:      log,
		stop:     make(chan int),
		sysErr:   sysErr,
	}
}

func (a *Archiver) Start() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		err := a.pollState()
		if err != nil && !errors.Is(err, ErrorTerminated) {
			a.log.Error("archiving state failed", "err", err)
		}
	}()
}

// Stop ends the loop and waits for it to return.
func (a *Archiver) Stop() {
	a.once.Do(func() { close(a.stop) })
	a.wg.Wait()
}

func (a *Archiver) pollState() error {
	retry := ArchiveRetryLimit
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		if retry == 0 {
			err := errors.New("archive retries exceeded")
			if a.sysErr != nil {
				select {
				case a.sysErr <- err:
				default:
				}
			}
			return err
		}

		if err := a.client.Save(); err != nil {
			a.log.Error("Failed to save state", "err", err)
			retry--
		} else {
			retry = ArchiveRetryLimit
		}

		select {
		case <-a.stop:
			return ErrorTerminated
		case <-ticker.C:
		}
	}
}
