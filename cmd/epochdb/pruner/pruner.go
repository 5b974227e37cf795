// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package pruner drives the retention sweep of the state store in background.
package pruner

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/vechain/epochdb/co"
	"github.com/vechain/epochdb/journaldb"
	"github.com/vechain/epochdb/log"
	"github.com/vechain/epochdb/state"
)

var logger = log.WithContext("pkg", "pruner")

const (
	propsStoreName = "pruner.props"
	statusKey      = "status"
)

// Source supplies the finality heights the sweep is bounded by.
type Source interface {
	StableCheckpointHeight() uint64
	ConfirmedHeight() uint64
}

// SourceFunc adapts a function returning (stable, confirmed) heights to Source.
type SourceFunc func() (stable, confirmed uint64)

func (f SourceFunc) StableCheckpointHeight() uint64 {
	stable, _ := f()
	return stable
}

func (f SourceFunc) ConfirmedHeight() uint64 {
	_, confirmed := f()
	return confirmed
}

// status is the persisted progress of the pruner.
type status struct {
	Cycles    uint64
	Confirmed uint64
}

func (s *status) Load(db *journaldb.DB) error {
	store := db.NewStore(propsStoreName)
	data, err := store.Get([]byte(statusKey))
	if err != nil {
		if store.IsNotFound(err) {
			return nil
		}
		return err
	}
	return rlp.DecodeBytes(data, s)
}

func (s *status) Save(db *journaldb.DB) error {
	data, err := rlp.EncodeToBytes(s)
	if err != nil {
		return err
	}
	return db.NewStore(propsStoreName).Put([]byte(statusKey), data)
}

// Pruner is the state pruner.
type Pruner struct {
	db       *journaldb.DB
	manager  *state.Manager
	source   Source
	era      uint64
	interval time.Duration
	ctx      context.Context
	cancel   func()
	goes     co.Goes
}

// New creates and starts a state pruner. Every interval it sweeps history older
// than era epochs before the confirmed height, once the confirmed height advanced.
func New(db *journaldb.DB, manager *state.Manager, source Source, era uint64, interval time.Duration) *Pruner {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pruner{
		db:       db,
		manager:  manager,
		source:   source,
		era:      era,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
	p.goes.Go(func() {
		if err := p.loop(); err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Warn("pruner interrupted", "error", err)
			}
		}
	})
	return p
}

// Stop stops the state pruner.
func (p *Pruner) Stop() {
	p.cancel()
	p.goes.Wait()
}

func (p *Pruner) loop() error {
	var status status
	if err := status.Load(p.db); err != nil {
		return err
	}
	logger.Info("pruner started", "cycles", status.Cycles, "confirmed", status.Confirmed, "era", p.era)

	for {
		if err := p.sweep(&status); err != nil {
			return err
		}
		select {
		case <-p.ctx.Done():
			return p.ctx.Err()
		case <-time.After(p.interval):
		}
	}
}

// sweep runs one retention sweep if the confirmed height advanced.
func (p *Pruner) sweep(status *status) error {
	confirmed := p.source.ConfirmedHeight()
	if confirmed <= status.Confirmed || confirmed <= p.era {
		return nil
	}
	stable := p.source.StableCheckpointHeight()

	start := time.Now()
	if err := p.manager.MaintainStateConfirmed(stable, p.era, confirmed); err != nil {
		return err
	}
	status.Cycles++
	status.Confirmed = confirmed
	if err := status.Save(p.db); err != nil {
		return err
	}
	logger.Debug("swept", "stable", stable, "confirmed", confirmed, "elapsed", time.Since(start))
	return nil
}
