// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"bytes"
	"fmt"
	"os"
	"os/signal"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"gopkg.in/cheggaaa/pb.v1"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/vechain/epochdb/cmd/epochdb/pruner"
	"github.com/vechain/epochdb/epochdb"
	"github.com/vechain/epochdb/log"
	"github.com/vechain/epochdb/state"
)

type latestInfo struct {
	Epoch     uint64          `json:"epoch"`
	StateRoot epochdb.Bytes32 `json:"stateRoot"`
}

type infoResult struct {
	Engine   string              `json:"engine"`
	DBEngine string              `json:"dbEngine"`
	Config   state.Config        `json:"config"`
	Latest   latestInfo          `json:"latest"`
	Snapshot *state.SnapshotInfo `json:"snapshot"`
}

func infoAction(ctx *cli.Context) error {
	initLogger(ctx)
	db, m, err := openManager(ctx)
	if err != nil {
		return err
	}
	defer m.Close()

	latest, err := m.LatestIndex()
	if err != nil {
		return err
	}
	epoch := *latest.Epoch
	snap, err := m.GetSnapshotInfoAtEpoch(epoch - epoch%m.SnapshotEpochCount())
	if err != nil {
		return err
	}
	return printJSON(ctx.App.Writer, &infoResult{
		Engine:   m.EngineKind(),
		DBEngine: db.Engine(),
		Config:   m.Config(),
		Latest:   latestInfo{epoch, latest.StateRoot},
		Snapshot: snap,
	})
}

type versionResult struct {
	Epoch     uint64           `json:"epoch"`
	StateRoot epochdb.Bytes32  `json:"stateRoot"`
	Merkle    *epochdb.Bytes32 `json:"merkle"`
}

func getAction(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return errors.New("no key given")
	}
	initLogger(ctx)
	_, m, err := openManager(ctx)
	if err != nil {
		return err
	}
	defer m.Close()

	st, err := openState(ctx, m)
	if err != nil {
		return err
	}
	for _, arg := range ctx.Args() {
		key, err := parseBytes(arg)
		if err != nil {
			return errors.Wrapf(err, "parse key %q", arg)
		}
		if !ctx.Bool(allVersionsFlag.Name) {
			val, err := st.Get(key)
			if err != nil {
				return err
			}
			if val == nil {
				fmt.Fprintf(ctx.App.Writer, "%s: <absent>\n", arg)
			} else {
				fmt.Fprintf(ctx.App.Writer, "%s: %s\n", arg, hexutil.Encode(val))
			}
			continue
		}

		merkles, err := st.GetNodeMerkleAllVersions(key, false)
		if err != nil {
			return err
		}
		versions := make([]versionResult, 0, len(merkles))
		for _, nm := range merkles {
			v := versionResult{Epoch: nm.Epoch, StateRoot: nm.StateRoot}
			if !nm.Merkle.IsZero() {
				v.Merkle = &nm.Merkle
			}
			versions = append(versions, v)
		}
		if err := printJSON(ctx.App.Writer, versions); err != nil {
			return err
		}
	}
	return nil
}

type proveResult struct {
	Key       hexutil.Bytes   `json:"key"`
	Value     hexutil.Bytes   `json:"value"`
	Epoch     uint64          `json:"epoch"`
	StateRoot epochdb.Bytes32 `json:"stateRoot"`
	Proof     *state.Proof    `json:"proof"`
}

func proveAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return errors.New("exactly one key expected")
	}
	initLogger(ctx)
	_, m, err := openManager(ctx)
	if err != nil {
		return err
	}
	defer m.Close()

	st, err := openState(ctx, m)
	if err != nil {
		return err
	}
	key, err := parseBytes(ctx.Args().First())
	if err != nil {
		return errors.Wrap(err, "parse key")
	}
	val, proof, err := st.GetWithProof(key)
	if err != nil {
		return err
	}
	root := st.GetStateRoot()
	return printJSON(ctx.App.Writer, &proveResult{
		Key:       key,
		Value:     val,
		Epoch:     root.AuxInfo.Epoch,
		StateRoot: root.StateRoot,
		Proof:     proof,
	})
}

func putAction(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return errors.New("no pair given")
	}
	initLogger(ctx)
	_, m, err := openManager(ctx)
	if err != nil {
		return err
	}
	defer m.Close()

	latest, err := m.LatestIndex()
	if err != nil {
		return err
	}
	st, err := m.GetStateForNextEpoch(latest)
	if err != nil {
		return err
	}
	if st == nil {
		return errors.Errorf("latest state %v not found", latest)
	}
	for _, arg := range ctx.Args() {
		key, value, err := parsePair(arg)
		if err != nil {
			return err
		}
		if err := st.Set(key, value); err != nil {
			return err
		}
	}
	root, err := st.Commit(*latest.Epoch + 1)
	if err != nil {
		return err
	}
	return printJSON(ctx.App.Writer, &root)
}

func pruneAction(ctx *cli.Context) error {
	initLogger(ctx)
	db, m, err := openManager(ctx)
	if err != nil {
		return err
	}
	defer m.Close()

	era := ctx.Uint64(eraFlag.Name)
	if ctx.Bool(followFlag.Name) {
		stopMetrics, err := setupMetrics(ctx)
		if err != nil {
			return err
		}
		defer stopMetrics()

		// the latest committed epoch is taken as both stable and confirmed
		source := pruner.SourceFunc(func() (uint64, uint64) {
			latest, err := m.LatestIndex()
			if err != nil {
				log.Root().Warn("failed to read latest index", "err", err)
				return 0, 0
			}
			return *latest.Epoch, *latest.Epoch
		})
		p := pruner.New(db, m, source, era, ctx.Duration(intervalFlag.Name))

		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt)
		defer signal.Stop(interrupt)

		<-interrupt
		p.Stop()
		return nil
	}

	latest, err := m.LatestIndex()
	if err != nil {
		return err
	}
	stable, confirmed := ctx.Uint64(stableFlag.Name), ctx.Uint64(confirmedFlag.Name)
	if stable == 0 {
		stable = *latest.Epoch
	}
	if confirmed == 0 {
		confirmed = *latest.Epoch
	}
	return m.MaintainStateConfirmed(stable, era, confirmed)
}

func verifyAction(ctx *cli.Context) error {
	initLogger(ctx)
	_, m, err := openManager(ctx)
	if err != nil {
		return err
	}
	defer m.Close()

	st, err := openState(ctx, m)
	if err != nil {
		return err
	}
	prefix, err := parseBytes(ctx.String(prefixFlag.Name))
	if err != nil {
		return errors.Wrap(err, "parse prefix")
	}
	keys, err := st.KeysWithPrefix(prefix)
	if err != nil {
		return err
	}

	root := st.GetStateRoot()
	bar := pb.New(len(keys)).
		SetMaxWidth(90)
	bar.Output = ctx.App.Writer
	bar.Start()
	defer func() { bar.NotPrint = true }()

	for _, key := range keys {
		val, proof, err := st.GetWithProof(key)
		if err != nil {
			return err
		}
		proven, err := m.VerifyProof(root.StateRoot, key, proof)
		if err != nil {
			return errors.Wrapf(err, "verify key %x", key)
		}
		if !bytes.Equal(proven, val) {
			return errors.Errorf("verify key %x: proven value mismatch", key)
		}
		bar.Increment()
	}
	bar.Finish()

	fmt.Fprintf(ctx.App.Writer, "verified %d keys at epoch %d root %v\n", len(keys), root.AuxInfo.Epoch, root.StateRoot)
	return nil
}

func snapshotAction(ctx *cli.Context) error {
	initLogger(ctx)
	_, m, err := openManager(ctx)
	if err != nil {
		return err
	}
	defer m.Close()

	epoch := ctx.Int64(epochFlag.Name)
	if epoch < 0 {
		latest, err := m.LatestIndex()
		if err != nil {
			return err
		}
		epoch = int64(*latest.Epoch - *latest.Epoch%m.SnapshotEpochCount())
	}
	info, err := m.GetSnapshotInfoAtEpoch(uint64(epoch))
	if err != nil {
		return err
	}
	if info == nil {
		return errors.Errorf("no snapshot at epoch %d", epoch)
	}
	return printJSON(ctx.App.Writer, info)
}
