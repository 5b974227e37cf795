// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"
	"gopkg.in/yaml.v3"

	"github.com/vechain/epochdb/co"
	"github.com/vechain/epochdb/epochdb"
	"github.com/vechain/epochdb/journaldb"
	"github.com/vechain/epochdb/log"
	"github.com/vechain/epochdb/metrics"
	"github.com/vechain/epochdb/state"
)

func homeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

func defaultDataDir() string {
	if home := homeDir(); home != "" {
		return filepath.Join(home, ".epochdb")
	}
	return ""
}

func initLogger(ctx *cli.Context) {
	log.Setup(os.Stderr, ctx.Int(verbosityFlag.Name), ctx.Bool(jsonLogsFlag.Name))
}

// loadConfig builds the state config from defaults, then the config file, then flags.
func loadConfig(ctx *cli.Context) (state.Config, error) {
	cfg := state.DefaultConfig()
	if path := ctx.String(configFlag.Name); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return state.Config{}, errors.Wrap(err, "read config")
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return state.Config{}, errors.Wrapf(err, "parse config %v", path)
		}
	}
	if engine := ctx.String(stateEngineFlag.Name); engine != "" {
		cfg.Engine = engine
	}
	return cfg, nil
}

// openManager opens the database under the data dir and the state manager over it.
// Closing the manager closes the database.
func openManager(ctx *cli.Context) (*journaldb.DB, *state.Manager, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, nil, err
	}
	dataDir := ctx.String(dataDirFlag.Name)
	if dataDir == "" {
		return nil, nil, errors.Errorf("unable to infer default data dir, use -%s to specify one", dataDirFlag.Name)
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, nil, errors.Wrapf(err, "create data dir at '%v'", dataDir)
	}

	path := filepath.Join(dataDir, "state.db")
	db, err := journaldb.Open(path, &journaldb.Options{
		Engine:          ctx.String(dbEngineFlag.Name),
		NodeCacheSizeMB: ctx.Int(cacheFlag.Name),
	})
	if err != nil {
		return nil, nil, errors.Wrapf(err, "open state database at '%v'", path)
	}
	m, err := state.NewManager(db, cfg)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, m, nil
}

// openState opens the read-only state selected by --root and --epoch, the latest by default.
func openState(ctx *cli.Context, m *state.Manager) (*state.State, error) {
	index, err := m.LatestIndex()
	if err != nil {
		return nil, err
	}
	if root := ctx.String(rootFlag.Name); root != "" {
		if index.StateRoot, err = epochdb.ParseBytes32(root); err != nil {
			return nil, errors.Wrap(err, "parse root")
		}
		index.Epoch = nil
	}
	if epoch := ctx.Int64(epochFlag.Name); epoch >= 0 {
		e := uint64(epoch)
		index.Epoch = &e
	}
	st, err := m.GetStateNoCommit(index, false)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, errors.Errorf("state %v not found", index)
	}
	return st, nil
}

// parseBytes decodes 0x-prefixed hex, or takes s as raw bytes.
func parseBytes(s string) ([]byte, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return hexutil.Decode(s)
	}
	return []byte(s), nil
}

// parsePair parses a key=value argument. An empty value deletes the key.
func parsePair(arg string) (key, value []byte, err error) {
	k, v, ok := strings.Cut(arg, "=")
	if !ok || k == "" {
		return nil, nil, errors.Errorf("invalid pair %q, want key=value", arg)
	}
	if key, err = parseBytes(k); err != nil {
		return nil, nil, errors.Wrapf(err, "key of %q", arg)
	}
	if value, err = parseBytes(v); err != nil {
		return nil, nil, errors.Wrapf(err, "value of %q", arg)
	}
	return key, value, nil
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// startMetricsServer serves the prometheus meters and returns the url and a close func.
func startMetricsServer(addr string) (string, func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, errors.Wrapf(err, "listen metrics API addr [%v]", addr)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler())

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: time.Second, ReadTimeout: 5 * time.Second}
	var goes co.Goes
	goes.Go(func() {
		srv.Serve(listener)
	})
	return "http://" + listener.Addr().String() + "/metrics", func() {
		srv.Close()
		goes.Wait()
	}, nil
}

// setupMetrics starts the metrics server if enabled. The returned func stops it.
func setupMetrics(ctx *cli.Context) (func(), error) {
	if !ctx.Bool(enableMetricsFlag.Name) {
		return func() {}, nil
	}
	metrics.InitializePrometheusMetrics()
	url, closeFn, err := startMetricsServer(ctx.String(metricsAddrFlag.Name))
	if err != nil {
		return nil, err
	}
	log.Root().Info("metrics server started", "url", url)
	return closeFn, nil
}
