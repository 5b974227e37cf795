// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"fmt"
	"os"

	cli "gopkg.in/urfave/cli.v1"
)

var (
	version   string
	gitCommit string
	gitTag    string
)

func fullVersion() string {
	versionMeta := "release"
	if gitTag == "" {
		versionMeta = "dev"
	}
	return fmt.Sprintf("%s-%s-%s", version, gitCommit, versionMeta)
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Version = fullVersion()
	app.Name = "epochdb"
	app.Usage = "Versioned authenticated key-value state store"
	app.Copyright = "2026 VeChain Foundation <https://vechain.org/>"
	app.Commands = []cli.Command{
		{
			Name:   "info",
			Usage:  "show the engine, the config and the latest state",
			Flags:  dbFlags,
			Action: infoAction,
		},
		{
			Name:      "get",
			Usage:     "read values of keys",
			ArgsUsage: "<key>...",
			Flags:     append([]cli.Flag{rootFlag, epochFlag, allVersionsFlag}, dbFlags...),
			Action:    getAction,
		},
		{
			Name:      "prove",
			Usage:     "read the value of a key with its proof",
			ArgsUsage: "<key>",
			Flags:     append([]cli.Flag{rootFlag, epochFlag}, dbFlags...),
			Action:    proveAction,
		},
		{
			Name:      "put",
			Usage:     "commit the next epoch on top of the latest state",
			ArgsUsage: "<key>=<value>...",
			Flags:     dbFlags,
			Action:    putAction,
		},
		{
			Name:  "prune",
			Usage: "discard history below the retention boundary",
			Flags: append([]cli.Flag{
				stableFlag,
				confirmedFlag,
				eraFlag,
				followFlag,
				intervalFlag,
				enableMetricsFlag,
				metricsAddrFlag,
			}, dbFlags...),
			Action: pruneAction,
		},
		{
			Name:   "verify",
			Usage:  "prove every key of a state and verify the proofs against its root",
			Flags:  append([]cli.Flag{rootFlag, epochFlag, prefixFlag}, dbFlags...),
			Action: verifyAction,
		},
		{
			Name:   "snapshot",
			Usage:  "show the snapshot info of an epoch",
			Flags:  append([]cli.Flag{epochFlag}, dbFlags...),
			Action: snapshotAction,
		},
	}
	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
