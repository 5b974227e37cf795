// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package state manages epoch-scoped states over an authenticated structure.
// It follows the flow as bellow:
//
//	               o
//	               |
//	   [ revertable state ]
//	               |
//	      [ stacked map ] -> [ journal ] -> [ stage ] -> [ commit under parent epoch ]
//	               |
//	 [ trie / accumulator at the parent root ]
//
// A Manager selects one engine for the lifetime of the database. The trie engine
// allows any committed root as a parent, so forks coexist until the retention sweep
// drops them. The accumulator engine advances a single line of history.
package state
