// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

// Command soesim drives the secure operator evaluator against the
// in-memory host simulator, for exercising the engine end to end
// without a real database host attached.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/erigontech/soe/internal/hostsim"
	"github.com/erigontech/soe/internal/page"
	"github.com/erigontech/soe/internal/slog"
	"github.com/erigontech/soe/internal/soemath"
	"github.com/erigontech/soe/soe"
)

var (
	handlerName string
	tableBlocks int
	indexBlocks int
)

func main() {
	root := &cobra.Command{
		Use:   "soesim",
		Short: "Drive the secure operator evaluator against a simulated host",
	}

	insertCmd := &cobra.Command{
		Use:   "demo",
		Short: "Insert a handful of keys and scan them back",
		RunE:  runDemo,
	}
	insertCmd.Flags().StringVar(&handlerName, "handler", "hash", "index handler: hash|btree")
	insertCmd.Flags().IntVar(&tableBlocks, "table-blocks", 64, "heap host-preallocated capacity")
	insertCmd.Flags().IntVar(&indexBlocks, "index-blocks", 64, "index host-preallocated capacity")

	root.AddCommand(insertCmd)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runDemo(cmd *cobra.Command, args []string) error {
	var messages []string
	log := slog.New("soesim", func(m string) { messages = append(messages, m) })
	defer func() {
		for _, m := range messages {
			fmt.Println(m)
		}
	}()

	host, err := hostsim.NewMemHost(256)
	if err != nil {
		return err
	}

	key := make([]byte, 32)
	iv := make([]byte, 16)
	prfKey := make([]byte, 32)

	sess, err := soe.New(host, key, iv, prfKey, log)
	if err != nil {
		return err
	}

	handlerOid := soe.HandlerHash
	if handlerName == "btree" {
		handlerOid = soe.HandlerBTree
	}

	attr := page.AttrDesc{Align: soemath.AlignChar1, FixedLen: 0}
	if err := sess.InitSOE("heap.tbl", "idx.tbl", uint32(tableBlocks), uint32(indexBlocks), 1, 2, handlerOid, attr); err != nil {
		return err
	}
	defer sess.CloseSoe()

	keys := []string{"alpha", "bravo", "charlie", "delta", "echo"}
	for _, k := range keys {
		if _, err := sess.Insert([]byte(k), []byte(k)); err != nil {
			return fmt.Errorf("insert %q: %w", k, err)
		}
	}

	const opEqual = 1054
	for _, k := range keys {
		tup, code, err := sess.GetTuple(0, opEqual, []byte(k))
		if err != nil {
			return fmt.Errorf("lookup %q: %w", k, err)
		}
		if code != 0 {
			fmt.Printf("lookup %q: no match\n", k)
			continue
		}
		fmt.Printf("lookup %q: found %q\n", k, string(tup.Data))
		if _, _, err := sess.GetTuple(0, opEqual, []byte(soe.Halt)); err != nil {
			return err
		}
	}

	return nil
}
