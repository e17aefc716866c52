package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/innernet/server/internal/config"
	"github.com/innernet/server/internal/data"
	"github.com/innernet/server/internal/game"
	"github.com/innernet/server/internal/net/packet"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func decodeCmd() *cobra.Command {
	var (
		targeted   bool
		spawnTable string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "decode HEX",
		Short: "Decode a game data batch and apply it to an empty game",
		Long: `Decode prints every sub-message of a game data batch, applies the
batch to a fresh game and lists the objects it ends up with.

Examples:
  innernet decode 0c0004 03feffffff0f00012a 000001
  innernet decode --targeted 02 010007 01`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(cmd.OutOrStdout(), strings.Join(args, ""), targeted, spawnTable, verbose)
		},
	}
	cmd.Flags().BoolVarP(&targeted, "targeted", "t", false, "Batch starts with a packed target client id")
	cmd.Flags().StringVar(&spawnTable, "spawn-table", "", "Spawn table YAML (default built-in)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log dispatcher decisions")
	return cmd
}

// decodePlayer stands in for every client id the batch mentions.
type decodePlayer int32

func (p decodePlayer) ClientID() int32 { return int32(p) }

type anyPlayer struct{}

func (anyPlayer) FindPlayer(id int32) (game.Player, bool) { return decodePlayer(id), true }

func runDecode(out io.Writer, hexBatch string, targeted bool, spawnPath string, verbose bool) error {
	batch, err := hex.DecodeString(strings.Join(strings.Fields(hexBatch), ""))
	if err != nil {
		return fmt.Errorf("parse hex: %w", err)
	}
	spawns, err := data.LoadSpawnTable(spawnPath)
	if err != nil {
		return fmt.Errorf("load spawn table: %w", err)
	}

	if err := traceBatch(out, batch, targeted); err != nil {
		return err
	}

	log := zap.NewNop()
	if verbose {
		var closeLog func()
		if log, closeLog, err = newLogger(config.LoggingConfig{Level: "debug", Format: "console"}); err != nil {
			return err
		}
		defer closeLog()
	}

	g := game.New(0, spawns, anyPlayer{}, game.Hooks{}, log)
	if err := g.HandleBatch(batch, decodePlayer(-1), targeted); err != nil {
		return err
	}

	fmt.Fprintf(out, "objects: %d\n", g.ObjectCount())
	for _, obj := range g.Objects() {
		fmt.Fprintf(out, "  %s\n", obj)
	}
	return nil
}

// traceBatch prints one line per sub-message without interpreting payloads.
func traceBatch(out io.Writer, batch []byte, targeted bool) error {
	r := packet.NewReader(batch)
	if targeted {
		target, err := r.ReadPackedInt32()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "target: %d\n", target)
	}
	for r.HasRemaining() {
		at := r.Position()
		msg, err := r.ReadMessage()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%04x %-14s %3d  %x\n", at, packet.GameDataTag(msg.Tag()), msg.Len(), msg.Buffer())
	}
	return nil
}
