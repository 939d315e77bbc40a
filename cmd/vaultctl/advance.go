package main

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sushiBar/internal/config"
	"sushiBar/internal/vault"
)

func newAdvanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "advance <duration>",
		Short: "Move the sandbox clock forward (e.g. 2d, 36h)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if s.cfg.Clock != config.ClockSystem {
				return fmt.Errorf("advance only applies to the system clock")
			}
			seconds, err := config.ParseAdvance(args[0])
			if err != nil {
				return err
			}
			// offsets are stored as signed 64-bit values
			if seconds > math.MaxInt64-s.snap.ClockOffset {
				return fmt.Errorf("clock offset %d plus %ds overflows", s.snap.ClockOffset, seconds)
			}
			clock := vault.SystemClock{Offset: s.snap.ClockOffset + seconds}
			if _, err := clock.Now(s.ctx); err != nil {
				return err
			}
			s.snap.ClockOffset = clock.Offset
			s.logger.Info("advance", zap.Uint64("seconds", seconds), zap.Uint64("offset", s.snap.ClockOffset))
			if err := s.save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "clock offset now %ds\n", s.snap.ClockOffset)
			return nil
		},
	}
}
