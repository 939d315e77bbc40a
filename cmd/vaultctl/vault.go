package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newEnterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enter <owner> <amount>",
		Short: "Deposit underlying tokens and mint shares",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			owner, err := parseAccount(args[0])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			dep, err := s.vault.Enter(s.ctx, owner, amount)
			if err != nil {
				s.exportRejection()
				return err
			}
			if err := s.save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "entered %s, minted %s shares\n", dep.AmountIn.Dec(), dep.SharesMinted.Dec())
			return nil
		},
	}
}

func newLeaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leave <owner> <shares>",
		Short: "Burn shares and withdraw underlying tokens",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			owner, err := parseAccount(args[0])
			if err != nil {
				return err
			}
			shares, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			wd, err := s.vault.Leave(s.ctx, owner, shares)
			if err != nil {
				s.exportRejection()
				return err
			}
			if err := s.save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "burned %s shares, paid %s, tax %s to %s\n",
				wd.SharesBurned.Dec(), wd.NetPaid.Dec(), wd.TaxPaid.Dec(), s.vault.RewardPool().Hex())
			return nil
		},
	}
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Count tokens sent straight to the vault as pool underlying",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			added, err := s.vault.Sync(s.ctx)
			if err != nil {
				return err
			}
			if err := s.save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "absorbed %s\n", added.Dec())
			return nil
		},
	}
}

// exportRejection writes metrics after a failed call so rejections are visible.
func (s *session) exportRejection() {
	if err := s.exportMetrics(); err != nil {
		s.logger.Warn("export metrics", zap.Error(err))
	}
}
