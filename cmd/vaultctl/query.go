package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"sushiBar/internal/vault"
)

func newBalanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance <account>",
		Short: "Show underlying and share balances of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			account, err := parseAccount(args[0])
			if err != nil {
				return err
			}
			tokens, err := s.ledger.BalanceOf(s.ctx, account)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "account: %s\n", account.Hex())
			fmt.Fprintf(out, "sushi:   %s\n", tokens.Dec())
			fmt.Fprintf(out, "shares:  %s\n", s.vault.BalanceOf(account).Dec())
			return nil
		},
	}
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info [account]",
		Short: "Show vault totals, or where an account sits in the tier schedule",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			shares, underlying := s.vault.Totals()
			held, err := s.ledger.BalanceOf(s.ctx, s.vault.Address())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "vault:            %s\n", s.vault.Address().Hex())
			fmt.Fprintf(out, "sushi:            %s\n", s.vault.Sushi().Hex())
			fmt.Fprintf(out, "reward pool:      %s\n", s.vault.RewardPool().Hex())
			fmt.Fprintf(out, "total shares:     %s\n", shares.Dec())
			fmt.Fprintf(out, "total underlying: %s\n", underlying.Dec())
			fmt.Fprintf(out, "vault balance:    %s\n", held.Dec())
			fmt.Fprintf(out, "holders:          %d\n", len(s.vault.Positions()))
			for _, tier := range s.vault.Schedule().Tiers() {
				fmt.Fprintf(out, "  from %-4s withdraw %6s tax %6s\n",
					fmt.Sprintf("%dd", tier.From/vault.Day), bps(tier.WithdrawBps), bps(tier.TaxBps))
			}
			if len(args) == 0 {
				return nil
			}

			owner, err := parseAccount(args[0])
			if err != nil {
				return err
			}
			st, err := s.vault.Status(s.ctx, owner)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "position:         %s\n", owner.Hex())
			fmt.Fprintf(out, "  shares:         %s\n", st.Position.Shares.Dec())
			fmt.Fprintf(out, "  worth:          %s\n", st.Underlying.Dec())
			fmt.Fprintf(out, "  staked at:      %s\n", unix(st.Position.LastStake))
			fmt.Fprintf(out, "  elapsed:        %s\n", time.Duration(st.Elapsed)*time.Second)
			fmt.Fprintf(out, "  withdrawable:   %s\n", st.MaxWithdrawable.Dec())
			fmt.Fprintf(out, "  tax:            %s\n", bps(st.TaxBps))
			if st.NextTierAt != 0 {
				fmt.Fprintf(out, "  next tier at:   %s\n", unix(st.NextTierAt))
			}
			return nil
		},
	}
}

func bps(v uint64) string {
	return fmt.Sprintf("%d.%02d%%", v/100, v%100)
}

func unix(ts uint64) string {
	return time.Unix(int64(ts), 0).UTC().Format(time.RFC3339)
}
