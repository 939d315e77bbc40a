package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mint <account> <amount>",
		Short: "Mint underlying tokens to an account",
		Args:  cobra.ExactArgs(2),
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
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			if err := s.ledger.Mint(account, amount); err != nil {
				return fmt.Errorf("mint: %w", err)
			}
			s.logger.Info("mint", zap.String("account", account.Hex()), zap.String("amount", amount.Dec()))
			return s.save()
		},
	}
}

func newApproveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <owner> <amount>",
		Short: "Approve the vault to pull underlying tokens from owner",
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
			s.ledger.Approve(owner, s.vault.Address(), amount)
			s.logger.Info("approve", zap.String("owner", owner.Hex()), zap.String("amount", amount.Dec()))
			return s.save()
		},
	}
}

func newTransferCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transfer <from> <to> <amount>",
		Short: "Transfer underlying tokens between accounts",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			from, err := parseAccount(args[0])
			if err != nil {
				return err
			}
			to, err := parseAccount(args[1])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[2])
			if err != nil {
				return err
			}
			if err := s.ledger.Transfer(from, to, amount); err != nil {
				return fmt.Errorf("transfer: %w", err)
			}
			s.logger.Info("transfer",
				zap.String("from", from.Hex()),
				zap.String("to", to.Hex()),
				zap.String("amount", amount.Dec()),
			)
			return s.save()
		},
	}
}
