package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sushiBar/internal/chain"
	"sushiBar/internal/config"
)

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Compare vault totals with the on-chain token and share supply",
		Args:  cobra.NoArgs,
		RunE:  runVerify,
	}
	cmd.Flags().String("token", "", "on-chain token address (defaults to the deployed one)")
	cmd.Flags().String("vault", "", "on-chain vault address (defaults to the deployed one)")
	return cmd
}

func runVerify(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if s.cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	tokenAddr, err := overrideAddress(s.cfg.Token, s.vault.Sushi())
	if err != nil {
		return fmt.Errorf("token: %w", err)
	}
	vaultAddr, err := overrideAddress(s.cfg.Vault, s.vault.Address())
	if err != nil {
		return fmt.Errorf("vault: %w", err)
	}

	client, err := chain.NewClient(s.ctx, s.cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer client.Close()

	reader := &chain.ERC20Reader{Caller: client, MaxRetries: s.cfg.MaxRetries, BaseDelay: s.cfg.RetryBackoff}
	held, err := reader.BalanceOf(s.ctx, tokenAddr, vaultAddr)
	if err != nil {
		return err
	}
	supply, err := reader.TotalSupply(s.ctx, vaultAddr)
	if err != nil {
		return err
	}

	shares, underlying := s.vault.Totals()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "underlying: local %s, chain %s\n", underlying.Dec(), held.Dec())
	fmt.Fprintf(out, "shares:     local %s, chain %s\n", shares.Dec(), supply.Dec())

	s.logger.Info("verify",
		zap.String("token", tokenAddr.Hex()),
		zap.String("vault", vaultAddr.Hex()),
		zap.String("local_underlying", underlying.Dec()),
		zap.String("chain_underlying", held.Dec()),
		zap.String("local_shares", shares.Dec()),
		zap.String("chain_shares", supply.Dec()),
	)
	if !held.Eq(underlying) || !supply.Eq(shares) {
		return fmt.Errorf("vault totals diverge from chain")
	}
	return nil
}

func overrideAddress(value string, fallback common.Address) (common.Address, error) {
	if value == "" {
		return fallback, nil
	}
	return config.ParseAddress(value)
}
