package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sushiBar/internal/config"
	"sushiBar/internal/model"
	"sushiBar/internal/token"
	"sushiBar/internal/vault"
)

func newDeployCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy a fresh token and vault into the sandbox",
		Args:  cobra.NoArgs,
		RunE:  runDeploy,
	}
	cmd.Flags().String("deployer", "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", "deploying account; contract addresses derive from its nonce")
	cmd.Flags().String("reward-pool", "0x70997970C51812dc3A010C7d01b50e0d17dc79C8", "account receiving withdrawal tax")
	cmd.Flags().String("mint", "0", "tokens minted to the deployer after deployment")
	cmd.Flags().Bool("force", false, "replace an existing deployment")
	return cmd
}

func runDeploy(cmd *cobra.Command, _ []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	force, _ := cmd.Flags().GetBool("force")
	if _, ok, err := e.store.Load(e.ctx); err != nil {
		return fmt.Errorf("load state: %w", err)
	} else if ok && !force {
		return fmt.Errorf("a vault is already deployed, pass --force to replace it")
	}

	deployer, err := config.ParseAddress(e.cfg.Deployer)
	if err != nil {
		return fmt.Errorf("deployer: %w", err)
	}
	rewardPool, err := config.ParseAddress(e.cfg.RewardPool)
	if err != nil {
		return fmt.Errorf("reward pool: %w", err)
	}
	mintArg, _ := cmd.Flags().GetString("mint")
	mint, err := parseAmount(mintArg)
	if err != nil {
		return err
	}

	// token first, then the vault, as two consecutive deployments
	tokenAddr := crypto.CreateAddress(deployer, 0)
	vaultAddr := crypto.CreateAddress(deployer, 1)

	ledger := token.NewLedger(tokenAddr, vaultAddr, vaultAddr)
	if !mint.IsZero() {
		if err := ledger.Mint(deployer, mint); err != nil {
			return err
		}
	}
	schedule, err := vault.DefaultSchedule(e.cfg.Tax4dBps, e.cfg.Tax6dBps)
	if err != nil {
		return err
	}
	v, err := vault.New(vault.Config{Address: vaultAddr, RewardPool: rewardPool, Schedule: schedule}, ledger, vault.SystemClock{}, e.logger)
	if err != nil {
		return err
	}

	snap := model.Snapshot{Vault: v.State(), Token: ledger.State()}
	if err := e.store.Save(e.ctx, snap); err != nil {
		return fmt.Errorf("save state: %w", err)
	}

	e.logger.Info("deployed",
		zap.String("token", tokenAddr.Hex()),
		zap.String("vault", vaultAddr.Hex()),
		zap.String("reward_pool", rewardPool.Hex()),
		zap.String("minted", mint.Dec()),
	)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Deployed Sushi Token at : %s\n", tokenAddr.Hex())
	fmt.Fprintf(out, "Deployed SushiBar contract at : %s\n", vaultAddr.Hex())
	return nil
}
