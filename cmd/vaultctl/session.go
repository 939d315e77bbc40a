package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sushiBar/internal/chain"
	"sushiBar/internal/config"
	"sushiBar/internal/events"
	"sushiBar/internal/metrics"
	"sushiBar/internal/model"
	"sushiBar/internal/storage"
	"sushiBar/internal/storage/postgres"
	"sushiBar/internal/token"
	"sushiBar/internal/vault"
)

// env is what every command needs before touching the vault.
type env struct {
	ctx    context.Context
	stop   context.CancelFunc
	cfg    config.Config
	logger *zap.Logger
	store  storage.StateStore
}

func newEnv(cmd *cobra.Command) (*env, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	store, err := openStore(ctx, cfg)
	if err != nil {
		stop()
		_ = logger.Sync()
		return nil, err
	}
	return &env{ctx: ctx, stop: stop, cfg: cfg, logger: logger, store: store}, nil
}

func (e *env) Close() {
	if err := e.store.Close(); err != nil {
		e.logger.Warn("close state store", zap.Error(err))
	}
	e.stop()
	_ = e.logger.Sync()
}

func openStore(ctx context.Context, cfg config.Config) (storage.StateStore, error) {
	switch cfg.StateBackend {
	case config.BackendFile:
		return &storage.FileStateStore{Path: cfg.StatePath}, nil
	case config.BackendLevelDB:
		return storage.NewLevelStateStore(cfg.StatePath)
	case config.BackendPostgres:
		pg, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		return &postgres.SnapshotStore{Store: pg, Name: cfg.StateName}, nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", cfg.StateBackend)
	}
}

// session is a loaded sandbox: token ledger, vault and their sinks.
type session struct {
	*env
	snap    model.Snapshot
	ledger  *token.Ledger
	vault   *vault.Vault
	metrics *metrics.VaultMetrics
	chain   *chain.Client
	// journal receives vault events once save has persisted them.
	journal *pendingEvents
}

func openSession(cmd *cobra.Command) (*session, error) {
	e, err := newEnv(cmd)
	if err != nil {
		return nil, err
	}
	s, err := e.load()
	if err != nil {
		e.Close()
		return nil, err
	}
	return s, nil
}

func (e *env) load() (*session, error) {
	snap, ok, err := e.store.Load(e.ctx)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("no vault deployed, run vaultctl deploy first")
	}

	vaultAddr, err := config.ParseAddress(snap.Vault.Pool.Vault)
	if err != nil {
		return nil, fmt.Errorf("state vault: %w", err)
	}
	tokenAddr, err := config.ParseAddress(snap.Vault.Pool.Token)
	if err != nil {
		return nil, fmt.Errorf("state token: %w", err)
	}
	rewardPool, err := config.ParseAddress(snap.Vault.Pool.RewardPool)
	if err != nil {
		return nil, fmt.Errorf("state reward pool: %w", err)
	}

	ledger := token.NewLedger(tokenAddr, vaultAddr, vaultAddr)
	if err := ledger.Restore(snap.Token); err != nil {
		return nil, fmt.Errorf("restore token ledger: %w", err)
	}

	s := &session{env: e, snap: snap, ledger: ledger, metrics: metrics.New()}
	clock, err := s.clock()
	if err != nil {
		return nil, err
	}

	schedule, err := vault.DefaultSchedule(e.cfg.Tax4dBps, e.cfg.Tax6dBps)
	if err != nil {
		s.closeChain()
		return nil, err
	}
	v, err := vault.New(vault.Config{Address: vaultAddr, RewardPool: rewardPool, Schedule: schedule}, ledger, clock, e.logger)
	if err != nil {
		s.closeChain()
		return nil, err
	}
	if err := v.Restore(snap.Vault); err != nil {
		s.closeChain()
		return nil, fmt.Errorf("restore vault: %w", err)
	}
	s.vault = v

	v.AddSink(s.metrics)
	if e.cfg.EventsOut != "" {
		out := storage.NewJsonlStorage(e.cfg.EventsOut)
		lastSeq, err := out.LastSeq()
		if err != nil {
			s.closeChain()
			return nil, err
		}
		journal, err := events.NewJournal(vaultAddr, out, lastSeq)
		if err != nil {
			s.closeChain()
			return nil, err
		}
		s.journal = &pendingEvents{next: journal}
		v.AddSink(s.journal)
	}
	return s, nil
}

func (s *session) clock() (vault.Clock, error) {
	if s.cfg.Clock != config.ClockChain {
		return vault.SystemClock{Offset: s.snap.ClockOffset}, nil
	}
	client, err := chain.NewClient(s.ctx, s.cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	s.chain = client
	return &chain.HeaderClock{Headers: client, MaxRetries: s.cfg.MaxRetries, BaseDelay: s.cfg.RetryBackoff}, nil
}

func (s *session) closeChain() {
	if s.chain != nil {
		s.chain.Close()
		s.chain = nil
	}
}

func (s *session) Close() {
	s.closeChain()
	s.env.Close()
}

// save persists the sandbox, then journals the events it contains and exports
// metrics.
func (s *session) save() error {
	snap := model.Snapshot{
		Vault:       s.vault.State(),
		Token:       s.ledger.State(),
		ClockOffset: s.snap.ClockOffset,
	}
	if err := s.store.Save(s.ctx, snap); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	s.snap = snap
	if s.journal != nil {
		if err := s.journal.flush(s.ctx); err != nil {
			return err
		}
	}
	return s.exportMetrics()
}

// pendingEvents holds vault events until the state that produced them is saved.
type pendingEvents struct {
	next    vault.EventSink
	pending []func(ctx context.Context) error
}

func (p *pendingEvents) OnDeposit(_ context.Context, ev vault.Deposit) error {
	p.pending = append(p.pending, func(ctx context.Context) error { return p.next.OnDeposit(ctx, ev) })
	return nil
}

func (p *pendingEvents) OnWithdrawal(_ context.Context, ev vault.Withdrawal) error {
	p.pending = append(p.pending, func(ctx context.Context) error { return p.next.OnWithdrawal(ctx, ev) })
	return nil
}

func (p *pendingEvents) flush(ctx context.Context) error {
	pending := p.pending
	p.pending = nil
	for _, emit := range pending {
		if err := emit(ctx); err != nil {
			return fmt.Errorf("write event journal: %w", err)
		}
	}
	return nil
}

func (s *session) exportMetrics() error {
	if s.cfg.MetricsOut == "" {
		return nil
	}
	shares, underlying := s.vault.Totals()
	s.metrics.ObservePool(shares, underlying)
	return s.metrics.WriteTextfile(s.cfg.MetricsOut)
}

func parseAccount(arg string) (common.Address, error) {
	return config.ParseAddress(arg)
}

func parseAmount(arg string) (*uint256.Int, error) {
	return vault.ParseAmount(arg)
}
