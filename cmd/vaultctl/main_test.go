package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const (
	deployer   = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	rewardPool = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
)

type sandbox struct {
	t    *testing.T
	dir  string
	base []string
}

func newSandbox(t *testing.T) *sandbox {
	dir := t.TempDir()
	return &sandbox{
		t:   t,
		dir: dir,
		base: []string{
			"--state-path", filepath.Join(dir, "state.json"),
			"--events-out", filepath.Join(dir, "events.jsonl"),
			"--metrics-out", filepath.Join(dir, "sushibar.prom"),
			"--log-level", "error",
		},
	}
}

func (s *sandbox) run(args ...string) (string, error) {
	s.t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, s.base...))
	err := root.Execute()
	return out.String(), err
}

func (s *sandbox) mustRun(args ...string) string {
	s.t.Helper()
	out, err := s.run(args...)
	if err != nil {
		s.t.Fatalf("%v: %v\n%s", args, err, out)
	}
	return out
}

func TestDeployPrintsAddresses(t *testing.T) {
	s := newSandbox(t)
	out := s.mustRun("deploy")
	if !strings.Contains(out, "Deployed Sushi Token at : 0x5FbDB2315678afecb367f032d93F642f64180aa3") {
		t.Fatalf("unexpected token address:\n%s", out)
	}
	if !strings.Contains(out, "Deployed SushiBar contract at : 0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512") {
		t.Fatalf("unexpected vault address:\n%s", out)
	}
	if _, err := s.run("deploy"); err == nil {
		t.Fatalf("expected second deploy without --force to fail")
	}
	s.mustRun("deploy", "--force")
}

func TestCommandsRequireDeployment(t *testing.T) {
	s := newSandbox(t)
	if _, err := s.run("info"); err == nil {
		t.Fatalf("expected error without deployment")
	}
}

func TestStakeLifecycle(t *testing.T) {
	s := newSandbox(t)
	s.mustRun("deploy", "--mint", "100000")
	s.mustRun("approve", deployer, "100000")

	out := s.mustRun("enter", deployer, "100000")
	if !strings.Contains(out, "minted 100000 shares") {
		t.Fatalf("unexpected enter output:\n%s", out)
	}

	if _, err := s.run("leave", deployer, "1"); err == nil || !strings.Contains(err.Error(), "cannot unstake before two days") {
		t.Fatalf("expected lock error, got %v", err)
	}

	s.mustRun("advance", "2d")
	if _, err := s.run("leave", deployer, "25001"); err == nil || !strings.Contains(err.Error(), "more than 25% before 4 days") {
		t.Fatalf("expected tier error, got %v", err)
	}
	out = s.mustRun("leave", deployer, "25000")
	if !strings.Contains(out, "paid 6250, tax 18750") {
		t.Fatalf("unexpected leave output:\n%s", out)
	}

	out = s.mustRun("balance", rewardPool)
	if !strings.Contains(out, "sushi:   18750") {
		t.Fatalf("reward pool balance:\n%s", out)
	}
	out = s.mustRun("balance", deployer)
	if !strings.Contains(out, "sushi:   6250") || !strings.Contains(out, "shares:  75000") {
		t.Fatalf("deployer balance:\n%s", out)
	}

	out = s.mustRun("info", deployer)
	if !strings.Contains(out, "total shares:     75000") || !strings.Contains(out, "withdrawable:   18750") {
		t.Fatalf("unexpected info:\n%s", out)
	}

	historyOut := filepath.Join(s.dir, "typed.jsonl")
	out = s.mustRun("history", "--history-out", historyOut, "--history-errors", filepath.Join(s.dir, "errors.jsonl"))
	if !strings.Contains(out, "decoded 2 events, 0 failed") {
		t.Fatalf("unexpected history output:\n%s", out)
	}
	data, err := os.ReadFile(historyOut)
	if err != nil {
		t.Fatalf("read history: %v", err)
	}
	if !strings.Contains(string(data), `"event_name":"Leave"`) {
		t.Fatalf("missing Leave event:\n%s", data)
	}

	metrics, err := os.ReadFile(filepath.Join(s.dir, "sushibar.prom"))
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(metrics), "sushibar_total_shares 75000") {
		t.Fatalf("unexpected metrics:\n%s", metrics)
	}
}

func TestSyncAbsorbsDonation(t *testing.T) {
	s := newSandbox(t)
	s.mustRun("deploy", "--mint", "1500")
	s.mustRun("approve", deployer, "1000")
	s.mustRun("enter", deployer, "1000")
	s.mustRun("transfer", deployer, "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512", "500")

	out := s.mustRun("sync")
	if !strings.Contains(out, "absorbed 500") {
		t.Fatalf("unexpected sync output:\n%s", out)
	}
	out = s.mustRun("info")
	if !strings.Contains(out, "total underlying: 1500") {
		t.Fatalf("unexpected info:\n%s", out)
	}
}

func TestFailedSaveLeavesJournalUntouched(t *testing.T) {
	s := newSandbox(t)
	s.mustRun("deploy", "--mint", "1000")
	s.mustRun("approve", deployer, "1000")

	// a directory at the temp path makes the state write fail
	tmp := filepath.Join(s.dir, "state.json.tmp")
	if err := os.Mkdir(tmp, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if _, err := s.run("enter", deployer, "1000"); err == nil || !strings.Contains(err.Error(), "save state") {
		t.Fatalf("expected save failure, got %v", err)
	}
	if err := os.Remove(tmp); err != nil {
		t.Fatalf("remove: %v", err)
	}

	out := s.mustRun("history", "--history-out", filepath.Join(s.dir, "typed.jsonl"), "--history-errors", filepath.Join(s.dir, "errors.jsonl"))
	if !strings.Contains(out, "decoded 0 events, 0 failed") {
		t.Fatalf("unsaved enter reached the journal:\n%s", out)
	}
	out = s.mustRun("info")
	if !strings.Contains(out, "total shares:     0") {
		t.Fatalf("unsaved enter reached the state:\n%s", out)
	}

	s.mustRun("enter", deployer, "1000")
	out = s.mustRun("history", "--history-out", filepath.Join(s.dir, "typed.jsonl"), "--history-errors", filepath.Join(s.dir, "errors.jsonl"))
	if !strings.Contains(out, "decoded 1 events, 0 failed") {
		t.Fatalf("unexpected history output:\n%s", out)
	}
}

func TestHistoryReportsDecodeErrorWriteFailure(t *testing.T) {
	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("no /dev/full")
	}
	s := newSandbox(t)
	if err := os.WriteFile(filepath.Join(s.dir, "events.jsonl"), []byte("not json\n"), 0o644); err != nil {
		t.Fatalf("write events: %v", err)
	}
	_, err := s.run("history", "--history-out", filepath.Join(s.dir, "typed.jsonl"), "--history-errors", "/dev/full")
	if err == nil {
		t.Fatalf("expected decode error write to fail")
	}
}

func TestAdvanceRejectsOverflow(t *testing.T) {
	s := newSandbox(t)
	s.mustRun("deploy")
	s.mustRun("advance", "2d")
	if _, err := s.run("advance", "213503982334601d"); err == nil || !strings.Contains(err.Error(), "overflow") {
		t.Fatalf("expected overflow error, got %v", err)
	}
	out := s.mustRun("advance", "1d")
	if !strings.Contains(out, "clock offset now 259200s") {
		t.Fatalf("unexpected advance output:\n%s", out)
	}
}
