package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"tg-monitor-bot/internal/domain"
	"tg-monitor-bot/internal/usecase/cleanup"
)

func TestOptionsRequireSelection(t *testing.T) {
	if _, err := (purgeFlags{}).options(); !errors.Is(err, cleanup.ErrNoChatsSelected) {
		t.Fatalf("ожидали ErrNoChatsSelected, получили %v", err)
	}
	opts, err := purgeFlags{only: []string{"-1001234", "-1001234"}, exclude: []string{"-42"}, dryRun: true}.options()
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if _, ok := opts.Only["1234"]; !ok || len(opts.Only) != 1 {
		t.Fatalf("only = %v", opts.Only)
	}
	if _, ok := opts.Exclude["42"]; !ok || !opts.DryRun {
		t.Fatalf("unexpected options: %+v", opts)
	}
}

func TestRootCmdParsesFlags(t *testing.T) {
	cmd := newRootCmd()
	if err := cmd.ParseFlags([]string{"--all", "--exclude", "1,2", "--dry-run"}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	all, _ := cmd.Flags().GetBool("all")
	exclude, _ := cmd.Flags().GetStringSlice("exclude")
	if !all || len(exclude) != 2 {
		t.Fatalf("all=%v exclude=%v", all, exclude)
	}
}

func TestPrintReport(t *testing.T) {
	report := cleanup.PurgeReport{
		RunID: "run-1",
		Chats: []cleanup.ChatReport{
			{Chat: domain.Chat{ID: 10, Title: "A"}, Found: 3, Result: domain.DeleteResult{Deleted: 3}},
			{Chat: domain.Chat{ID: 20, Title: "B"}, Err: domain.ErrPeerNotFound},
		},
		Found: 3,
		Total: domain.DeleteResult{Deleted: 3},
	}
	var buf bytes.Buffer
	printReport(&buf, report)
	out := buf.String()
	for _, want := range []string{"run-1", "удаление", "peer not resolved", "с ошибкой: 1", "удалено: 3"} {
		if !strings.Contains(out, want) {
			t.Errorf("отчёт не содержит %q:\n%s", want, out)
		}
	}
}
