package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"melhor-casa/config"
	"melhor-casa/models"
	"melhor-casa/state"
	"melhor-casa/storage"
	"melhor-casa/utils"
)

// newTestProfile stores two unseen records and one liked record in a fresh
// profile directory and points the CLI at it.
func newTestProfile(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	logger = utils.NopLogger()
	cfg = &config.Config{ProfileDir: dir}

	kv, err := storage.NewFileKV(dir, logger)
	if err != nil {
		t.Fatalf("NewFileKV: %v", err)
	}
	app := state.New(logger)
	rows := []models.Row{
		{"Título": "Apartamento Savassi", "Preço": "R$ 500.000", "Link": "https://olx.com.br/1"},
		{"Título": "Casa Pampulha", "Preço": "R$ 900.000", "Link": "https://olx.com.br/2"},
		{"Título": "Loft Centro", "Preço": "R$ 300.000", "Link": "https://olx.com.br/3"},
	}
	if _, _, err := app.ImportRows("olx", rows); err != nil {
		t.Fatalf("ImportRows: %v", err)
	}
	liked := app.Partition(models.StatusUnseen)[2]
	if _, err := app.Like(liked.ID); err != nil {
		t.Fatalf("Like: %v", err)
	}
	if err := state.Persist(kv, app, state.AllKeys...); err != nil {
		t.Fatalf("Persist: %v", err)
	}
}

func runExport(t *testing.T, args ...string) []string {
	t.Helper()
	out := filepath.Join(t.TempDir(), "export.xlsx")
	cmd := createExportCmd()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetArgs(append([]string{"-o", out}, args...))
	if err := cmd.Execute(); err != nil {
		t.Fatalf("export %v: %v", args, err)
	}

	rows, err := storage.ReadWorkbookFile(out)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		names = append(names, r["Nome"])
	}
	return names
}

func TestExportDefaultsToWorkingSet(t *testing.T) {
	newTestProfile(t)

	got := runExport(t)
	if strings.Join(got, "|") != "Apartamento Savassi|Casa Pampulha" {
		t.Errorf("default export: got %v, want the unseen records", got)
	}
}

func TestExportStatusScopes(t *testing.T) {
	newTestProfile(t)

	tests := []struct {
		status string
		want   string
	}{
		{"liked", "Loft Centro"},
		{"disliked", ""},
		{"all", "Apartamento Savassi|Casa Pampulha|Loft Centro"},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			got := runExport(t, "--status", tt.status)
			if strings.Join(got, "|") != tt.want {
				t.Errorf("got %v, want %q", got, tt.want)
			}
		})
	}
}

func TestExportRejectsUnknownStatus(t *testing.T) {
	newTestProfile(t)

	cmd := createExportCmd()
	cmd.SetArgs([]string{"-o", filepath.Join(t.TempDir(), "x.xlsx"), "--status", "favorite"})
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	if err := cmd.Execute(); err == nil {
		t.Error("unknown status should fail")
	}
}
