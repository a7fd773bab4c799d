package scraper

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"melhor-casa/models"
	"melhor-casa/services"
	"melhor-casa/storage"
	"melhor-casa/utils"
)

func newTestRunner(t *testing.T, script string) (*Runner, string) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()
	logger := utils.NopLogger()
	r := NewRunner(Options{
		Command: []string{"sh", "-c", script},
		Dir:     dir,
		Output:  "imoveis_consolidado.xlsx",
	}, services.NewMapper(logger), logger)
	return r, dir
}

func writeOutput(t *testing.T, dir string, props []models.Property) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, "imoveis_consolidado.xlsx"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := storage.WriteWorkbook(f, props); err != nil {
		t.Fatal(err)
	}
}

func waitDone(t *testing.T, r *Runner) models.ScrapeStatus {
	t.Helper()
	select {
	case <-r.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("process did not finish")
	}
	return r.Status()
}

func TestRunnerInitialStatus(t *testing.T) {
	r, _ := newTestRunner(t, "true")
	st := r.Status()
	if st.IsRunning || st.Completed || st.Progress != "Pausado" {
		t.Errorf("initial status: %+v", st)
	}
	if _, err := r.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Stop while idle: got %v", err)
	}
}

func TestRunnerSuccessCountsOutput(t *testing.T) {
	r, dir := newTestRunner(t, "echo 'Página 1'; echo ''; echo 'Página 2'")
	writeOutput(t, dir, []models.Property{
		{Name: "Casa A", Link: "https://x/1"},
		{Name: "Casa B", Link: "https://x/2"},
	})

	st, err := r.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !st.IsRunning || st.StartTime == nil {
		t.Errorf("started status: %+v", st)
	}

	st = waitDone(t, r)
	if st.IsRunning || !st.Completed {
		t.Errorf("final flags: %+v", st)
	}
	if st.TotalProperties != 2 || st.Progress != "Scraping concluído! 2 imóveis coletados." {
		t.Errorf("final progress: %+v", st)
	}
}

func TestRunnerNonZeroExit(t *testing.T) {
	r, _ := newTestRunner(t, "echo falhou 1>&2; exit 3")
	if _, err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	st := waitDone(t, r)
	if st.Progress != "Scraping finalizado com erro (código: 3)" {
		t.Errorf("progress: %q", st.Progress)
	}
	if st.Error != "Process exited with code 3" {
		t.Errorf("error: %q", st.Error)
	}
	if st.ExitCode == nil || *st.ExitCode != 3 || st.Succeeded() {
		t.Errorf("exit code: %+v", st)
	}
}

func TestRunnerFailedRunKeepsPreviousWorkbookOut(t *testing.T) {
	r, dir := newTestRunner(t, "echo aviso 1>&2; exit 3")
	writeOutput(t, dir, []models.Property{{Name: "Casa antiga", Link: "https://x/old"}})

	if err := r.Err(); !errors.Is(err, ErrNoFinishedRun) {
		t.Errorf("before any run: got %v", err)
	}
	if _, err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitDone(t, r)

	if err := r.Err(); !errors.Is(err, ErrRunFailed) {
		t.Fatalf("failed run: got %v, want ErrRunFailed", err)
	}
	// The stale workbook is still readable; callers must check Err first.
	if props, err := r.Import(); err != nil || len(props) != 1 {
		t.Errorf("stale import: %d props, %v", len(props), err)
	}
}

func TestRunnerStderrDoesNotFailCleanExit(t *testing.T) {
	r, dir := newTestRunner(t, "echo 'DeprecationWarning' 1>&2; exit 0")
	writeOutput(t, dir, []models.Property{{Name: "Casa", Link: "https://x/1"}})

	if _, err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	st := waitDone(t, r)
	if st.Error == "" {
		t.Errorf("stderr line should be reported: %+v", st)
	}
	if err := r.Err(); err != nil {
		t.Errorf("clean exit with stderr noise: got %v", err)
	}
}

func TestRunnerRejectsSecondStartAndStops(t *testing.T) {
	r, _ := newTestRunner(t, "exec sleep 30")
	if _, err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := r.Start(); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start: got %v", err)
	}

	st, err := r.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if st.IsRunning || st.Progress != "Scraping interrompido pelo usuário" {
		t.Errorf("after Stop: %+v", st)
	}

	st = waitDone(t, r)
	if !st.Completed || st.Progress != "Scraping interrompido pelo usuário" {
		t.Errorf("after exit: %+v", st)
	}
	if err := r.Err(); !errors.Is(err, ErrRunFailed) {
		t.Errorf("stopped run: got %v, want ErrRunFailed", err)
	}
}

func TestRunnerImport(t *testing.T) {
	r, dir := newTestRunner(t, "true")
	if _, err := r.Import(); !errors.Is(err, ErrOutputMissing) {
		t.Fatalf("missing output: got %v", err)
	}

	writeOutput(t, dir, []models.Property{
		{Name: "Apto Savassi", Price: "R$ 450.000", Area: "70 m²", Link: "https://x/1"},
	})
	props, err := r.Import()
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(props) != 1 || props[0].Name != "Apto Savassi" || props[0].Price != "R$ 450.000" {
		t.Errorf("imported: %+v", props)
	}
}
