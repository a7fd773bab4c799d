// Package scraper controls the external scraping job and imports the
// consolidated workbook it leaves behind.
package scraper

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"melhor-casa/models"
	"melhor-casa/services"
	"melhor-casa/storage"
	"melhor-casa/utils"
)

var (
	ErrAlreadyRunning = errors.New("scraper: already running")
	ErrNotRunning     = errors.New("scraper: not running")
	ErrOutputMissing  = errors.New("scraper: output workbook not found")
	ErrNoFinishedRun  = errors.New("scraper: no finished run")
	ErrRunFailed      = errors.New("scraper: run failed")
)

const (
	progressIdle     = "Pausado"
	progressStarting = "Iniciando scraping..."
	progressStopped  = "Scraping interrompido pelo usuário"

	waitDelay = 5 * time.Second
)

// Options configures a Runner. Output is resolved against Dir when relative.
type Options struct {
	Command []string
	Dir     string
	Output  string
}

func (o Options) outputPath() string {
	if filepath.IsAbs(o.Output) || o.Dir == "" {
		return o.Output
	}
	return filepath.Join(o.Dir, o.Output)
}

// Runner runs at most one scraping process at a time and tracks its progress.
type Runner struct {
	opts   Options
	mapper *services.Mapper
	logger *utils.Logger
	now    func() time.Time

	mu      sync.Mutex
	status  models.ScrapeStatus
	cmd     *exec.Cmd
	stopped bool
	done    chan struct{}
}

// NewRunner returns an idle Runner. Imported workbooks are mapped with the
// scraper site columns.
func NewRunner(opts Options, mapper *services.Mapper, logger *utils.Logger) *Runner {
	return &Runner{
		opts:   opts,
		mapper: mapper,
		logger: logger,
		now:    time.Now,
		status: models.ScrapeStatus{Progress: progressIdle},
	}
}

// Start launches the configured command. The process outlives the caller;
// use Stop to end it early.
func (r *Runner) Start() (models.ScrapeStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status.IsRunning || r.cmd != nil {
		return r.status, ErrAlreadyRunning
	}
	if len(r.opts.Command) == 0 {
		return r.status, fmt.Errorf("scraper: no command configured")
	}

	stdout, stdoutW := io.Pipe()
	stderr, stderrW := io.Pipe()
	cmd := exec.Command(r.opts.Command[0], r.opts.Command[1:]...)
	cmd.Dir = r.opts.Dir
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW
	// Children that outlive the process must not hold Wait forever.
	cmd.WaitDelay = waitDelay

	now := r.now()
	r.status = models.ScrapeStatus{
		IsRunning:  true,
		Progress:   progressStarting,
		StartTime:  &now,
		LastUpdate: &now,
	}
	if err := cmd.Start(); err != nil {
		stdoutW.Close()
		stderrW.Close()
		r.status.IsRunning = false
		r.status.Error = err.Error()
		return r.status, fmt.Errorf("scraper: start %s: %w", r.opts.Command[0], err)
	}

	r.cmd = cmd
	r.stopped = false
	r.done = make(chan struct{})
	r.logger.Info("[scraper] Started %s (pid %d)", strings.Join(r.opts.Command, " "), cmd.Process.Pid)

	var readers sync.WaitGroup
	readers.Add(2)
	go func() {
		defer readers.Done()
		r.follow(stdout, r.setProgress)
	}()
	go func() {
		defer readers.Done()
		r.follow(stderr, r.setError)
	}()
	go r.wait(cmd, &readers, r.done, stdoutW, stderrW)

	return r.status, nil
}

func (r *Runner) follow(rd io.Reader, set func(line string)) {
	sc := bufio.NewScanner(rd)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			set(line)
		}
	}
}

func (r *Runner) setProgress(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	r.status.Progress = line
	r.status.LastUpdate = &now
}

func (r *Runner) setError(line string) {
	r.logger.Warn("[scraper] stderr: %s", line)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.Error = line
}

func (r *Runner) wait(cmd *exec.Cmd, readers *sync.WaitGroup, done chan struct{}, pipes ...io.Closer) {
	err := cmd.Wait()
	for _, p := range pipes {
		p.Close()
	}
	readers.Wait()

	code := 0
	if err != nil && !errors.Is(err, exec.ErrWaitDelay) {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}

	var total int
	var countErr error
	if code == 0 {
		total, countErr = r.countOutput()
	}

	r.mu.Lock()
	now := r.now()
	r.status.IsRunning = false
	r.status.Completed = true
	r.status.ExitCode = &code
	r.status.Stopped = r.stopped
	r.status.LastUpdate = &now
	switch {
	case r.stopped:
		r.status.Progress = progressStopped
	case code == 0 && countErr == nil:
		r.status.TotalProperties = total
		r.status.Progress = fmt.Sprintf("Scraping concluído! %d imóveis coletados.", total)
	case code == 0:
		r.status.Progress = "Scraping concluído com sucesso!"
		r.logger.Warn("[scraper] Could not count output: %v", countErr)
	default:
		r.status.Progress = fmt.Sprintf("Scraping finalizado com erro (código: %d)", code)
		r.status.Error = fmt.Sprintf("Process exited with code %d", code)
	}
	r.cmd = nil
	r.mu.Unlock()

	r.logger.Info("[scraper] Finished with code %d", code)
	close(done)
}

func (r *Runner) countOutput() (int, error) {
	rows, err := storage.ReadWorkbookFile(r.opts.outputPath())
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// Stop sends SIGTERM to the running process.
func (r *Runner) Stop() (models.ScrapeStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd == nil || !r.status.IsRunning {
		return r.status, ErrNotRunning
	}
	if err := r.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		if killErr := r.cmd.Process.Kill(); killErr != nil {
			return r.status, fmt.Errorf("scraper: stop: %w", err)
		}
	}

	now := r.now()
	r.stopped = true
	r.status.IsRunning = false
	r.status.Progress = progressStopped
	r.status.LastUpdate = &now
	r.logger.Info("[scraper] Stop requested")
	return r.status, nil
}

// Status returns a snapshot of the current run.
func (r *Runner) Status() models.ScrapeStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Done is closed when the current run's process has exited. It is nil
// before the first Start.
func (r *Runner) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// Err reports how the last run ended: nil after a clean exit, ErrRunFailed
// after a non-zero exit or a stop, ErrNoFinishedRun while none has ended.
// The workbook left on disk belongs to an earlier run unless Err is nil.
func (r *Runner) Err() error {
	st := r.Status()
	switch {
	case !st.Completed || st.IsRunning || r.Running():
		return ErrNoFinishedRun
	case st.Stopped:
		return fmt.Errorf("%w: %s", ErrRunFailed, st.Progress)
	case !st.Succeeded():
		return fmt.Errorf("%w: %s", ErrRunFailed, st.Error)
	}
	return nil
}

// Running reports whether a process is still attached.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cmd != nil
}

// Import reads the consolidated workbook and maps it into properties.
func (r *Runner) Import() ([]models.Property, error) {
	path := r.opts.outputPath()
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrOutputMissing, path)
		}
		return nil, fmt.Errorf("scraper: stat %s: %w", path, err)
	}

	rows, err := storage.ReadWorkbookFile(path)
	if err != nil {
		return nil, fmt.Errorf("scraper: import: %w", err)
	}
	props, err := r.mapper.MapRows(services.SiteScraper, rows)
	if err != nil {
		return nil, fmt.Errorf("scraper: import: %w", err)
	}
	return props, nil
}
