// Package pool — запуск N независимых процессов-воркеров и ожидание их
// завершения. Воркеры не разделяют память; всё распределение партиций
// делает consumer group на стороне Kafka.
package pool

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/Gunvolt24/kafka2hec/internal/ports"
)

// WorkerEnv — переменная окружения, помечающая дочерний процесс как воркер
// и задающая его номер.
const WorkerEnv = "KAFKA2HEC_WORKER"

// WorkerID — номер воркера из окружения; ok=false в родительском процессе.
func WorkerID() (int, bool) {
	v, set := os.LookupEnv(WorkerEnv)
	if !set {
		return 0, false
	}
	id, err := strconv.Atoi(v)
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}

// Worker — хэндл одного запущенного процесса.
type Worker struct {
	ID  int
	cmd *exec.Cmd
}

// Wait блокирует до завершения процесса воркера.
func (w *Worker) Wait() error { return w.cmd.Wait() }

// Pool перезапускает собственный бинарник в режиме воркера нужное число
// раз. Упавшие воркеры не перезапускаются — это работа внешнего
// супервизора процессов.
type Pool struct {
	workers    int
	configPath string
	log        ports.Logger
	// newCommand подменяется в тестах; по умолчанию — re-exec самого себя.
	newCommand func(ctx context.Context, id int) (*exec.Cmd, error)
}

// New — конструктор; workers < 1 поднимается до 1.
func New(workers int, configPath string, log ports.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{workers: workers, configPath: configPath, log: log}
	p.newCommand = p.selfExec
	return p
}

// selfExec собирает команду воркера: тот же бинарник, тот же конфиг,
// номер воркера в окружении. При отмене контекста ребёнку уходит SIGTERM,
// через WaitDelay — SIGKILL.
func (p *Pool) selfExec(ctx context.Context, id int) (*exec.Cmd, error) {
	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable: %w", err)
	}

	cmd := exec.CommandContext(ctx, self, "--config", p.configPath)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), fmt.Sprintf("%s=%d", WorkerEnv, id))
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = 10 * time.Second
	return cmd, nil
}

// Launch стартует всех воркеров и возвращает их хэндлы (хэндлы — явная
// собственность вызывающего, глобального списка процессов нет).
// При частичном старте уже запущенные воркеры гасятся, ошибка возвращается.
func (p *Pool) Launch(ctx context.Context) ([]*Worker, error) {
	workers := make([]*Worker, 0, p.workers)

	for i := 0; i < p.workers; i++ {
		cmd, err := p.newCommand(ctx, i)
		if err == nil {
			err = cmd.Start()
		}
		if err != nil {
			for _, w := range workers {
				_ = w.cmd.Process.Signal(syscall.SIGTERM)
				_ = w.cmd.Wait()
			}
			return nil, fmt.Errorf("start worker %d: %w", i, err)
		}

		p.log.Infof(ctx, "worker %d started pid=%d", i, cmd.Process.Pid)
		workers = append(workers, &Worker{ID: i, cmd: cmd})
	}

	return workers, nil
}

// Wait присоединяется ко всем воркерам; ошибка — если хоть один завершился
// ненулевым кодом.
func (p *Pool) Wait(ctx context.Context, workers []*Worker) error {
	var wg sync.WaitGroup
	errs := make([]error, len(workers))

	for i, w := range workers {
		wg.Add(1)
		go func(i int, w *Worker) {
			defer wg.Done()
			if err := w.Wait(); err != nil {
				p.log.Errorf(ctx, "worker %d exited: %v", w.ID, err)
				errs[i] = fmt.Errorf("worker %d: %w", w.ID, err)
			} else {
				p.log.Infof(ctx, "worker %d exited cleanly", w.ID)
			}
		}(i, w)
	}
	wg.Wait()

	return errors.Join(errs...)
}

// Run — запуск и ожидание одним вызовом.
func (p *Pool) Run(ctx context.Context) error {
	workers, err := p.Launch(ctx)
	if err != nil {
		return err
	}
	return p.Wait(ctx, workers)
}
