package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const timeout = 15 * time.Second

type Task struct {
	Name string
	Fn   func(context.Context) error
}

// Manager cancels the root context on SIGINT/SIGTERM and runs registered
// tasks in reverse registration order.
type Manager struct {
	cancelFunc context.CancelFunc
	tasks      []Task
	mu         sync.Mutex
	log        *zap.Logger
	done       chan struct{}
	exit       func(int)
}

func NewManager(ctx context.Context, log *zap.Logger) (context.Context, *Manager) {
	ctx, cancel := context.WithCancel(ctx)
	return ctx, &Manager{
		cancelFunc: cancel,
		log:        log,
		done:       make(chan struct{}),
		exit:       os.Exit,
	}
}

func (m *Manager) Register(name string, fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, Task{Name: name, Fn: fn})
}

func (m *Manager) StartListening() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		m.log.Info("received signal", zap.String("signal", sig.String()))
		m.Shutdown()
		m.exit(0)
	}()
}

// Shutdown runs every task once. Safe to call from tests.
func (m *Manager) Shutdown() {
	m.cancelFunc()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	m.mu.Lock()
	tasks := m.tasks
	m.tasks = nil
	m.mu.Unlock()

	for i := len(tasks) - 1; i >= 0; i-- {
		t := tasks[i]
		m.log.Info("shutting down", zap.String("task", t.Name))
		if err := t.Fn(ctx); err != nil {
			m.log.Error("shutdown task failed", zap.String("task", t.Name), zap.Error(err))
		}
	}
	m.log.Info("graceful shutdown complete")

	select {
	case <-m.done:
	default:
		close(m.done)
	}
}

// Wait blocks until Shutdown has finished.
func (m *Manager) Wait() {
	<-m.done
}
