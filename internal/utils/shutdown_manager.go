package utils

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

type ShutdownManager struct {
	cancelFunc    context.CancelFunc
	shutdownTasks []func(context.Context) error
	mu            sync.Mutex
	done          chan struct{}
}

func NewShutdownManager(ctx context.Context) (context.Context, *ShutdownManager) {
	ctx, cancel := context.WithCancel(ctx)
	manager := &ShutdownManager{
		cancelFunc: cancel,
		done:       make(chan struct{}),
	}
	return ctx, manager
}

func (sm *ShutdownManager) Register(task func(context.Context) error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.shutdownTasks = append(sm.shutdownTasks, task)
}

// Done is closed once every registered task has run.
func (sm *ShutdownManager) Done() <-chan struct{} {
	return sm.done
}

func (sm *ShutdownManager) StartListening() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("[SHUTDOWN] Received signal")
		sm.cancelFunc()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		sm.mu.Lock()
		defer sm.mu.Unlock()
		// Reverse order: the HTTP server goes down before the stores it uses.
		for i := len(sm.shutdownTasks) - 1; i >= 0; i-- {
			if err := sm.shutdownTasks[i](ctx); err != nil {
				log.Error().Err(err).Msg("[SHUTDOWN] Error during shutdown")
			}
		}

		log.Info().Msg("[SHUTDOWN] Graceful shutdown complete")
		close(sm.done)
	}()
}
