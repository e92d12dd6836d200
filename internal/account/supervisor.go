package account

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/NeoArcanjo/ex-banking/internal/directory"
)

// Config carries the tunables shared by every actor the supervisor starts.
type Config struct {
	// AdmissionLimit bounds in-flight asynchronous requests per account.
	// Zero means DefaultAdmissionLimit.
	AdmissionLimit int

	// TransferDeadline bounds the sender's wait for a credit confirmation.
	// Zero means DefaultTransferDeadline.
	TransferDeadline time.Duration

	// MailboxSize is the actor mailbox buffer. Zero means
	// DefaultMailboxSize.
	MailboxSize int
}

// Supervisor creates account actors on demand and owns their goroutines.
// Its restart policy is restart-on-crash-only: an actor that panics while
// handling a request is restarted in place with a fresh empty ledger under
// the same identity and mailbox; an actor that stops normally is not.
type Supervisor struct {
	dir *directory.Directory[*Actor]
	cfg Config
	log *zap.Logger

	mu     sync.Mutex
	actors []*Actor
	wg     sync.WaitGroup
}

// NewSupervisor returns a supervisor registering its actors in dir.
func NewSupervisor(dir *directory.Directory[*Actor], cfg Config, log *zap.Logger) *Supervisor {
	if log == nil {
		log = zap.NewNop()
	}

	return &Supervisor{dir: dir, cfg: cfg, log: log}
}

// EnsureStarted registers identity in the directory and starts its actor
// with an empty ledger. Registration decides races: of any number of
// concurrent calls for one identity, exactly one starts an actor and the
// rest get directory.ErrAlreadyRegistered.
func (s *Supervisor) EnsureStarted(identity string) (*Actor, error) {
	a := newActor(identity, s.cfg, s.log)

	if err := s.dir.Register(identity, a); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.actors = append(s.actors, a)
	s.mu.Unlock()

	s.wg.Add(1)
	go s.serve(a)

	return a, nil
}

// serve runs the actor until normal termination, applying the restart
// policy. Account state does not survive a crash: the restarted actor sees
// an empty ledger, which is the documented data-loss point of this design.
// Requests still queued in the mailbox are served against the fresh state.
func (s *Supervisor) serve(a *Actor) {
	defer s.wg.Done()

	for a.run() {
		a.reset()

		s.log.Warn("account actor restarted with empty state after crash",
			zap.String("identity", a.identity))
	}
}

// Shutdown stops every actor normally and waits for their goroutines, or
// returns early with the context's error.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	actors := make([]*Actor, len(s.actors))
	copy(actors, s.actors)
	s.mu.Unlock()

	for _, a := range actors {
		if err := a.Stop(ctx); err != nil {
			return err
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
