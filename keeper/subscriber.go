package keeper

// Subscriber handles event subscriptions.
type Subscriber struct {
	done                    chan struct{}
	keeperStartedHandler    func(KeeperStarted)
	passStartedHandler      func(PassStarted)
	vaultRejectedHandler    func(VaultRejected)
	harvestCandidateHandler func(HarvestCandidate)
	vaultFailedHandler      func(VaultFailed)
	harvestExecutedHandler  func(HarvestExecuted)
	passCompletedHandler    func(PassCompleted)
	passFailedHandler       func(PassFailed)
	keeperShutdownHandler   func(KeeperShutdown)
}

// SubscriberOption registers one event handler
type SubscriberOption func(*Subscriber)

// OnKeeperStarted adds a handler for KeeperStarted events
func OnKeeperStarted(fn func(KeeperStarted)) SubscriberOption {
	return func(s *Subscriber) { s.keeperStartedHandler = then(s.keeperStartedHandler, fn) }
}

// OnPassStarted adds a handler for PassStarted events
func OnPassStarted(fn func(PassStarted)) SubscriberOption {
	return func(s *Subscriber) { s.passStartedHandler = then(s.passStartedHandler, fn) }
}

// OnVaultRejected adds a handler for VaultRejected events
func OnVaultRejected(fn func(VaultRejected)) SubscriberOption {
	return func(s *Subscriber) { s.vaultRejectedHandler = then(s.vaultRejectedHandler, fn) }
}

// OnHarvestCandidate adds a handler for HarvestCandidate events
func OnHarvestCandidate(fn func(HarvestCandidate)) SubscriberOption {
	return func(s *Subscriber) { s.harvestCandidateHandler = then(s.harvestCandidateHandler, fn) }
}

// OnVaultFailed adds a handler for VaultFailed events
func OnVaultFailed(fn func(VaultFailed)) SubscriberOption {
	return func(s *Subscriber) { s.vaultFailedHandler = then(s.vaultFailedHandler, fn) }
}

// OnHarvestExecuted adds a handler for HarvestExecuted events
func OnHarvestExecuted(fn func(HarvestExecuted)) SubscriberOption {
	return func(s *Subscriber) { s.harvestExecutedHandler = then(s.harvestExecutedHandler, fn) }
}

// OnPassCompleted adds a handler for PassCompleted events
func OnPassCompleted(fn func(PassCompleted)) SubscriberOption {
	return func(s *Subscriber) { s.passCompletedHandler = then(s.passCompletedHandler, fn) }
}

// OnPassFailed adds a handler for PassFailed events
func OnPassFailed(fn func(PassFailed)) SubscriberOption {
	return func(s *Subscriber) { s.passFailedHandler = then(s.passFailedHandler, fn) }
}

// OnKeeperShutdown adds a handler for KeeperShutdown events
func OnKeeperShutdown(fn func(KeeperShutdown)) SubscriberOption {
	return func(s *Subscriber) { s.keeperShutdownHandler = then(s.keeperShutdownHandler, fn) }
}

// NewSubscriber creates a Subscriber with the given options and starts the dispatch loop.
// Returns a closer function that waits for all events to be processed.
//
// Several handlers may be registered for the same event by passing the option twice;
// they run in the order given.
//
// Example:
//
//	closer := keeper.NewSubscriber(events,
//	  keeper.OnHarvestExecuted(func(e keeper.HarvestExecuted) { ... }),
//	)
//	defer closer()  // Ensures all events processed before exit
func NewSubscriber(events <-chan Event, opts ...SubscriberOption) func() {
	s := &Subscriber{
		done:                    make(chan struct{}),
		keeperStartedHandler:    func(KeeperStarted) {},
		passStartedHandler:      func(PassStarted) {},
		vaultRejectedHandler:    func(VaultRejected) {},
		harvestCandidateHandler: func(HarvestCandidate) {},
		vaultFailedHandler:      func(VaultFailed) {},
		harvestExecutedHandler:  func(HarvestExecuted) {},
		passCompletedHandler:    func(PassCompleted) {},
		passFailedHandler:       func(PassFailed) {},
		keeperShutdownHandler:   func(KeeperShutdown) {},
	}

	for _, opt := range opts {
		opt(s)
	}

	go func() {
		defer close(s.done)
		for ev := range events {
			switch e := ev.(type) {
			case KeeperStarted:
				s.keeperStartedHandler(e)
			case PassStarted:
				s.passStartedHandler(e)
			case VaultRejected:
				s.vaultRejectedHandler(e)
			case HarvestCandidate:
				s.harvestCandidateHandler(e)
			case VaultFailed:
				s.vaultFailedHandler(e)
			case HarvestExecuted:
				s.harvestExecutedHandler(e)
			case PassCompleted:
				s.passCompletedHandler(e)
			case PassFailed:
				s.passFailedHandler(e)
			case KeeperShutdown:
				s.keeperShutdownHandler(e)
			}
		}
	}()

	return func() {
		<-s.done
	}
}

// then runs first and then next for the same event
func then[E any](first, next func(E)) func(E) {
	return func(e E) {
		first(e)
		next(e)
	}
}
