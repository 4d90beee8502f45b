/*
Package resilience provides a circuit breaker for polling frontends.

# Overview

A device that stops answering makes every polling cycle wait for a network
timeout. The breaker counts consecutive failed cycles; once the threshold
is reached it opens and further cycles fail fast with ErrCircuitOpen until
the cooldown passes. The next cycle is then let through as a trial: success
closes the breaker, failure opens it for another cooldown.

# Usage

	breaker := resilience.New("ccu", resilience.Settings{
		FailureThreshold: 5,
		Cooldown:         time.Minute,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("breaker state", zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})

	err := breaker.Do(func() error {
		return poll(ctx)
	})

# States

	Closed --[threshold failures]-> Open --[cooldown]-> Half-Open --[success]-> Closed
	                                  ^                     |
	                                  +------[failure]------+
*/
package resilience
