/*
Package resilience provides the circuit breaker that guards calls to the
rempl server.

# Usage

	breaker := resilience.New("rempl-server", resilience.Settings{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Circuit breaker changed state",
				zap.String("name", name), zap.Stringer("from", from), zap.Stringer("to", to))
		},
	})

	resp, err := resilience.Call(breaker, func() (*resty.Response, error) {
		return req.Get(url)
	})

# States

	Closed --[failures]-> Open --[cooldown]-> Half-Open --[successes]-> Closed
	                                              |
	                                          [failure]
	                                              v
	                                             Open
*/
package resilience
