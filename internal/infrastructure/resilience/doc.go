/*
Package resilience provides a circuit breaker.

The server wraps surface creation in a Breaker: when the browser cannot
be launched several times in a row, new buffers fail fast with ErrOpen
until the cooldown passes and a probe succeeds.

	Closed --[Trip]--> Open --[Cooldown]--> Half-Open --[MaxProbes successes]--> Closed
	                                            |
	                                        [failure]
	                                            v
	                                          Open
*/
package resilience
