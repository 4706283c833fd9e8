package surface

import (
	"context"

	"github.com/GriffinCanCode/AgentOS/webterm/internal/infrastructure/resilience"
)

// Guarded wraps f so that repeated creation failures open breaker and
// later calls fail fast with resilience.ErrOpen.
func Guarded(f Factory, breaker *resilience.Breaker) Factory {
	return func(ctx context.Context) (Surface, error) {
		return resilience.Call(breaker, func() (Surface, error) {
			return f(ctx)
		})
	}
}
