package fetch

import "fmt"

// InvariantError is the panic value for wiring defects a query planner
// must have ruled out, such as a subgraph without a URL or transport.
type InvariantError struct {
	What    string
	Service string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("fetch: %s for subgraph %q", e.What, e.Service)
}
