package domain

// Principal is the authenticated caller, established by the upstream
// auth layer before the core is invoked.
type Principal struct {
	ID   string
	Role string
}
