package postgres

// Repositories groups concrete PostgreSQL repository implementations.
type Repositories struct {
	Users    *UserRepository
	Sessions *SessionRepository
}

// NewRepositories wires all repositories backed by the provided executor (usually a *pgxpool.Pool).
func NewRepositories(exec pgExecutor) *Repositories {
	return &Repositories{
		Users:    NewUserRepository(exec),
		Sessions: NewSessionRepository(exec),
	}
}
