package password

// Hasher is the one-way credential capability. Verify must never reveal why a
// comparison failed.
type Hasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
}
