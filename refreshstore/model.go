package refreshstore

// Record is the server-side state of one issued refresh token, keyed by jti.
// Lineage ties the record to the login it descends from; Parent is the jti the
// token was rotated from, empty for a login-issued root. Consumed flips
// exactly once, inside the consume script.
type Record struct {
	JTI              string
	Subject          string
	Lineage          string
	Parent           string
	IssuedAt         int64
	ExpiresAt        int64
	LineageCreatedAt int64
	Consumed         bool
}
