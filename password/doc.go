// Package password implements password hashing and verification with Argon2id.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Verification reads parameters out of the stored string, so cost upgrades
// never invalidate existing hashes. [Hasher.NeedsUpgrade] reports hashes
// minted under weaker parameters than the current configuration.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (minimum
// length for new passwords) is enforced by the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve credentials; callers supply plaintext and receive hashes.
//   - Import any other authkit package.
//   - Log plaintext passwords or derived keys.
package password
