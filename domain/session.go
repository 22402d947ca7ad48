package domain

import "time"

// SessionClaims is the payload embedded in a session token. It is a snapshot
// taken at issuance: HasPlagueNFT reflects holder status at last login and
// changes only through a fresh login. The server keeps no session state; a
// session dies by expiry, not revocation.
type SessionClaims struct {
	IdentityID    string
	WalletAddress string
	DiscordID     string
	HasPlagueNFT  bool
	IssuedAt      time.Time
	ExpiresAt     time.Time
}
