// Package trust turns the outcome of an external holder check into the
// single flag that gates write access. Each login path evaluates only its
// own check, and every login recomputes trust from the live source: a
// previously-true flag is overwritten by a false result, so selling the
// gating asset ends write access at the next login.
package trust

// Source names which external check produced a trust level.
type Source string

const (
	SourceWalletNFT   Source = "wallet_nft"
	SourceDiscordRole Source = "discord_role"
)

// Level is the trust computed for one login.
type Level struct {
	Verified bool
	Source   Source
}

// FromOwnership maps an on-chain ownership check to a trust level. Wallet
// logins never consult Discord role state.
func FromOwnership(owns bool) Level {
	return Level{Verified: owns, Source: SourceWalletNFT}
}

// FromRole maps a guild role check to a trust level. Discord logins never
// consult on-chain ownership.
func FromRole(hasRole bool) Level {
	return Level{Verified: hasRole, Source: SourceDiscordRole}
}

// ResultOrFalse collapses an errored check to "not verified". Every external
// trust check is wrapped in this: ambiguity never grants access.
func ResultOrFalse(ok bool, err error) bool {
	if err != nil {
		return false
	}
	return ok
}
