package cryptox

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/dmitrijs2005/seqsubmit/internal/common"
)

// NewActivationToken returns a random hex token to be emailed to the user.
func NewActivationToken() (string, error) {
	return common.MakeRandHexString(common.ActivationTokenSize)
}

// HashToken is the form in which activation tokens are stored, so a leaked
// users table does not hand out working activation links.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
