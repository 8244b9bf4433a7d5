package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// linkCodeGroupLengths defines the dash-joined group shape of a linking
// code, e.g. XXXXXX-XXXXX-XXXXXXXXX-XXXXXX-XXXXXX-XXXXX-XXXXXX.
var linkCodeGroupLengths = []int{6, 5, 9, 6, 6, 5, 6}

// randomToken returns n bytes of entropy, hex encoded.
func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("reading entropy: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func randomIndex(n int) (int, error) {
	idx, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("reading entropy: %w", err)
	}
	return int(idx.Int64()), nil
}

func randomLinkCode() (string, error) {
	groups := make([]string, 0, len(linkCodeGroupLengths))
	for _, length := range linkCodeGroupLengths {
		var sb strings.Builder
		for i := 0; i < length; i++ {
			idx, err := randomIndex(len(codeAlphabet))
			if err != nil {
				return "", err
			}
			sb.WriteByte(codeAlphabet[idx])
		}
		groups = append(groups, sb.String())
	}
	return strings.Join(groups, "-"), nil
}

// randomWords draws n distinct entries from the pool without replacement.
func randomWords(pool []string, n int) ([]string, error) {
	if n > len(pool) {
		n = len(pool)
	}
	remaining := make([]string, len(pool))
	copy(remaining, pool)

	words := make([]string, 0, n)
	for i := 0; i < n; i++ {
		idx, err := randomIndex(len(remaining))
		if err != nil {
			return nil, err
		}
		words = append(words, remaining[idx])
		remaining = append(remaining[:idx], remaining[idx+1:]...)
	}
	return words, nil
}
