package invoicing

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// maxNumberAttempts bounds the retries when a generated invoice number
// collides with an existing one.
const maxNumberAttempts = 5

var numberSpace = big.NewInt(1_000_000)

// GenerateNumber returns F-YYYYMM-NNNNNN with six random digits. The unique
// constraint on numero_facture decides whether the number is free.
func GenerateNumber(now time.Time) (string, error) {
	n, err := rand.Int(rand.Reader, numberSpace)
	if err != nil {
		return "", fmt.Errorf("generate invoice number: %w", err)
	}
	return fmt.Sprintf("F-%s-%06d", now.Format("200601"), n.Int64()), nil
}
