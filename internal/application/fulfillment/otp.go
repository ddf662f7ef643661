package fulfillment

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain"
)

// GeneratePickupOTP genera un código numérico de recogida de n dígitos
// (con ceros a la izquierda) usando crypto/rand.
func GeneratePickupOTP(digits int) (string, error) {
	if digits <= 0 || digits > 10 {
		return "", fmt.Errorf("dígitos de OTP fuera de rango (%d): %w", digits, domain.ErrInvalidInput)
	}
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("generar OTP: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}
