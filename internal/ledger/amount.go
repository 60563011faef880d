package ledger

import (
	"fmt"
	"math/big"

	"liquidityLedger/internal/model"
)

// ScaleAmount renders a raw integer amount as a decimal string with exactly decimals fraction
// digits.
func ScaleAmount(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	if decimals == 0 {
		return value.String()
	}
	sign := value.Sign()
	abs := new(big.Int).Abs(value)
	rat := new(big.Rat).SetFrac(abs, pow10(decimals))
	text := rat.FloatString(int(decimals))
	if sign < 0 {
		return "-" + text
	}
	return text
}

// UnscaleAmount parses a decimal string back into the raw integer amount. It rejects values
// with more precision than decimals allows.
func UnscaleAmount(text string, decimals uint8) (*big.Int, error) {
	rat, ok := new(big.Rat).SetString(text)
	if !ok {
		return nil, fmt.Errorf("invalid decimal amount %q", text)
	}
	rat.Mul(rat, new(big.Rat).SetInt(pow10(decimals)))
	if !rat.IsInt() {
		return nil, fmt.Errorf("amount %q exceeds %d decimals", text, decimals)
	}
	return new(big.Int).Set(rat.Num()), nil
}

func pow10(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}

func tokenAmount(token model.Token, account string, amount *big.Int) model.TokenAmount {
	amount = bigOrZero(amount)
	return model.TokenAmount{
		ID:      TokenAmountID(token.ID, account, amount),
		Token:   token.ID,
		Account: account,
		Amount:  amount,
		Scaled:  ScaleAmount(amount, token.Decimals),
	}
}
