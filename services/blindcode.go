package services

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"call-review-api/models"

	"gorm.io/gorm"
)

const (
	blindCodeRandomLength = 6
	blindCodeMaxRetries   = 10
	base36Alphabet        = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// AssignBlindCode sets the proposal's blind code on its first transition
// out of draft. It must run inside the same transaction as the status
// change so two concurrent submissions cannot race to the same sequence
// number. The code is immutable once set; calling this again is a no-op.
func AssignBlindCode(tx *gorm.DB, call *models.Call, proposal *models.Proposal) error {
	if proposal.BlindCode != nil && *proposal.BlindCode != "" {
		return nil
	}

	prefix := blindCodePrefix(call)

	var code string
	switch call.BlindCodeStrategy {
	case models.BlindCodeRandomShort:
		generated, err := randomBlindCode(tx, call.CallID, prefix)
		if err != nil {
			return err
		}
		code = generated
	default:
		// Sequential is the default strategy. The counter lives on the
		// call row and is advanced with a single atomic UPDATE, so the
		// read-increment-write is serialized by the store, not by
		// application code.
		if err := tx.Model(&models.Call{}).
			Where("call_id = ?", call.CallID).
			UpdateColumn("blind_code_seq", gorm.Expr("blind_code_seq + 1")).Error; err != nil {
			return err
		}
		var seq int
		if err := tx.Model(&models.Call{}).
			Where("call_id = ?", call.CallID).
			Select("blind_code_seq").
			Scan(&seq).Error; err != nil {
			return err
		}
		code = fmt.Sprintf("%s-%03d", prefix, seq)
	}

	proposal.BlindCode = &code
	return nil
}

// blindCodePrefix returns the call's configured prefix, defaulting to
// ED{currentYear}.
func blindCodePrefix(call *models.Call) string {
	if call.BlindCodePrefix != nil {
		if p := strings.TrimSpace(*call.BlindCodePrefix); p != "" {
			return p
		}
	}
	return fmt.Sprintf("ED%d", time.Now().Year())
}

// randomBlindCode draws {prefix}-{6 base36 chars}, retrying on collision
// within the call. Collision probability is small but non-zero; running
// out of retries is a validation failure, not a silent overwrite.
func randomBlindCode(tx *gorm.DB, callID int, prefix string) (string, error) {
	for attempt := 0; attempt < blindCodeMaxRetries; attempt++ {
		suffix, err := randomBase36(blindCodeRandomLength)
		if err != nil {
			return "", err
		}
		code := prefix + "-" + suffix

		var existing models.Proposal
		err = tx.Where("call_id = ? AND blind_code = ?", callID, code).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", NewValidationError("blind code generation exhausted retries")
}

func randomBase36(length int) (string, error) {
	var sb strings.Builder
	max := big.NewInt(int64(len(base36Alphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(base36Alphabet[n.Int64()])
	}
	return sb.String(), nil
}
