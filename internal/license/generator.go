package license

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/faucetdb/licensed/internal/model"
	"github.com/faucetdb/licensed/internal/store"
)

// Alphabet is the set of characters used in activation codes. It omits
// 0, O, 1 and I, which are easily confused when typed.
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	codeGroups    = 5
	codeGroupSize = 5

	// maxSlotAttempts bounds retries of a single batch slot that keeps
	// colliding with existing codes.
	maxSlotAttempts = 10
)

// Defaults applied by the admin surfaces to omitted generate fields.
const (
	DefaultLicenseType  = "standard"
	DefaultDurationDays = 365
	DefaultCount        = 1
)

// Generator mints batches of activation codes.
type Generator struct {
	store *store.Store
	opts  options
	read  func([]byte) (int, error)
}

// NewGenerator returns a Generator persisting to s.
func NewGenerator(s *store.Store, opts ...Option) *Generator {
	return &Generator{store: s, opts: buildOptions(opts), read: rand.Read}
}

// NewCode returns a random code of five dash-separated groups of five
// characters. len(Alphabet) is 32, so masking a random byte to five bits
// selects each character uniformly.
func NewCode() (string, error) {
	return newCode(rand.Read)
}

func newCode(read func([]byte) (int, error)) (string, error) {
	buf := make([]byte, codeGroups*codeGroupSize)
	if _, err := read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}

	var sb strings.Builder
	sb.Grow(codeGroups*codeGroupSize + codeGroups - 1)
	for i, b := range buf {
		if i > 0 && i%codeGroupSize == 0 {
			sb.WriteByte('-')
		}
		sb.WriteByte(Alphabet[b&31])
	}
	return sb.String(), nil
}

// ValidCodeFormat reports whether code has the shape produced by NewCode.
func ValidCodeFormat(code string) bool {
	if len(code) != codeGroups*codeGroupSize+codeGroups-1 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if (i+1)%(codeGroupSize+1) == 0 {
			if code[i] != '-' {
				return false
			}
			continue
		}
		if strings.IndexByte(Alphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}

// Generate validates req and inserts req.Count new codes in one
// transaction. Either every code is stored and returned, or none is.
func (g *Generator) Generate(ctx context.Context, req GenerateRequest) ([]model.ActivationCode, error) {
	req.LicenseType = strings.TrimSpace(req.LicenseType)
	if err := check(req); err != nil {
		return nil, err
	}

	var codes []model.ActivationCode
	err := g.store.InTx(ctx, func(tx *store.Tx) error {
		codes = make([]model.ActivationCode, 0, req.Count)
		now := g.opts.clock()
		for len(codes) < req.Count {
			c, err := g.insertSlot(ctx, tx, req, now)
			if err != nil {
				return err
			}
			codes = append(codes, *c)
		}
		return nil
	})
	if err != nil {
		return nil, asStorage(err)
	}

	g.opts.recorder.CodesGenerated(len(codes))
	g.opts.logger.Info("generated activation codes",
		"count", len(codes), "license_type", req.LicenseType, "duration", req.DurationDays)
	return codes, nil
}

// insertSlot stores one fresh code, drawing a new token whenever the
// previous one collides.
func (g *Generator) insertSlot(ctx context.Context, tx *store.Tx, req GenerateRequest, now time.Time) (*model.ActivationCode, error) {
	for attempt := 0; attempt < maxSlotAttempts; attempt++ {
		token, err := newCode(g.read)
		if err != nil {
			return nil, err
		}
		c := &model.ActivationCode{
			Code:         token,
			LicenseType:  req.LicenseType,
			DurationDays: req.DurationDays,
			CreatedAt:    now,
		}
		err = tx.InsertCode(ctx, c)
		if errors.Is(err, store.ErrDuplicate) {
			g.opts.logger.Debug("activation code collision, regenerating", "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, fmt.Errorf("no unique code after %d attempts", maxSlotAttempts)
}
