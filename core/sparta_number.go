package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marcmoiagese/SpartaClaims/db"
)

// spartaNumberAttempts és el nombre de transaccions que es proven quan dues altes
// concurrents llegeixen el mateix màxim.
const spartaNumberAttempts = 2

// errSpartaNumberTaken marca el conflicte d'unicitat sobre un número acabat de generar.
var errSpartaNumberTaken = errors.New("sparta number taken")

func spartaPrefix(year int) string {
	return fmt.Sprintf("SPARTA/%d/", year)
}

// formatSpartaNumber genera SPARTA/{any}/{seqüència de 4 xifres}.
func formatSpartaNumber(year, seq int) string {
	return fmt.Sprintf("%s%04d", spartaPrefix(year), seq)
}

// nextSpartaNumber llegeix el número més alt de l'any en curs i n'incrementa el sufix.
func nextSpartaNumber(ctx context.Context, h db.Handle, now time.Time) (string, error) {
	year := now.Year()
	last, err := db.MaxSpartaSequence(ctx, h, spartaPrefix(year))
	if err != nil {
		return "", fmt.Errorf("error llegint la seqüència Sparta: %w", err)
	}
	return formatSpartaNumber(year, last+1), nil
}
