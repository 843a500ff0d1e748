package cmd

import (
	"encoding/json"
	"os"

	"go.uber.org/zap"

	"github.com/spigell/cv-screener/internal/apperr"
)

// printJSON writes v to stdout so the output can be piped.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// fail logs a failed operation with its public kind and exits.
func fail(lg *zap.Logger, msg string, err error) {
	pub := apperr.Public(err)
	lg.Fatal(msg,
		zap.String("kind", string(pub.Kind)),
		zap.String("reason", pub.Message),
		zap.Error(err),
	)
}
