package sl

import (
	"log/slog"
)

// Err creates a slog.Attr with the given error.
func Err(err error) slog.Attr {
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}

// Caller creates a slog.Attr with the account invoking an operation.
func Caller(account string) slog.Attr {
	return slog.Attr{
		Key:   "caller",
		Value: slog.StringValue(account),
	}
}
