package sl_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quantapay/payrolld/internal/lib/logger/sl"
)

func TestErr(t *testing.T) {
	t.Parallel()

	attr := sl.Err(errors.New("boom"))

	assert.Equal(t, "error", attr.Key)
	assert.Equal(t, slog.KindString, attr.Value.Kind())
	assert.Equal(t, "boom", attr.Value.String())
}

func TestCaller(t *testing.T) {
	t.Parallel()

	attr := sl.Caller("0xfeedc0de")

	assert.Equal(t, "caller", attr.Key)
	assert.Equal(t, "0xfeedc0de", attr.Value.String())
}
