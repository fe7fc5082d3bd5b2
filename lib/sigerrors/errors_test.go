package sigerrors

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, "ok", KindOf(nil))
	assert.Equal(t, "other", KindOf(errors.New("boom")))
	assert.Equal(t, "size_mismatch", KindOf(fmt.Errorf("%w: 1 != 2", ErrSizeMismatch)))
	assert.Equal(t, "eocd_not_found", KindOf(fmt.Errorf("file.apk: %w", ErrEOCDNotFound)))
}

func TestIO(t *testing.T) {
	assert.NoError(t, IO("read", nil))
	err := IO("reading footer", fs.ErrNotExist)
	assert.ErrorIs(t, err, ErrIO)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Equal(t, "io", KindOf(err))
	assert.Equal(t, "i/o error: reading footer: file does not exist", err.Error())
}
