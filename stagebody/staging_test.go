package stagebody

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestMapForWriteOrReuseSkipsRemapWhenPersistent covers spec §4.4's
// PersistentMapping contract: once a buffer is already mapped, a
// persistent-mapping backend must not re-enter the MapAsync/poll path — it
// hands back the existing range directly. The nil *wgpu.Device argument
// would panic if this ever fell through to mapForWrite, so a passing test
// proves the short-circuit fired.
func TestMapForWriteOrReuseSkipsRemapWhenPersistent(t *testing.T) {
	sb := &stagingBuffer{size: 4, mapped: []byte{1, 2, 3, 4}}

	view, err := mapForWriteOrReuse(nil, sb, true)

	assert.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, view)
}

// TestMapForReadOrReuseSkipsRemapWhenPersistent is the read-side
// counterpart.
func TestMapForReadOrReuseSkipsRemapWhenPersistent(t *testing.T) {
	sb := &stagingBuffer{size: 4, mapped: []byte{5, 6, 7, 8}}

	view, err := mapForReadOrReuse(nil, sb, true)

	assert.NoError(t, err)
	assert.Equal(t, []byte{5, 6, 7, 8}, view)
}
