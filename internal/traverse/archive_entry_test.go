package traverse

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/deepwalk/deepwalk/internal/format"
	"github.com/deepwalk/deepwalk/internal/node"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capturingVisitor records the single node passed to Visit, for
// whitebox inspection of lazily-bound properties. It always prunes, so
// these tests exercise property binding without triggering a real
// archive/compressed decode of the deliberately-malformed fixture bytes.
type capturingVisitor struct {
	node *node.Node
}

func (v *capturingVisitor) Visit(_ context.Context, n *node.Node) error {
	v.node = n
	n.SetPrune()

	return nil
}

// zipMagicEntry builds a [format.Entry] whose content classifies as a zip
// archive (by magic prefix alone; it need not be a structurally valid zip,
// since the tests below prune before any real decoding happens) and is
// longer than the classifier's peek budget, so draining "size" afterward
// observes only what the peek left unread.
func zipMagicEntry(totalLen int) format.Entry {
	content := "PK\x03\x04" + strings.Repeat("a", totalLen-4)

	return format.Entry{
		Name: "x",
		Size: -1,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

// peekBudget mirrors internal/format's unexported classifier read-ahead
// bound (see its Classify/PeekReader): how many bytes are consumed from
// an entry's stream before a visitor ever sees it.
const peekBudget = 8192

// TestEngine_VisitArchiveEntry_SizeDrainsStreamWhenUnknown covers the
// size=-1 boundary: an entry whose Size is unknown is read to EOF the
// first time "size" is accessed. Classification already consumed the
// first peekBudget bytes, so the observed count is only what was left.
func TestEngine_VisitArchiveEntry_SizeDrainsStreamWhenUnknown(t *testing.T) {
	e := NewEngine()
	v := &capturingVisitor{}
	entry := zipMagicEntry(peekBudget + 12) //nolint:mnd

	err := e.visitArchiveEntry(context.Background(), "a.zip!x", 1, node.Root(), entry, v)
	require.NoError(t, err)
	require.NotNil(t, v.node)

	sz, found, err := v.node.Props.Get("size")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(12), sz.Long) //nolint:mnd
}

// TestEngine_VisitArchiveEntry_SizeUnavailableAfterStreamAttached covers
// the other side of the same boundary: once a consumer has already
// attached to "inputStream", the stream cannot be drained a second time to
// answer "size", so the producer reports errSizeUnavailable instead of
// silently returning a wrong count.
func TestEngine_VisitArchiveEntry_SizeUnavailableAfterStreamAttached(t *testing.T) {
	e := NewEngine()
	v := &capturingVisitor{}
	entry := zipMagicEntry(peekBudget + 12) //nolint:mnd

	err := e.visitArchiveEntry(context.Background(), "a.zip!x", 1, node.Root(), entry, v)
	require.NoError(t, err)
	require.NotNil(t, v.node)

	_, _, err = v.node.Props.Get("inputStream")
	require.NoError(t, err)

	_, _, err = v.node.Props.Get("size")
	require.ErrorIs(t, err, errSizeUnavailable)
}

// TestEngine_VisitArchiveEntry_SizeKnownNeverTouchesStream covers the
// common case: when Size is already known, the producer never drains the
// stream, so the entry's content is still readable in full afterward.
func TestEngine_VisitArchiveEntry_SizeKnownNeverTouchesStream(t *testing.T) {
	e := NewEngine()
	v := &capturingVisitor{}

	entry := format.Entry{
		Name: "x",
		Size: 5, //nolint:mnd
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader("hello")), nil
		},
	}

	err := e.visitArchiveEntry(context.Background(), "a.txt!x", 1, node.Root(), entry, v)
	require.NoError(t, err)
	require.NotNil(t, v.node)

	sz, _, err := v.node.Props.Get("size")
	require.NoError(t, err)
	assert.Equal(t, int64(5), sz.Long) //nolint:mnd

	stream, _, err := v.node.Props.Get("inputStream")
	require.NoError(t, err)

	data, err := io.ReadAll(stream.Stream)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}
