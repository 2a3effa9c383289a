package metrics

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveCodec(t *testing.T) {
	Register(prometheus.NewRegistry())
	assert.NotNil(t, GetRegisterer())

	before := testutil.ToFloat64(CodecOperations.WithLabelValues(OpEncode, ResultSuccess))
	ObserveCodec(OpEncode, 12, 2, "", nil)
	assert.Equal(t, before+1, testutil.ToFloat64(CodecOperations.WithLabelValues(OpEncode, ResultSuccess)))

	refs := testutil.ToFloat64(CodecReferences.WithLabelValues(OpEncode))
	ObserveCodec(OpEncode, 12, 3, "", nil)
	assert.Equal(t, refs+3, testutil.ToFloat64(CodecReferences.WithLabelValues(OpEncode)))

	failed := testutil.ToFloat64(CodecErrors.WithLabelValues(OpDecode, "EOFError"))
	ObserveCodec(OpDecode, 0, 0, "EOFError", errors.New("short"))
	assert.Equal(t, failed+1, testutil.ToFloat64(CodecErrors.WithLabelValues(OpDecode, "EOFError")))

	unknown := testutil.ToFloat64(CodecErrors.WithLabelValues(OpDecode, "unknown"))
	ObserveCodec(OpDecode, 0, 0, "", errors.New("io"))
	assert.Equal(t, unknown+1, testutil.ToFloat64(CodecErrors.WithLabelValues(OpDecode, "unknown")))
}
