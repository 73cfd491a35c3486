package persistence_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dukex/marketflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
)

func TestStandardizedErrors(t *testing.T) {
	t.Parallel()

	t.Run("flow error unwraps to the sentinel", func(t *testing.T) {
		err := persistence.NewFlowError("FlowByID", "flow-123", persistence.ErrFlowNotFound)

		assert.True(t, persistence.IsFlowNotFound(err))
		assert.True(t, errors.Is(err, persistence.ErrFlowNotFound))
		assert.False(t, persistence.IsSubjectNotFound(err))
	})

	t.Run("flow error contains context", func(t *testing.T) {
		err := persistence.NewFlowError("SaveFlow", "flow-123", persistence.ErrInvalidID)

		assert.Contains(t, err.Error(), "SaveFlow")
		assert.Contains(t, err.Error(), "flow-123")
		assert.Contains(t, err.Error(), "invalid identifier")
	})

	t.Run("subject not found survives wrapping", func(t *testing.T) {
		err := fmt.Errorf("lookup destination for cust-1: %w", persistence.ErrSubjectNotFound)

		assert.True(t, persistence.IsSubjectNotFound(err))
	})
}
