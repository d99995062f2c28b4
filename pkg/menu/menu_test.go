package menu

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/turnloop/pkg/inference/tools"
	"github.com/go-go-golems/turnloop/pkg/turns"
)

func TestRegister(t *testing.T) {
	reg := tools.NewInMemoryToolRegistry()
	require.NoError(t, Register(reg))
	assert.Equal(t, []string{"get_specials", "get_item_price"}, reg.Names())

	out, err := reg.Invoke(context.Background(), turns.ToolCallRequest{CallID: "1", ToolName: "get_specials"})
	require.NoError(t, err)
	assert.Equal(t, Specials, out)

	out, err = reg.Invoke(context.Background(), turns.ToolCallRequest{
		CallID: "2", ToolName: "get_item_price", Arguments: map[string]string{"menu_item": "Cobb Salad"},
	})
	require.NoError(t, err)
	assert.Equal(t, "$9.99", out)

	spec, ok := reg.Lookup("get_item_price")
	require.True(t, ok)
	require.Len(t, spec.Parameters, 1)
	assert.Equal(t, "menu_item", spec.Parameters[0].Name)
	assert.True(t, spec.Parameters[0].Required)

	var dup *tools.DuplicateToolError
	assert.ErrorAs(t, Register(reg), &dup)
}
