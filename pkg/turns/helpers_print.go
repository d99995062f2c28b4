package turns

import (
	"fmt"
	"io"
)

// FormatTurn renders a turn as a single transcript line:
//
//	# user: 'How much is the t-bone steak?'
//	# assistant - Host: 'It is $9.99.'
//	# tool - get_item_price: '$9.99'
//
// User turns omit the author. Other roles print "*" when the author is empty.
func FormatTurn(t Turn) string {
	if t.Role == RoleUser {
		return fmt.Sprintf("# %s: '%s'", t.Role, t.Content)
	}
	author := t.Author
	if author == "" {
		author = "*"
	}
	return fmt.Sprintf("# %s - %s: '%s'", t.Role, author, t.Content)
}

// FprintTurns prints every turn on its own line.
func FprintTurns(w io.Writer, ts []Turn) error {
	for _, t := range ts {
		if _, err := fmt.Fprintln(w, FormatTurn(t)); err != nil {
			return err
		}
	}
	return nil
}
