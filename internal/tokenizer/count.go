package tokenizer

import (
	"errors"

	"github.com/temirov/reposum/internal/types"
)

// CountContext estimates the tokens of the full text of an assembled context.
func CountContext(counter Counter, assembled types.Context) (int, error) {
	if counter == nil {
		return 0, errors.New("nil tokenizer counter")
	}
	return counter.CountString(assembled.Text())
}
