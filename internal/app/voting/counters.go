package voting

import (
	"fmt"

	"github.com/marcelojr/votemap/internal/domain"
)

// CounterKeyElectionTotal names the live total-vote counter for one election.
func CounterKeyElectionTotal(id domain.ElectionID) string {
	return fmt.Sprintf("election:%s:total", id)
}
