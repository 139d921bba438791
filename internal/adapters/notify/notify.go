// Package notify publishes archived poll results to external systems.
package notify

import (
	"encoding/json"
	"fmt"

	"github.com/vncsmyrnk/livepoll/internal/core/domain"
)

const contentType = "application/json"

func encode(poll *domain.ArchivedPoll) ([]byte, error) {
	data, err := json.Marshal(poll)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal poll results: %w", err)
	}
	return data, nil
}
