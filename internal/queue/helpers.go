package queue

import (
	"errors"
	"sort"

	"github.com/iudanet/canvassync/internal/models"
)

func isBusy(err error) bool {
	return errors.Is(err, ErrObjectBusy)
}

func sortByTimestamp(list []*models.OptimisticUpdate) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Timestamp.Before(list[j].Timestamp)
	})
}
