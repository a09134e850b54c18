package tasks

import "fmt"

// ProgressUpdate represents a progress event during a sync run.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
}

// Operation phase enumeration
type Phase int

const (
	ConnectAccount Phase = iota
	FetchWatchlist
	ResolveDetails
	ProcessItems
	RunComplete
)

func (p Phase) String() string {
	switch p {
	case ConnectAccount:
		return "connect_account"
	case FetchWatchlist:
		return "fetch_watchlist"
	case ResolveDetails:
		return "resolve_details"
	case ProcessItems:
		return "process_items"
	case RunComplete:
		return "run_complete"
	default:
		return "unknown"
	}
}

func connectUpdate(username string) ProgressUpdate {
	return ProgressUpdate{Phase: ConnectAccount, Step: 1, Total: 1, Message: fmt.Sprintf("Connecting as %s...", username)}
}

func fetchWatchlistUpdate(count int) ProgressUpdate {
	return ProgressUpdate{Phase: FetchWatchlist, Step: 1, Total: 1, Message: fmt.Sprintf("Fetched %d watchlist items", count)}
}

func resolveUpdate(hits, toFetch int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveDetails,
		Step:    hits,
		Total:   hits + toFetch,
		Message: fmt.Sprintf("Resolved %d from cache, fetched %d", hits, toFetch),
	}
}

func processUpdate(wanted, total int) ProgressUpdate {
	return ProgressUpdate{Phase: ProcessItems, Step: wanted, Total: total, Message: fmt.Sprintf("%d of %d items wanted", wanted, total)}
}

func completeUpdate(username string) ProgressUpdate {
	return ProgressUpdate{Phase: RunComplete, Step: 1, Total: 1, Message: fmt.Sprintf("Sync complete for %s", username)}
}
