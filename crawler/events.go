package crawler

// Stage names a step of a pipeline run.
type Stage string

const (
	StageCompliance Stage = "robots"
	StageFetch      Stage = "fetch"
	StagePacing     Stage = "pacing"
	StageExtract    Stage = "extract"
	StageSitemap    Stage = "sitemap"
	StageVerify     Stage = "verify"
	StageDone       Stage = "done"
)

// Event reports progress of a single pipeline run.
type Event struct {
	URL     string
	Stage   Stage
	Message string
}

// emit sends ev without blocking; a slow consumer misses intermediate stages.
func emit(ch chan<- Event, ev Event) {
	if ch == nil {
		return
	}
	select {
	case ch <- ev:
	default:
	}
}
