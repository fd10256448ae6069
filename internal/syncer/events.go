package syncer

// EventType enumerates emitted sync events.
type EventType string

const (
	EventFolderStart   EventType = "folder_start"
	EventProgress      EventType = "progress"
	EventMessageFailed EventType = "message_failed"
	EventFolderDone    EventType = "folder_done"
)

// Event carries progress about one folder sync.
type Event struct {
	Type    EventType
	Folder  string
	Total   int
	Done    int
	Message string // identity or best-effort descriptor on failure
	Err     error
}
