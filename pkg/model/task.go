package model

// TaskState tracks a download task through its lifecycle.
type TaskState string

// Task states. Completed, FailedFatal and Skipped are terminal.
const (
	TaskPending     TaskState = "pending"
	TaskInProgress  TaskState = "in-progress"
	TaskCompleted   TaskState = "completed"
	TaskFailedFatal TaskState = "failed"
	TaskSkipped     TaskState = "skipped"
)

// Terminal reports whether the state is final.
func (s TaskState) Terminal() bool {
	return s == TaskCompleted || s == TaskFailedFatal || s == TaskSkipped
}

// DownloadTask is one scheduled transfer of a FileRecord to local storage.
// Tasks are transient: they are built at scheduling time and never persisted.
type DownloadTask struct {
	Item       *Item
	File       *FileRecord
	TargetPath string
	State      TaskState
	Err        error // set when State is TaskFailedFatal
}
