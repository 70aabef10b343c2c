package model

// An Orphan is a transport message whose best-effort deletion failed during
// an upload rollback or a file removal. The scheduler retries them.
type Orphan struct {
	Base `json:",inline" storm:"inline"`

	MessageID string `json:"message_id" storm:"unique"`
	Tries     int    `json:"tries"`
}
